package repository

import (
	"context"

	"github.com/segyhp/agent-wallet/internal/domain"
)

// The portal repositories return the portal's envelope as-is so callers can
// tell a business failure (Status != "Success") from a transport error
// (non-nil error).

// AgentRepository defines the portal operations on agents
type AgentRepository interface {
	// GetAgentByID retrieves the agent profile including wallet state
	GetAgentByID(ctx context.Context, agentID string) (*domain.Envelope[*domain.Agent], error)

	// GetPremiumQuotation calculates the premium for the agent's configured plan
	GetPremiumQuotation(ctx context.Context, agentID string) (*domain.Envelope[*domain.PremiumQuotation], error)
}

// ProposalRepository defines the portal operations on proposals
type ProposalRepository interface {
	// CheckDuplicateSubscriber checks whether the mobile or email is already subscribed
	CheckDuplicateSubscriber(ctx context.Context, mobile, email string) (*domain.StatusReply, error)

	// CreateProposal submits a validated draft
	CreateProposal(ctx context.Context, request *domain.CreateProposalRequest) (*domain.Envelope[*domain.CreatedProposal], error)

	// GenerateInvoice renders the invoice PDF for a settled proposal
	GenerateInvoice(ctx context.Context, proposalExternalID string) (*domain.Envelope[*domain.Invoice], error)

	// ListProposalsByStatus lists an agent's proposals in one payment status
	ListProposalsByStatus(ctx context.Context, agentID string, status domain.PaymentStatus) (*domain.Envelope[[]*domain.Proposal], error)
}

// SettlementRepository defines the portal payment operations
type SettlementRepository interface {
	// SettlePayment pays one proposal from the wallet
	SettlePayment(ctx context.Context, request *domain.SettlementRequest) (*domain.Envelope[*domain.SettlementResponse], error)

	// ApplyBatchSettlement submits many pending proposals in one request
	ApplyBatchSettlement(ctx context.Context, request *domain.BatchSettlementRequest) (*domain.StatusReply, error)
}

// JournalRepository defines the interface for the local settlement journal
type JournalRepository interface {
	// Record appends an entry
	Record(ctx context.Context, entry *domain.JournalEntry) error

	// ListByAgent returns the latest entries for an agent, newest first
	ListByAgent(ctx context.Context, agentID string, limit int) ([]*domain.JournalEntry, error)
}
