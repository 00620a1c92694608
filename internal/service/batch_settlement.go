package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segyhp/agent-wallet/internal/domain"
	"github.com/segyhp/agent-wallet/internal/metrics"
	"github.com/segyhp/agent-wallet/internal/repository"
	customError "github.com/segyhp/agent-wallet/pkg/errors"
	"github.com/segyhp/agent-wallet/pkg/logger"
	"github.com/segyhp/agent-wallet/pkg/utils"
)

// LedgerSource hands out the wallet ledger of an agent.
type LedgerSource interface {
	Ledger(agentID string) *WalletLedger
}

// BatchSettlement pays several pending proposals from the wallet in one request.
type BatchSettlement struct {
	settlements repository.SettlementRepository
	journal     repository.JournalRepository
	ledgers     LedgerSource
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewBatchSettlement creates a BatchSettlement. journal, m and log may be nil.
func NewBatchSettlement(settlements repository.SettlementRepository, journal repository.JournalRepository, ledgers LedgerSource, m *metrics.Metrics, log *slog.Logger) *BatchSettlement {
	if log == nil {
		log = logger.Discard()
	}
	return &BatchSettlement{
		settlements: settlements,
		journal:     journal,
		ledgers:     ledgers,
		metrics:     m,
		logger:      log,
	}
}

// ApplySettlement submits selection as one batch. Preconditions are checked
// locally without a remote call. On success the selection is cleared and the
// Pending tab re-listed; on failure the selection is kept for a retry.
func (s *BatchSettlement) ApplySettlement(ctx context.Context, agentID string, selection domain.SettlementSelection) (*domain.SettlementResult, error) {
	ledger := s.ledgers.Ledger(agentID)

	if !ledger.startProcessing() {
		return nil, customError.WrapWorkflowBusy()
	}
	defer ledger.stopProcessing()

	if selection.IsEmpty() {
		return nil, s.reject(ledger, customError.WrapNoProposalsSelected())
	}

	policies := make([]string, 0, len(selection.Items))
	for _, p := range selection.Items {
		policy := strings.TrimSpace(p.PolicyNumber)
		if policy == "" || p.PaymentStatus != domain.PaymentStatusPending {
			return nil, s.reject(ledger, customError.WrapNoValidPoliciesSelected())
		}
		policies = append(policies, policy)
	}

	eligibility := ledger.Eligibility()
	if !eligibility.EligibleForProposal {
		return nil, s.reject(ledger, customError.WrapWalletNotEligible(eligibility.Days))
	}

	agentCode := agentID
	if agent := ledger.Agent(); agent != nil {
		agentCode = agent.Code()
	}

	proposalIDs := selection.ProposalIDs()
	total := totalOf(selection.Items)
	request := &domain.BatchSettlementRequest{
		AgentCode:     agentCode,
		PolicyNumbers: strings.Join(policies, domain.BatchDelimiter),
		TotalAmount:   total,
		Mode:          domain.PaymentStatusInProcess,
		ProposalIDs:   utils.JoinIdentifiers(proposalIDs, domain.BatchDelimiter),
	}

	reply, err := s.settlements.ApplyBatchSettlement(ctx, request)
	if err != nil {
		s.metrics.ObserveSettlement("batch", customError.ErrCodeNetworkOrServerError)
		s.record(ctx, agentID, request, domain.JournalOutcomeFailed, err.Error())
		s.logger.Error("batch settlement request failed",
			slog.String("agent_id", agentID),
			slog.Int("count", len(proposalIDs)),
			slog.Any("error", err))
		return nil, s.reject(ledger, customError.WrapNetworkOrServerError(err))
	}
	if !reply.IsSuccess() {
		be := customError.WrapSettlementFailed(envMessage(reply))
		s.metrics.ObserveSettlement("batch", be.Code)
		s.record(ctx, agentID, request, domain.JournalOutcomeFailed, be.Message)
		s.logger.Warn("batch settlement rejected",
			slog.String("agent_id", agentID),
			slog.String("message", be.Message))
		return nil, s.reject(ledger, be)
	}

	count := len(proposalIDs)
	message := fmt.Sprintf("Payment of ₹%s applied to %d %s successfully.",
		utils.FormatAmount(total), count, utils.Pluralize(count, "policy", "policies"))

	s.metrics.ObserveSettlement("batch", "ok")
	s.record(ctx, agentID, request, domain.JournalOutcomeSucceeded, message)
	s.logger.Info("batch settlement applied",
		slog.String("agent_id", agentID),
		slog.Int("count", count),
		slog.String("total_amount", total.StringFixed(2)))

	ledger.ClearSelection()
	if _, err := ledger.ListProposals(ctx, domain.PaymentStatusPending); err != nil {
		s.logger.Warn("failed to re-list pending proposals", slog.String("agent_id", agentID), slog.Any("error", err))
	}
	if _, err := ledger.RefreshAgent(ctx, agentID); err != nil {
		s.logger.Warn("failed to refresh agent after settlement", slog.String("agent_id", agentID), slog.Any("error", err))
	}
	ledger.SetMessage(message)

	return &domain.SettlementResult{
		SettledCount: count,
		TotalAmount:  total,
		ProposalIDs:  proposalIDs,
		Message:      message,
	}, nil
}

// ApplySelected settles whatever the agent's ledger currently has selected.
// The agent is re-fetched first so eligibility is judged on the portal's
// profile rather than one handed in by a caller.
func (s *BatchSettlement) ApplySelected(ctx context.Context, agentID string) (*domain.SettlementResult, error) {
	ledger := s.ledgers.Ledger(agentID)
	selection := ledger.Selection()
	if selection.IsEmpty() {
		return s.ApplySettlement(ctx, agentID, selection)
	}

	if _, err := ledger.RefreshAgent(ctx, agentID); err != nil {
		s.logger.Warn("failed to refresh agent before settlement", slog.String("agent_id", agentID), slog.Any("error", err))
		var be *customError.BusinessError
		if !errors.As(err, &be) {
			be = customError.WrapNetworkOrServerError(err)
		}
		return nil, s.reject(ledger, be)
	}
	return s.ApplySettlement(ctx, agentID, selection)
}

func (s *BatchSettlement) reject(ledger *WalletLedger, be *customError.BusinessError) error {
	ledger.SetMessage(be.Message)
	return be
}

func (s *BatchSettlement) record(ctx context.Context, agentID string, request *domain.BatchSettlementRequest, outcome, message string) {
	if s.journal == nil {
		return
	}
	entry := &domain.JournalEntry{
		AgentID:   agentID,
		Kind:      domain.JournalKindBatchSettlement,
		Reference: request.ProposalIDs,
		Amount:    request.TotalAmount,
		Outcome:   outcome,
		Message:   message,
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record journal entry",
			slog.String("kind", entry.Kind),
			slog.Any("error", err))
	}
}
