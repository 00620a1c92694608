package mocks

import (
	"context"

	"github.com/segyhp/agent-wallet/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockAgentRepository struct {
	mock.Mock
}

func (m *MockAgentRepository) GetAgentByID(ctx context.Context, agentID string) (*domain.Envelope[*domain.Agent], error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Envelope[*domain.Agent]), args.Error(1)
}

func (m *MockAgentRepository) GetPremiumQuotation(ctx context.Context, agentID string) (*domain.Envelope[*domain.PremiumQuotation], error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Envelope[*domain.PremiumQuotation]), args.Error(1)
}

type MockProposalRepository struct {
	mock.Mock
}

func (m *MockProposalRepository) CheckDuplicateSubscriber(ctx context.Context, mobile, email string) (*domain.StatusReply, error) {
	args := m.Called(ctx, mobile, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusReply), args.Error(1)
}

func (m *MockProposalRepository) CreateProposal(ctx context.Context, request *domain.CreateProposalRequest) (*domain.Envelope[*domain.CreatedProposal], error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Envelope[*domain.CreatedProposal]), args.Error(1)
}

func (m *MockProposalRepository) GenerateInvoice(ctx context.Context, proposalExternalID string) (*domain.Envelope[*domain.Invoice], error) {
	args := m.Called(ctx, proposalExternalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Envelope[*domain.Invoice]), args.Error(1)
}

func (m *MockProposalRepository) ListProposalsByStatus(ctx context.Context, agentID string, status domain.PaymentStatus) (*domain.Envelope[[]*domain.Proposal], error) {
	args := m.Called(ctx, agentID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Envelope[[]*domain.Proposal]), args.Error(1)
}

type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) SettlePayment(ctx context.Context, request *domain.SettlementRequest) (*domain.Envelope[*domain.SettlementResponse], error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Envelope[*domain.SettlementResponse]), args.Error(1)
}

func (m *MockSettlementRepository) ApplyBatchSettlement(ctx context.Context, request *domain.BatchSettlementRequest) (*domain.StatusReply, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusReply), args.Error(1)
}

type MockJournalRepository struct {
	mock.Mock
}

func (m *MockJournalRepository) Record(ctx context.Context, entry *domain.JournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockJournalRepository) ListByAgent(ctx context.Context, agentID string, limit int) ([]*domain.JournalEntry, error) {
	args := m.Called(ctx, agentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.JournalEntry), args.Error(1)
}
