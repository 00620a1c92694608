package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/agent-wallet/internal/domain"
	"github.com/segyhp/agent-wallet/internal/mocks"
	"github.com/segyhp/agent-wallet/internal/session"
	customError "github.com/segyhp/agent-wallet/pkg/errors"
)

var ledgerNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := ledgerNow.AddDate(0, 0, -n)
	return &t
}

type ledgerMocks struct {
	agents    *mocks.MockAgentRepository
	proposals *mocks.MockProposalRepository
}

func ledgerDeps(m *ledgerMocks, cache *session.AgentCache) LedgerDeps {
	return LedgerDeps{
		Agents:    m.agents,
		Proposals: m.proposals,
		Cache:     cache,
		Window:    NewEligibilityWindow(DefaultEligibilityWindowDays, func() time.Time { return ledgerNow }),
		Flow:      domain.WalletFlowAyushpay,
	}
}

func newLedgerMocks() *ledgerMocks {
	return &ledgerMocks{
		agents:    new(mocks.MockAgentRepository),
		proposals: new(mocks.MockProposalRepository),
	}
}

func (m *ledgerMocks) agentOK(walletUpdated *time.Time) {
	m.agents.On("GetAgentByID", mock.Anything, "AG-1").Return(&domain.Envelope[*domain.Agent]{
		Status: domain.StatusSuccess,
		MasterData: &domain.Agent{
			AgentID:          "AG-1",
			AgentCode:        "AGC-1",
			WalletAmount:     decimal.NewFromInt(10000),
			WalletUpdateDate: walletUpdated,
		},
	}, nil)
}

func pendingProposal(id, policy string, amount int64) *domain.Proposal {
	return &domain.Proposal{
		ProposalID:            id,
		ExternalID:            "EXT-" + id,
		PolicyNumber:          policy,
		SelectedPremiumAmount: decimal.NewFromInt(amount),
		PaymentStatus:         domain.PaymentStatusPending,
	}
}

func (m *ledgerMocks) pendingList(items ...*domain.Proposal) {
	m.proposals.On("ListProposalsByStatus", mock.Anything, "AG-1", domain.PaymentStatusPending).
		Return(&domain.Envelope[[]*domain.Proposal]{Status: domain.StatusSuccess, MasterData: items}, nil)
}

func loadedLedger(t *testing.T, m *ledgerMocks) *WalletLedger {
	t.Helper()
	ledger := NewWalletLedger(ledgerDeps(m, nil), "AG-1")
	_, err := ledger.Load(context.Background(), domain.PaymentStatusPending)
	require.NoError(t, err)
	return ledger
}

func TestWalletLedger_SelectionTotal(t *testing.T) {
	m := newLedgerMocks()
	m.agentOK(daysAgo(2))
	m.pendingList(
		pendingProposal("P1", "POL-1", 500),
		pendingProposal("P2", "POL-2", 700),
		pendingProposal("P3", "POL-3", 900),
	)
	ledger := loadedLedger(t, m)

	assert.True(t, ledger.Toggle("P1"))
	assert.True(t, ledger.Toggle("P2"))
	assert.True(t, ledger.TotalSelectedAmount().Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, []string{"P1", "P2"}, ledger.Selection().ProposalIDs())

	assert.True(t, ledger.Toggle("P1"))
	assert.True(t, ledger.TotalSelectedAmount().Equal(decimal.NewFromInt(700)))
	assert.Equal(t, []string{"P2"}, ledger.Selection().ProposalIDs())

	ledger.ClearSelection()
	assert.True(t, ledger.Selection().IsEmpty())
	assert.True(t, ledger.TotalSelectedAmount().IsZero())
}

func TestWalletLedger_SelectionOfSkipsNonPending(t *testing.T) {
	m := newLedgerMocks()
	m.agentOK(daysAgo(2))
	inProcess := pendingProposal("P2", "POL-2", 700)
	inProcess.PaymentStatus = domain.PaymentStatusInProcess
	m.pendingList(pendingProposal("P1", "POL-1", 500), inProcess)
	ledger := loadedLedger(t, m)

	selection, missing := ledger.SelectionOf([]string{"P1", "P2", "P7", "P1"})

	assert.Equal(t, []string{"P1"}, selection.ProposalIDs())
	assert.True(t, selection.TotalSelectedAmount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, []string{"P2", "P7"}, missing)
	assert.True(t, ledger.Selection().IsEmpty())
}

func TestWalletLedger_ToggleNoOps(t *testing.T) {
	t.Run("ineligible wallet", func(t *testing.T) {
		m := newLedgerMocks()
		m.agentOK(daysAgo(20))
		m.pendingList(pendingProposal("P1", "POL-1", 500))
		ledger := loadedLedger(t, m)

		assert.False(t, ledger.Eligibility().EligibleForProposal)
		assert.Equal(t, -5, ledger.Eligibility().Days)
		assert.False(t, ledger.Toggle("P1"))
		assert.True(t, ledger.Selection().IsEmpty())
	})

	t.Run("unknown proposal", func(t *testing.T) {
		m := newLedgerMocks()
		m.agentOK(daysAgo(2))
		m.pendingList(pendingProposal("P1", "POL-1", 500))
		ledger := loadedLedger(t, m)

		assert.False(t, ledger.Toggle("P9"))
	})

	t.Run("non pending tab", func(t *testing.T) {
		m := newLedgerMocks()
		m.agentOK(daysAgo(2))
		approved := pendingProposal("P1", "POL-1", 500)
		approved.PaymentStatus = domain.PaymentStatusApproved
		m.proposals.On("ListProposalsByStatus", mock.Anything, "AG-1", domain.PaymentStatusApproved).
			Return(&domain.Envelope[[]*domain.Proposal]{Status: domain.StatusSuccess, MasterData: []*domain.Proposal{approved}}, nil)

		ledger := NewWalletLedger(ledgerDeps(m, nil), "AG-1")
		_, err := ledger.Load(context.Background(), domain.PaymentStatusApproved)
		require.NoError(t, err)

		assert.False(t, ledger.Toggle("P1"))
	})

	t.Run("no agent loaded", func(t *testing.T) {
		m := newLedgerMocks()
		m.pendingList(pendingProposal("P1", "POL-1", 500))
		ledger := NewWalletLedger(ledgerDeps(m, nil), "AG-1")
		_, err := ledger.ListProposals(context.Background(), domain.PaymentStatusPending)
		require.NoError(t, err)

		assert.False(t, ledger.Toggle("P1"))
		assert.True(t, ledger.Eligibility().IsExpired)
	})
}

func TestWalletLedger_TabSwitchClearsSelection(t *testing.T) {
	m := newLedgerMocks()
	m.agentOK(daysAgo(2))
	m.pendingList(pendingProposal("P1", "POL-1", 500))
	m.proposals.On("ListProposalsByStatus", mock.Anything, "AG-1", domain.PaymentStatusInProcess).
		Return(&domain.Envelope[[]*domain.Proposal]{Status: domain.StatusSuccess}, nil)
	ledger := loadedLedger(t, m)

	require.True(t, ledger.Toggle("P1"))
	ledger.SetMessage("Please select at least one proposal")

	_, err := ledger.ListProposals(context.Background(), domain.PaymentStatusInProcess)
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusInProcess, ledger.Tab())
	assert.True(t, ledger.Selection().IsEmpty())
	assert.Empty(t, ledger.Message())

	_, err = ledger.ListProposals(context.Background(), domain.PaymentStatusPending)
	require.NoError(t, err)
	assert.True(t, ledger.Selection().IsEmpty())
}

func TestWalletLedger_TotalFollowsRefreshedAmounts(t *testing.T) {
	m := newLedgerMocks()
	m.agentOK(daysAgo(2))
	m.proposals.On("ListProposalsByStatus", mock.Anything, "AG-1", domain.PaymentStatusPending).
		Return(&domain.Envelope[[]*domain.Proposal]{Status: domain.StatusSuccess, MasterData: []*domain.Proposal{
			pendingProposal("P1", "POL-1", 500),
		}}, nil).Once()
	m.proposals.On("ListProposalsByStatus", mock.Anything, "AG-1", domain.PaymentStatusPending).
		Return(&domain.Envelope[[]*domain.Proposal]{Status: domain.StatusSuccess, MasterData: []*domain.Proposal{
			pendingProposal("P1", "POL-1", 650),
		}}, nil).Once()
	ledger := loadedLedger(t, m)

	require.True(t, ledger.Toggle("P1"))
	_, err := ledger.ListProposals(context.Background(), domain.PaymentStatusPending)
	require.NoError(t, err)

	assert.True(t, ledger.TotalSelectedAmount().Equal(decimal.NewFromInt(650)))
}

func TestWalletLedger_RefreshAgentCachesProfile(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := session.NewAgentCache(client, time.Hour)

	m := newLedgerMocks()
	m.agentOK(daysAgo(3))
	ledger := NewWalletLedger(ledgerDeps(m, cache), "AG-1")

	agent, err := ledger.RefreshAgent(context.Background(), "AG-1")
	require.NoError(t, err)
	assert.Equal(t, "AGC-1", agent.AgentCode)

	result := ledger.Eligibility()
	assert.Equal(t, 12, result.Days)
	assert.True(t, result.EligibleForProposal)

	cached, err := cache.Load(context.Background(), "AG-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.True(t, cached.WalletAmount.Equal(decimal.NewFromInt(10000)))
}

func TestWalletLedger_RefreshAgentErrors(t *testing.T) {
	m := newLedgerMocks()
	m.agents.On("GetAgentByID", mock.Anything, "AG-1").Return(nil, errors.New("timeout")).Once()
	m.agents.On("GetAgentByID", mock.Anything, "AG-1").Return(&domain.Envelope[*domain.Agent]{Status: domain.StatusFailure}, nil).Once()
	ledger := NewWalletLedger(ledgerDeps(m, nil), "AG-1")

	_, err := ledger.RefreshAgent(context.Background(), "AG-1")
	assert.ErrorIs(t, err, customError.ErrNetworkOrServer)

	_, err = ledger.RefreshAgent(context.Background(), "AG-1")
	assert.ErrorIs(t, err, customError.ErrAgentContextUnavailable)
	assert.Nil(t, ledger.Agent())
}

func TestWalletLedger_ListFailureSurfacesMessage(t *testing.T) {
	m := newLedgerMocks()
	m.proposals.On("ListProposalsByStatus", mock.Anything, "AG-1", domain.PaymentStatusPending).
		Return(&domain.Envelope[[]*domain.Proposal]{Status: domain.StatusError, Message: "Agent not mapped"}, nil)
	ledger := NewWalletLedger(ledgerDeps(m, nil), "AG-1")

	_, err := ledger.ListProposals(context.Background(), domain.PaymentStatusPending)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Agent not mapped")
}
