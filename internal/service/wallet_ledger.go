package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/segyhp/agent-wallet/internal/domain"
	"github.com/segyhp/agent-wallet/internal/repository"
	"github.com/segyhp/agent-wallet/internal/session"
	customError "github.com/segyhp/agent-wallet/pkg/errors"
	"github.com/segyhp/agent-wallet/pkg/logger"
	"github.com/segyhp/agent-wallet/pkg/utils"
)

// LedgerDeps are the collaborators of a WalletLedger. Cache and Logger are optional.
type LedgerDeps struct {
	Agents    repository.AgentRepository
	Proposals repository.ProposalRepository
	Cache     *session.AgentCache
	Window    *EligibilityWindow
	Flow      domain.WalletFlow
	Logger    *slog.Logger
}

// WalletLedger is one agent's wallet view: the profile, the proposals of the
// active status tab and the proposals selected for batch payment.
type WalletLedger struct {
	deps    LedgerDeps
	agentID string

	mu         sync.Mutex
	agent      *domain.Agent
	tab        domain.PaymentStatus
	proposals  []*domain.Proposal
	selected   []string
	message    string
	processing bool
}

// NewWalletLedger creates an empty ledger for agentID on the Pending tab.
func NewWalletLedger(deps LedgerDeps, agentID string) *WalletLedger {
	if deps.Window == nil {
		deps.Window = NewEligibilityWindow(DefaultEligibilityWindowDays, nil)
	}
	if deps.Flow == "" {
		deps.Flow = domain.WalletFlowAyushpay
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	return &WalletLedger{
		deps:    deps,
		agentID: agentID,
		tab:     domain.PaymentStatusPending,
	}
}

// AgentID returns the agent the ledger belongs to.
func (l *WalletLedger) AgentID() string {
	return l.agentID
}

// Seed sets the agent profile without a remote call, e.g. from a resolved
// AgentContext. A profile already fetched from the portal is never replaced.
func (l *WalletLedger) Seed(agent *domain.Agent) {
	if agent == nil {
		return
	}
	copied := *agent

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.agent == nil {
		l.agent = &copied
	}
}

// RefreshAgent re-fetches the agent profile, which also re-derives the
// eligibility window, and stores it in the session cache.
func (l *WalletLedger) RefreshAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	if agentID == "" {
		agentID = l.agentID
	}

	env, err := l.deps.Agents.GetAgentByID(ctx, agentID)
	if err != nil {
		return nil, customError.WrapNetworkOrServerError(err)
	}
	if !env.IsSuccess() || env.MasterData == nil {
		return nil, customError.WrapAgentContextUnavailable(agentID)
	}

	agent := *env.MasterData
	if agent.AgentID == "" {
		agent.AgentID = agentID
	}

	if err := l.deps.Cache.Store(ctx, &agent); err != nil {
		l.deps.Logger.Warn("failed to cache agent profile",
			slog.String("agent_id", agentID),
			slog.Any("error", err))
	}

	if agentID == l.agentID {
		l.mu.Lock()
		l.agent = &agent
		l.mu.Unlock()
	}

	result := l.Eligibility()
	l.deps.Logger.Debug("agent refreshed",
		slog.String("agent_id", agentID),
		slog.String("wallet_amount", agent.WalletAmount.StringFixed(2)),
		slog.Int("eligibility_days", result.Days),
		slog.Bool("eligible", result.EligibleForProposal))

	copied := agent
	return &copied, nil
}

// ListProposals fetches the proposals of one status tab. Switching to a
// different tab clears the selection and the tab message.
func (l *WalletLedger) ListProposals(ctx context.Context, status domain.PaymentStatus) ([]*domain.Proposal, error) {
	l.mu.Lock()
	if status != l.tab {
		l.tab = status
		l.proposals = nil
		l.selected = nil
		l.message = ""
	}
	l.mu.Unlock()

	env, err := l.deps.Proposals.ListProposalsByStatus(ctx, l.agentID, status)
	if err != nil {
		return nil, customError.WrapNetworkOrServerError(err)
	}
	if !env.IsSuccess() {
		return nil, customError.NewBusinessError(customError.ErrCodeNetworkOrServerError,
			messageOr(envMessage(env), customError.GenericFailureMessage), customError.ErrNetworkOrServer)
	}

	listed := make([]*domain.Proposal, 0, len(env.MasterData))
	for _, p := range env.MasterData {
		if p == nil {
			continue
		}
		if p.PaymentStatus == "" {
			p.PaymentStatus = status
		}
		listed = append(listed, p)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tab != status {
		// A newer tab switch won.
		return copyProposals(listed), nil
	}
	l.proposals = listed
	l.selected = l.retainListedLocked(l.selected)
	return copyProposals(listed), nil
}

// Load refreshes the agent and lists a tab concurrently.
func (l *WalletLedger) Load(ctx context.Context, status domain.PaymentStatus) ([]*domain.Proposal, error) {
	var listed []*domain.Proposal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := l.RefreshAgent(gctx, l.agentID)
		return err
	})
	g.Go(func() error {
		var err error
		listed, err = l.ListProposals(gctx, status)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return listed, nil
}

// Toggle adds or removes a proposal from the selection. It is a no-op unless
// the Pending tab is active, the wallet is eligible and the proposal is listed
// as Pending. It reports whether the selection changed.
func (l *WalletLedger) Toggle(proposalID string) bool {
	eligible := l.Eligibility().EligibleForProposal

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tab != domain.PaymentStatusPending || !eligible || l.processing {
		return false
	}
	p := l.findLocked(proposalID)
	if p == nil || p.PaymentStatus != domain.PaymentStatusPending {
		return false
	}

	for i, id := range l.selected {
		if id == proposalID {
			l.selected = append(l.selected[:i], l.selected[i+1:]...)
			return true
		}
	}
	l.selected = append(l.selected, proposalID)
	return true
}

// Selection returns the currently selected proposals and their total.
func (l *WalletLedger) Selection() domain.SettlementSelection {
	l.mu.Lock()
	defer l.mu.Unlock()

	items := make([]*domain.Proposal, 0, len(l.selected))
	for _, id := range l.selected {
		if p := l.findLocked(id); p != nil {
			copied := *p
			items = append(items, &copied)
		}
	}
	return domain.SettlementSelection{
		Items:               items,
		TotalSelectedAmount: totalOf(items),
	}
}

// SelectionOf builds a selection from listed proposal ids without touching
// the ledger's own selection. Ids that are not listed as Pending are returned
// as missing.
func (l *WalletLedger) SelectionOf(ids []string) (domain.SettlementSelection, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var missing []string
	items := make([]*domain.Proposal, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		p := l.findLocked(id)
		if p == nil || p.PaymentStatus != domain.PaymentStatusPending {
			missing = append(missing, id)
			continue
		}
		copied := *p
		items = append(items, &copied)
	}
	return domain.SettlementSelection{Items: items, TotalSelectedAmount: totalOf(items)}, missing
}

// TotalSelectedAmount sums the amounts of exactly the selected proposals.
func (l *WalletLedger) TotalSelectedAmount() decimal.Decimal {
	return l.Selection().TotalSelectedAmount
}

// ClearSelection drops every selected proposal.
func (l *WalletLedger) ClearSelection() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selected = nil
}

// Tab returns the active status tab.
func (l *WalletLedger) Tab() domain.PaymentStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tab
}

// Agent returns a copy of the last-known profile, or nil.
func (l *WalletLedger) Agent() *domain.Agent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.agent == nil {
		return nil
	}
	copied := *l.agent
	return &copied
}

// Eligibility evaluates the window at the current instant.
func (l *WalletLedger) Eligibility() domain.EligibilityResult {
	l.mu.Lock()
	agent := l.agent
	l.mu.Unlock()

	return l.deps.Window.Compute(agent.ReferenceDate(l.deps.Flow))
}

// Message returns the tab-scoped success or error message.
func (l *WalletLedger) Message() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.message
}

// SetMessage replaces the tab-scoped message.
func (l *WalletLedger) SetMessage(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.message = message
}

// Processing reports whether a batch settlement is in flight.
func (l *WalletLedger) Processing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processing
}

// startProcessing marks a settlement in flight; false when one already is.
func (l *WalletLedger) startProcessing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.processing {
		return false
	}
	l.processing = true
	return true
}

func (l *WalletLedger) stopProcessing() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processing = false
}

func (l *WalletLedger) findLocked(proposalID string) *domain.Proposal {
	for _, p := range l.proposals {
		if p.ProposalID == proposalID {
			return p
		}
	}
	return nil
}

func (l *WalletLedger) retainListedLocked(ids []string) []string {
	kept := ids[:0]
	for _, id := range ids {
		if p := l.findLocked(id); p != nil && p.PaymentStatus == domain.PaymentStatusPending {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func totalOf(items []*domain.Proposal) decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(items))
	for _, p := range items {
		amounts = append(amounts, p.SelectedPremiumAmount)
	}
	return utils.SumDecimals(amounts...)
}

func copyProposals(items []*domain.Proposal) []*domain.Proposal {
	out := make([]*domain.Proposal, 0, len(items))
	for _, p := range items {
		copied := *p
		out = append(out, &copied)
	}
	return out
}
