package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/agent-wallet/internal/domain"
	customError "github.com/segyhp/agent-wallet/pkg/errors"
)

// DefaultWorkflowIdleTTL is how long an untouched workflow session is kept.
const DefaultWorkflowIdleTTL = 30 * time.Minute

// WorkflowRegistry keeps the live workflow sessions and the per-agent wallet
// ledgers of one server process. Nothing is persisted; a restart drops them.
// Sessions untouched for longer than the idle TTL are evicted.
type WorkflowRegistry struct {
	workflowDeps WorkflowDeps
	ledgerDeps   LedgerDeps
	idleTTL      time.Duration
	now          func() time.Time

	mu        sync.RWMutex
	workflows map[uuid.UUID]*workflowEntry
	ledgers   map[string]*WalletLedger
}

type workflowEntry struct {
	workflow *ProposalWorkflow
	touched  time.Time
}

// RegistryOption configures a WorkflowRegistry.
type RegistryOption func(*WorkflowRegistry)

// WithIdleTTL sets how long an untouched session survives. Zero keeps
// sessions until they are discarded.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *WorkflowRegistry) {
		r.idleTTL = ttl
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *WorkflowRegistry) {
		r.now = now
	}
}

func NewWorkflowRegistry(workflowDeps WorkflowDeps, ledgerDeps LedgerDeps, opts ...RegistryOption) *WorkflowRegistry {
	r := &WorkflowRegistry{
		workflowDeps: workflowDeps,
		ledgerDeps:   ledgerDeps,
		idleTTL:      DefaultWorkflowIdleTTL,
		now:          time.Now,
		workflows:    make(map[uuid.UUID]*workflowEntry),
		ledgers:      make(map[string]*WalletLedger),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ledger returns the agent's ledger, creating it on first use.
func (r *WorkflowRegistry) Ledger(agentID string) *WalletLedger {
	r.mu.RLock()
	ledger, ok := r.ledgers[agentID]
	r.mu.RUnlock()
	if ok {
		return ledger
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ledger, ok := r.ledgers[agentID]; ok {
		return ledger
	}
	ledger = NewWalletLedger(r.ledgerDeps, agentID)
	r.ledgers[agentID] = ledger
	return ledger
}

// Start resolves the agent context and opens a workflow session. The
// session's payments refresh the agent through its ledger.
func (r *WorkflowRegistry) Start(ctx context.Context, agentID string, payload *domain.Agent) (uuid.UUID, *ProposalWorkflow, error) {
	agentCtx, err := r.ledgerDeps.Cache.Resolve(ctx, agentID, payload)
	if err != nil {
		r.logger().Warn("agent session lookup failed", slog.String("agent_id", agentID), slog.Any("error", err))
	}

	ledger := r.Ledger(agentID)
	if agentCtx.Agent == nil {
		agent, err := ledger.RefreshAgent(ctx, agentID)
		if err != nil {
			return uuid.Nil, nil, err
		}
		agentCtx = domain.AgentContext{Agent: agent, Source: domain.AgentSourceNone}
	} else {
		ledger.Seed(agentCtx.Agent)
	}

	deps := r.workflowDeps
	deps.Refresher = ledger

	workflow, err := NewProposalWorkflow(deps, agentCtx)
	if err != nil {
		return uuid.Nil, nil, err
	}

	r.EvictIdle()

	id := uuid.New()
	r.mu.Lock()
	r.workflows[id] = &workflowEntry{workflow: workflow, touched: r.now()}
	r.mu.Unlock()

	r.logger().Info("workflow started",
		slog.String("workflow_id", id.String()),
		slog.String("agent_id", agentID),
		slog.String("agent_source", string(agentCtx.Source)))
	return id, workflow, nil
}

// Get returns a live workflow and marks it as recently used.
func (r *WorkflowRegistry) Get(id uuid.UUID) (*ProposalWorkflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.workflows[id]
	if !ok {
		return nil, customError.WrapWorkflowNotFound(id.String())
	}
	entry.touched = r.now()
	return entry.workflow, nil
}

// Discard cancels a workflow and removes it.
func (r *WorkflowRegistry) Discard(id uuid.UUID) error {
	r.mu.Lock()
	entry, ok := r.workflows[id]
	delete(r.workflows, id)
	r.mu.Unlock()

	if !ok {
		return customError.WrapWorkflowNotFound(id.String())
	}
	entry.workflow.Cancel()
	return nil
}

// EvictIdle cancels and removes every session untouched for the idle TTL.
// Sessions with an operation in flight are kept. It returns the number evicted.
func (r *WorkflowRegistry) EvictIdle() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)

	var evicted []*ProposalWorkflow
	r.mu.Lock()
	for id, entry := range r.workflows {
		if entry.touched.After(cutoff) || entry.workflow.Busy() {
			continue
		}
		delete(r.workflows, id)
		evicted = append(evicted, entry.workflow)
	}
	r.mu.Unlock()

	for _, workflow := range evicted {
		workflow.Cancel()
	}
	if len(evicted) > 0 {
		r.logger().Info("idle workflows evicted", slog.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Len returns the number of live workflows.
func (r *WorkflowRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workflows)
}

func (r *WorkflowRegistry) logger() *slog.Logger {
	if r.workflowDeps.Logger != nil {
		return r.workflowDeps.Logger
	}
	return slog.Default()
}
