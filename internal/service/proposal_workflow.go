package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/agent-wallet/internal/domain"
	"github.com/segyhp/agent-wallet/internal/metrics"
	"github.com/segyhp/agent-wallet/internal/repository"
	customError "github.com/segyhp/agent-wallet/pkg/errors"
	"github.com/segyhp/agent-wallet/pkg/logger"
)

// WorkflowState is the single authoritative state of a ProposalWorkflow.
type WorkflowState int

const (
	StateIdle WorkflowState = iota
	StateValidatingForm
	StateCheckingDuplicate
	StateCreatingProposal
	StateAwaitingPaymentAmount
	StateSettlingPayment
	StateGeneratingInvoice
	StateComplete
	StateFailed
)

var stateNames = map[WorkflowState]string{
	StateIdle:                  "idle",
	StateValidatingForm:        "validating_form",
	StateCheckingDuplicate:     "checking_duplicate",
	StateCreatingProposal:      "creating_proposal",
	StateAwaitingPaymentAmount: "awaiting_payment_amount",
	StateSettlingPayment:       "settling_payment",
	StateGeneratingInvoice:     "generating_invoice",
	StateComplete:              "complete",
	StateFailed:                "failed",
}

func (s WorkflowState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the state name in JSON.
func (s WorkflowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *WorkflowState) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown workflow state %q", text)
}

// IsTerminal reports Complete and Failed.
func (s WorkflowState) IsTerminal() bool {
	return s == StateComplete || s == StateFailed
}

// transitions lists the legal moves. Failed leads back to ValidatingForm
// only while no proposal exists, and to AwaitingPaymentAmount only once one
// does. Cancel bypasses the table.
var transitions = map[WorkflowState][]WorkflowState{
	StateIdle:                  {StateValidatingForm, StateFailed},
	StateValidatingForm:        {StateCheckingDuplicate, StateFailed},
	StateCheckingDuplicate:     {StateCreatingProposal, StateFailed},
	StateCreatingProposal:      {StateAwaitingPaymentAmount, StateFailed},
	StateAwaitingPaymentAmount: {StateSettlingPayment, StateFailed},
	StateSettlingPayment:       {StateGeneratingInvoice, StateComplete, StateFailed},
	StateGeneratingInvoice:     {StateComplete},
	StateComplete:              {StateAwaitingPaymentAmount},
	StateFailed:                {StateValidatingForm, StateAwaitingPaymentAmount},
}

func canTransition(from, to WorkflowState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AgentRefresher holds the agent profile shared by every workflow of one
// agent. Agent returns the last-known profile or nil; RefreshAgent re-fetches
// it after a payment.
type AgentRefresher interface {
	Agent() *domain.Agent
	RefreshAgent(ctx context.Context, agentID string) (*domain.Agent, error)
}

// WorkflowDeps are the collaborators of a ProposalWorkflow. Journal,
// Refresher, Metrics and Logger are optional.
type WorkflowDeps struct {
	Agents         repository.AgentRepository
	Proposals      repository.ProposalRepository
	Settlements    repository.SettlementRepository
	Journal        repository.JournalRepository
	Refresher      AgentRefresher
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	Validator      *DraftValidator
	InvoiceEnabled bool
}

// WorkflowSnapshot is a read-only view of a workflow for display.
type WorkflowSnapshot struct {
	InstanceID   uuid.UUID              `json:"instance_id"`
	AgentID      string                 `json:"agent_id"`
	State        WorkflowState          `json:"state"`
	Subscribed   bool                   `json:"subscribed"`
	Modes        *domain.ModeSelection  `json:"modes,omitempty"`
	Amounts      *domain.ModeAmounts    `json:"amounts,omitempty"`
	Proposal     *domain.Proposal       `json:"proposal,omitempty"`
	FailureCode  string                 `json:"failure_code,omitempty"`
	FailureText  string                 `json:"failure_message,omitempty"`
	FieldErrors  map[string]string      `json:"field_errors,omitempty"`
	Result       *domain.WorkflowResult `json:"result,omitempty"`
	WalletAmount decimal.Decimal        `json:"wallet_amount"`
}

// ProposalWorkflow drives one subscriber from draft to settled proposal.
//
// Remote calls run without holding the lock. Each operation captures the
// instance id when it starts; Cancel rotates the id so that responses
// arriving for a cancelled instance are dropped instead of applied.
type ProposalWorkflow struct {
	deps WorkflowDeps

	mu         sync.Mutex
	id         uuid.UUID
	busy       bool
	agent      *domain.Agent
	state      WorkflowState
	failure    *customError.BusinessError
	draft      *domain.ProposalDraft
	quotation  *domain.PremiumQuotation
	modes      *domain.ModeSelection
	amounts    *domain.ModeAmounts
	proposal   *domain.Proposal
	subscribed bool
	result     *domain.WorkflowResult
}

// NewProposalWorkflow creates an idle workflow for the resolved agent.
func NewProposalWorkflow(deps WorkflowDeps, agentCtx domain.AgentContext) (*ProposalWorkflow, error) {
	if agentCtx.Agent == nil || agentCtx.Agent.AgentID == "" {
		return nil, customError.WrapAgentContextUnavailable("")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Validator == nil {
		deps.Validator = NewDraftValidator()
	}

	agent := *agentCtx.Agent
	return &ProposalWorkflow{
		deps:  deps,
		id:    uuid.New(),
		agent: &agent,
		state: StateIdle,
	}, nil
}

// Busy reports whether an operation is in flight.
func (w *ProposalWorkflow) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// State returns the current state.
func (w *ProposalWorkflow) State() WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Failure returns the reason of the Failed state, or nil.
func (w *ProposalWorkflow) Failure() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failure == nil {
		return nil
	}
	return w.failure
}

// Proposal returns a copy of the created proposal, or nil.
func (w *ProposalWorkflow) Proposal() *domain.Proposal {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.proposal == nil {
		return nil
	}
	p := *w.proposal
	return &p
}

// Result returns the composite result once Complete.
func (w *ProposalWorkflow) Result() *domain.WorkflowResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// Snapshot returns a consistent view of the workflow.
func (w *ProposalWorkflow) Snapshot() WorkflowSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := WorkflowSnapshot{
		InstanceID:   w.id,
		AgentID:      w.agent.AgentID,
		State:        w.state,
		Subscribed:   w.subscribed,
		Modes:        w.modes,
		Amounts:      w.amounts,
		Result:       w.result,
		WalletAmount: w.agent.WalletAmount,
	}
	if w.proposal != nil {
		p := *w.proposal
		snap.Proposal = &p
	}
	if w.failure != nil {
		snap.FailureCode = w.failure.Code
		snap.FailureText = w.failure.Message
		snap.FieldErrors = w.failure.Fields
	}
	return snap
}

// LoadQuotation runs the pricing phase: fetch the agent's premium quotation
// and select its default payment mode. It is rejected once a proposal exists.
func (w *ProposalWorkflow) LoadQuotation(ctx context.Context) (*domain.ModeSelection, error) {
	id, err := w.begin()
	if err != nil {
		return nil, err
	}
	defer w.end(id)

	if err := w.requireUnsubscribed("load_quotation"); err != nil {
		return nil, err
	}

	return w.fetchQuotation(ctx, id)
}

func (w *ProposalWorkflow) fetchQuotation(ctx context.Context, id uuid.UUID) (*domain.ModeSelection, error) {
	env, err := w.deps.Agents.GetPremiumQuotation(ctx, w.agentID())
	if err != nil {
		return nil, customError.WrapNetworkOrServerError(err)
	}
	if !env.IsSuccess() || env.MasterData == nil {
		return nil, customError.NewBusinessError(customError.ErrCodeNetworkOrServerError,
			messageOr(envMessage(env), "Failed to calculate premium"), customError.ErrNetworkOrServer)
	}

	modes, err := DeriveModes(env.MasterData)
	if err != nil {
		return nil, err
	}
	amounts, err := AmountsFor(modes.DefaultMode, env.MasterData)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.id != id {
		return nil, customError.WrapWorkflowCancelled()
	}
	w.quotation = env.MasterData
	w.modes = modes
	w.amounts = amounts
	return modes, nil
}

// SelectMode switches the payment mode before the proposal is created.
func (w *ProposalWorkflow) SelectMode(mode domain.SelectableMode) (*domain.ModeAmounts, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.subscribed {
		return nil, customError.WrapInvalidTransition(w.state.String(), "select_mode")
	}
	if w.quotation == nil || !w.modes.Allows(mode) {
		return nil, customError.WrapInvalidPaymentMode(string(mode))
	}

	amounts, err := AmountsFor(mode, w.quotation)
	if err != nil {
		return nil, err
	}
	w.amounts = amounts
	return amounts, nil
}

// Submit validates the draft, checks for a duplicate subscriber and creates
// the proposal, leaving the workflow in AwaitingPaymentAmount.
func (w *ProposalWorkflow) Submit(ctx context.Context, draft *domain.ProposalDraft) (*domain.Proposal, error) {
	id, err := w.begin()
	if err != nil {
		return nil, err
	}
	defer w.end(id)

	if err := w.requireUnsubscribed("submit"); err != nil {
		return nil, err
	}

	if err := w.createProposal(ctx, id, draft); err != nil {
		return nil, err
	}
	return w.Proposal(), nil
}

// Pay settles the proposal from the agent's wallet. When no proposal exists
// yet it is created first; once one exists it is reused, so calling Pay
// again never creates a second proposal.
func (w *ProposalWorkflow) Pay(ctx context.Context, draft *domain.ProposalDraft) (*domain.WorkflowResult, error) {
	id, err := w.begin()
	if err != nil {
		return nil, err
	}
	defer w.end(id)

	w.mu.Lock()
	subscribed := w.subscribed
	state := w.state
	switch {
	case subscribed && (state == StateComplete || state == StateFailed):
		err = w.transitionLocked(StateAwaitingPaymentAmount)
	case subscribed && state == StateAwaitingPaymentAmount:
	case !subscribed && (state == StateIdle || state == StateFailed):
	default:
		err = customError.WrapInvalidTransition(state.String(), StateSettlingPayment.String())
	}
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// Balance precondition, checked before any network call.
	if err := w.checkBalance(id); err != nil {
		return nil, err
	}

	if !subscribed {
		if err := w.createProposal(ctx, id, draft); err != nil {
			return nil, err
		}
	}

	result, err := w.settle(ctx, id)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel discards the draft and the client-side proposal reference and
// returns to Idle. A proposal already created on the portal is left as is.
func (w *ProposalWorkflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.deps.Logger.Info("workflow cancelled",
		slog.String("instance_id", w.id.String()),
		slog.String("agent_id", w.agent.AgentID),
		slog.String("state", w.state.String()))

	w.id = uuid.New()
	w.busy = false
	w.state = StateIdle
	w.failure = nil
	w.draft = nil
	w.proposal = nil
	w.subscribed = false
	w.result = nil
	if w.quotation != nil && w.modes != nil {
		w.amounts, _ = AmountsFor(w.modes.DefaultMode, w.quotation)
	}
}

func (w *ProposalWorkflow) createProposal(ctx context.Context, id uuid.UUID, input *domain.ProposalDraft) error {
	// Validating form
	if err := w.advance(id, StateValidatingForm); err != nil {
		return err
	}
	if input == nil {
		input = w.storedDraft()
	}
	if input == nil {
		return w.fail(id, StateValidatingForm, customError.WrapFormInvalid(map[string]string{"form": "Subscriber details are required"}))
	}

	draft := *input
	fields := w.deps.Validator.Validate(&draft)
	draft.FieldErrors = fields
	w.mu.Lock()
	w.draft = &draft
	w.mu.Unlock()
	if len(fields) > 0 {
		return w.fail(id, StateValidatingForm, customError.WrapFormInvalid(fields))
	}
	w.observe(StateValidatingForm, "ok")

	// Checking duplicate
	if err := w.advance(id, StateCheckingDuplicate); err != nil {
		return err
	}
	dup, err := w.deps.Proposals.CheckDuplicateSubscriber(ctx, draft.Mobile, draft.Email)
	if err := w.stillCurrent(id); err != nil {
		return err
	}
	if err == nil && dup == nil {
		err = errors.New("empty duplicate check response")
	}
	if err != nil {
		return w.fail(id, StateCheckingDuplicate, customError.WrapNetworkOrServerError(err))
	}
	switch dup.Status {
	case domain.StatusSuccess:
	case domain.StatusFailure, domain.StatusError:
		return w.fail(id, StateCheckingDuplicate, customError.WrapDuplicateSubscriber(dup.Message))
	default:
		return w.fail(id, StateCheckingDuplicate, customError.WrapUnexpectedDuplicateResponse(dup.Status))
	}
	w.observe(StateCheckingDuplicate, "ok")

	// Creating proposal
	if err := w.advance(id, StateCreatingProposal); err != nil {
		return err
	}
	amounts := w.currentAmounts()
	if amounts == nil {
		if _, err := w.fetchQuotation(ctx, id); err != nil {
			if errors.Is(err, customError.ErrWorkflowCancelled) {
				return err
			}
			return w.fail(id, StateCreatingProposal, err)
		}
		amounts = w.currentAmounts()
	}

	request := &domain.CreateProposalRequest{
		AgentID:        w.agentID(),
		FirstName:      draft.FirstName,
		LastName:       draft.LastName,
		Mobile:         draft.Mobile,
		Email:          draft.Email,
		PAN:            draft.PAN,
		Pincode:        draft.Pincode,
		PlanID:         draft.PlanID,
		PaymentMode:    amounts.PaymentModeLabel,
		AgentCollected: amounts.AgentCollected,
	}
	created, err := w.deps.Proposals.CreateProposal(ctx, request)
	if err := w.stillCurrent(id); err != nil {
		return err
	}
	if err != nil {
		return w.fail(id, StateCreatingProposal, customError.WrapNetworkOrServerError(err))
	}
	if !created.IsSuccess() || created.MasterData == nil {
		w.journal(ctx, id, domain.JournalKindProposalCreated, "", amounts.AgentCollected, domain.JournalOutcomeFailed, envMessage(created))
		return w.fail(id, StateCreatingProposal, customError.WrapProposalCreationFailed(envMessage(created)))
	}

	proposal := &domain.Proposal{
		ProposalID:            created.MasterData.ProposalID,
		ExternalID:            created.MasterData.ProposalExternalID,
		ApplicationID:         created.MasterData.ApplicationID,
		SelectedPaymentMode:   amounts.PaymentModeLabel,
		SelectedPremiumAmount: amounts.AgentCollected,
		PaymentStatus:         domain.PaymentStatusPending,
	}
	if proposal.ProposalID == "" {
		proposal.ProposalID = proposal.ApplicationID
	}

	w.mu.Lock()
	if w.id != id {
		w.mu.Unlock()
		return customError.WrapWorkflowCancelled()
	}
	w.proposal = proposal
	w.subscribed = true
	w.mu.Unlock()

	w.journal(ctx, id, domain.JournalKindProposalCreated, proposal.ExternalID, proposal.SelectedPremiumAmount, domain.JournalOutcomeSucceeded, "")
	w.observe(StateCreatingProposal, "ok")
	w.deps.Logger.Info("proposal created",
		slog.String("agent_id", request.AgentID),
		slog.String("proposal_external_id", proposal.ExternalID),
		slog.String("application_id", proposal.ApplicationID))

	return w.advance(id, StateAwaitingPaymentAmount)
}

func (w *ProposalWorkflow) checkBalance(id uuid.UUID) error {
	// Another workflow or a batch may have debited the wallet since this one started.
	var shared *domain.Agent
	if w.deps.Refresher != nil {
		shared = w.deps.Refresher.Agent()
	}

	w.mu.Lock()
	var required *decimal.Decimal
	if w.proposal != nil {
		amount := w.proposal.SelectedPremiumAmount
		required = &amount
	} else if w.amounts != nil {
		amount := w.amounts.AgentCollected
		required = &amount
	}
	available := w.agent.WalletAmount
	if shared != nil {
		available = shared.WalletAmount
	}
	w.mu.Unlock()

	if required != nil && required.LessThanOrEqual(available) {
		return nil
	}

	requiredText := "unknown"
	if required != nil {
		requiredText = required.StringFixed(2)
	}
	return w.fail(id, StateAwaitingPaymentAmount, customError.WrapInsufficientWalletBalance(requiredText, available.StringFixed(2)))
}

func (w *ProposalWorkflow) settle(ctx context.Context, id uuid.UUID) (*domain.WorkflowResult, error) {
	w.mu.Lock()
	if w.id != id || w.proposal == nil {
		w.mu.Unlock()
		return nil, customError.WrapWorkflowCancelled()
	}
	proposal := *w.proposal
	quotation := w.quotation
	draft := w.draft
	w.mu.Unlock()

	if err := w.advance(id, StateSettlingPayment); err != nil {
		return nil, err
	}

	request := &domain.SettlementRequest{
		AgentID:            w.agentID(),
		ProposalID:         proposal.ProposalID,
		ProposalExternalID: proposal.ExternalID,
		ApplicationID:      proposal.ApplicationID,
		PaymentMode:        proposal.SelectedPaymentMode,
		Amount:             proposal.SelectedPremiumAmount,
	}
	if quotation != nil {
		request.PremiumAmount = quotation.PremiumAmount
		request.GSTAmount = quotation.GSTAmount
		request.CommissionAgent = quotation.CommissionAgent
		request.TDSAmount = quotation.TDSAmount
		request.PayoutPercentage = quotation.PayoutPercentage
	}

	settled, err := w.deps.Settlements.SettlePayment(ctx, request)
	if err := w.stillCurrent(id); err != nil {
		return nil, err
	}
	if err != nil {
		w.deps.Metrics.ObserveSettlement("wallet", customError.ErrCodeNetworkOrServerError)
		return nil, w.fail(id, StateSettlingPayment, customError.WrapNetworkOrServerError(err))
	}
	if !settled.IsSuccess() {
		w.deps.Metrics.ObserveSettlement("wallet", customError.ErrCodeSettlementFailed)
		w.journal(ctx, id, domain.JournalKindWalletSettlement, proposal.ExternalID, request.Amount, domain.JournalOutcomeFailed, envMessage(settled))
		return nil, w.fail(id, StateSettlingPayment, customError.WrapSettlementFailed(envMessage(settled)))
	}
	w.deps.Metrics.ObserveSettlement("wallet", "ok")
	w.observe(StateSettlingPayment, "ok")
	w.journal(ctx, id, domain.JournalKindWalletSettlement, proposal.ExternalID, request.Amount, domain.JournalOutcomeSucceeded, settled.Message)

	w.refreshAgent(ctx, id)

	invoiceURL := w.generateInvoice(ctx, id, proposal.ExternalID)

	result := &domain.WorkflowResult{
		Settlement:         settled.MasterData,
		ProposalID:         proposal.ProposalID,
		ProposalExternalID: proposal.ExternalID,
		ApplicationID:      proposal.ApplicationID,
		PaymentMode:        proposal.SelectedPaymentMode,
		AmountPaid:         proposal.SelectedPremiumAmount,
		InvoiceURL:         invoiceURL,
	}
	if draft != nil {
		result.Draft = *draft
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.id != id {
		return nil, customError.WrapWorkflowCancelled()
	}
	if invoiceURL != "" {
		w.proposal.InvoicePDFURL = invoiceURL
	}
	w.proposal.PaymentStatus = domain.PaymentStatusInProcess
	if settled.MasterData != nil && settled.MasterData.PolicyNumber != "" {
		w.proposal.PolicyNumber = settled.MasterData.PolicyNumber
	}
	if err := w.transitionLocked(StateComplete); err != nil {
		return nil, err
	}
	w.result = result
	return result, nil
}

// generateInvoice is best-effort: failures are logged and counted, never returned.
func (w *ProposalWorkflow) generateInvoice(ctx context.Context, id uuid.UUID, externalID string) string {
	if !w.deps.InvoiceEnabled || externalID == "" {
		return ""
	}
	if err := w.advance(id, StateGeneratingInvoice); err != nil {
		return ""
	}

	env, err := w.deps.Proposals.GenerateInvoice(ctx, externalID)
	if err == nil && env != nil && env.MasterData != nil && env.MasterData.PDFURL != "" {
		w.observe(StateGeneratingInvoice, "ok")
		return env.MasterData.PDFURL
	}

	if err == nil && env != nil && env.IsSuccess() {
		// Success without a URL is tolerated silently.
		return ""
	}
	if err == nil {
		err = errors.New(messageOr(envMessage(env), "invoice service returned no document"))
	}
	skipped := customError.WrapInvoiceGenerationSkipped(err)
	w.deps.Metrics.ObserveInvoiceSkipped()
	w.observe(StateGeneratingInvoice, skipped.Code)
	w.deps.Logger.Warn("invoice generation skipped",
		slog.String("agent_id", w.agentID()),
		slog.String("proposal_external_id", externalID),
		slog.Any("error", err))
	w.journal(ctx, id, domain.JournalKindInvoiceSkipped, externalID, decimal.Zero, domain.JournalOutcomeFailed, err.Error())
	return ""
}

func (w *ProposalWorkflow) refreshAgent(ctx context.Context, id uuid.UUID) {
	if w.deps.Refresher == nil {
		return
	}
	agent, err := w.deps.Refresher.RefreshAgent(ctx, w.agentID())
	if err != nil {
		w.deps.Logger.Warn("agent refresh after settlement failed",
			slog.String("agent_id", w.agentID()),
			slog.Any("error", err))
		return
	}
	if agent == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.id == id {
		refreshed := *agent
		w.agent = &refreshed
	}
}

// begin marks an operation in flight and returns the instance id it runs under.
func (w *ProposalWorkflow) begin() (uuid.UUID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return uuid.Nil, customError.WrapWorkflowBusy()
	}
	w.busy = true
	return w.id, nil
}

func (w *ProposalWorkflow) end(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.id == id {
		w.busy = false
	}
}

func (w *ProposalWorkflow) stillCurrent(id uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.id != id {
		return customError.WrapWorkflowCancelled()
	}
	return nil
}

func (w *ProposalWorkflow) advance(id uuid.UUID, to WorkflowState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.id != id {
		return customError.WrapWorkflowCancelled()
	}
	return w.transitionLocked(to)
}

func (w *ProposalWorkflow) transitionLocked(to WorkflowState) error {
	if !canTransition(w.state, to) {
		return customError.WrapInvalidTransition(w.state.String(), to.String())
	}
	w.deps.Logger.Debug("workflow transition",
		slog.String("instance_id", w.id.String()),
		slog.String("from", w.state.String()),
		slog.String("to", to.String()))
	if w.state == StateFailed {
		w.failure = nil
	}
	w.state = to
	return nil
}

// fail moves the workflow to Failed and returns cause as a BusinessError.
func (w *ProposalWorkflow) fail(id uuid.UUID, phase WorkflowState, cause error) error {
	var be *customError.BusinessError
	if !errors.As(cause, &be) {
		be = customError.WrapNetworkOrServerError(cause)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.id != id {
		return customError.WrapWorkflowCancelled()
	}
	if w.state != StateFailed {
		if err := w.transitionLocked(StateFailed); err != nil {
			return err
		}
	}
	w.failure = be

	w.deps.Metrics.ObservePhase(phase.String(), be.Code)
	w.deps.Logger.Info("workflow failed",
		slog.String("instance_id", w.id.String()),
		slog.String("agent_id", w.agent.AgentID),
		slog.String("phase", phase.String()),
		slog.String("code", be.Code),
		slog.String("message", be.Message))
	return be
}

func (w *ProposalWorkflow) requireUnsubscribed(operation string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.subscribed || (w.state != StateIdle && w.state != StateFailed) {
		return customError.WrapInvalidTransition(w.state.String(), operation)
	}
	return nil
}

func (w *ProposalWorkflow) observe(phase WorkflowState, outcome string) {
	w.deps.Metrics.ObservePhase(phase.String(), outcome)
}

func (w *ProposalWorkflow) journal(ctx context.Context, id uuid.UUID, kind, reference string, amount decimal.Decimal, outcome, message string) {
	if w.deps.Journal == nil {
		return
	}
	workflowID := id
	entry := &domain.JournalEntry{
		WorkflowID: &workflowID,
		AgentID:    w.agentID(),
		Kind:       kind,
		Reference:  reference,
		Amount:     amount,
		Outcome:    outcome,
		Message:    message,
	}
	if err := w.deps.Journal.Record(ctx, entry); err != nil {
		w.deps.Logger.Warn("failed to record journal entry",
			slog.String("kind", kind),
			slog.Any("error", err))
	}
}

func (w *ProposalWorkflow) agentID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agent.AgentID
}

func (w *ProposalWorkflow) storedDraft() *domain.ProposalDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *ProposalWorkflow) currentAmounts() *domain.ModeAmounts {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.amounts
}

func messageOr(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}

func envMessage[T any](env *domain.Envelope[T]) string {
	if env == nil {
		return ""
	}
	return env.Message
}
