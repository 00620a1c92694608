package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/agent-wallet/internal/domain"
	"github.com/segyhp/agent-wallet/internal/mocks"
	customError "github.com/segyhp/agent-wallet/pkg/errors"
)

type workflowMocks struct {
	agents      *mocks.MockAgentRepository
	proposals   *mocks.MockProposalRepository
	settlements *mocks.MockSettlementRepository
	journal     *mocks.MockJournalRepository
}

func newTestWorkflow(t *testing.T, wallet int64, invoiceEnabled bool) (*ProposalWorkflow, *workflowMocks) {
	t.Helper()

	m := &workflowMocks{
		agents:      new(mocks.MockAgentRepository),
		proposals:   new(mocks.MockProposalRepository),
		settlements: new(mocks.MockSettlementRepository),
		journal:     new(mocks.MockJournalRepository),
	}
	m.journal.On("Record", mock.Anything, mock.Anything).Return(nil).Maybe()

	agent := &domain.Agent{AgentID: "AG-1", AgentCode: "AGC-1", WalletAmount: decimal.NewFromInt(wallet)}
	w, err := NewProposalWorkflow(WorkflowDeps{
		Agents:         m.agents,
		Proposals:      m.proposals,
		Settlements:    m.settlements,
		Journal:        m.journal,
		InvoiceEnabled: invoiceEnabled,
	}, domain.AgentContext{Agent: agent, Source: domain.AgentSourcePayload})
	require.NoError(t, err)

	return w, m
}

func (m *workflowMocks) quotationOK(mode string) {
	m.agents.On("GetPremiumQuotation", mock.Anything, "AG-1").Return(&domain.Envelope[*domain.PremiumQuotation]{
		Status:     domain.StatusSuccess,
		MasterData: quotation(mode),
	}, nil)
}

func (m *workflowMocks) duplicateCheck(status, message string) {
	m.proposals.On("CheckDuplicateSubscriber", mock.Anything, "9876543210", "asha@example.com").
		Return(&domain.StatusReply{Status: status, Message: message}, nil)
}

func (m *workflowMocks) createOK() {
	m.proposals.On("CreateProposal", mock.Anything, mock.Anything).Return(&domain.Envelope[*domain.CreatedProposal]{
		Status: domain.StatusSuccess,
		MasterData: &domain.CreatedProposal{
			ProposalID:         "P-100",
			ProposalExternalID: "EXT-100",
			ApplicationID:      "APP-100",
		},
	}, nil)
}

func settlementOK() *domain.Envelope[*domain.SettlementResponse] {
	return &domain.Envelope[*domain.SettlementResponse]{
		Status:     domain.StatusSuccess,
		Message:    "Payment applied",
		MasterData: &domain.SettlementResponse{PaymentStatus: "InProcess", TransactionID: "TX-1", PolicyNumber: "POL-1"},
	}
}

func TestNewProposalWorkflow_RequiresAgent(t *testing.T) {
	_, err := NewProposalWorkflow(WorkflowDeps{}, domain.AgentContext{Source: domain.AgentSourceNone})
	assert.ErrorIs(t, err, customError.ErrAgentContextUnavailable)
}

func TestProposalWorkflow_SubmitAndPay(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, true)
	m.quotationOK(domain.PaymentModeFullPay)
	m.duplicateCheck(domain.StatusSuccess, "")
	m.createOK()
	m.settlements.On("SettlePayment", mock.Anything, mock.Anything).Return(settlementOK(), nil)
	m.proposals.On("GenerateInvoice", mock.Anything, "EXT-100").Return(&domain.Envelope[*domain.Invoice]{
		Status:     domain.StatusSuccess,
		MasterData: &domain.Invoice{PDFURL: "https://portal.example/invoices/EXT-100.pdf"},
	}, nil)

	modes, err := w.LoadQuotation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeFull, modes.DefaultMode)

	amounts, err := w.SelectMode(domain.ModeDiscount)
	require.NoError(t, err)
	assert.True(t, amounts.AgentCollected.Equal(decimal.NewFromInt(850)))

	proposal, err := w.Submit(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingPaymentAmount, w.State())
	assert.Equal(t, "EXT-100", proposal.ExternalID)
	assert.Equal(t, "Discount", proposal.SelectedPaymentMode)
	assert.True(t, proposal.SelectedPremiumAmount.Equal(decimal.NewFromInt(850)))

	_, err = w.SelectMode(domain.ModeFull)
	assert.ErrorIs(t, err, customError.ErrInvalidTransition)

	result, err := w.Pay(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, w.State())
	assert.Equal(t, "https://portal.example/invoices/EXT-100.pdf", result.InvoiceURL)
	assert.True(t, result.AmountPaid.Equal(decimal.NewFromInt(850)))
	assert.Equal(t, "ABCDE1234F", result.Draft.PAN)
	assert.Equal(t, "TX-1", result.Settlement.TransactionID)

	m.proposals.AssertCalled(t, "CreateProposal", mock.Anything, mock.MatchedBy(func(r *domain.CreateProposalRequest) bool {
		return r.AgentID == "AG-1" && r.PaymentMode == "Discount" && r.AgentCollected.Equal(decimal.NewFromInt(850))
	}))
	assert.Equal(t, domain.PaymentStatusInProcess, w.Proposal().PaymentStatus)
	assert.Equal(t, "POL-1", w.Proposal().PolicyNumber)
}

func TestProposalWorkflow_SettlementCarriesProposalIdentifiers(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)
	m.quotationOK(domain.PaymentModeFullPay)
	m.duplicateCheck(domain.StatusSuccess, "")
	m.createOK()
	m.settlements.On("SettlePayment", mock.Anything, mock.MatchedBy(func(r *domain.SettlementRequest) bool {
		return r.ProposalExternalID == "EXT-100" &&
			r.ApplicationID == "APP-100" &&
			r.ProposalID == "P-100" &&
			r.GSTAmount.Equal(decimal.NewFromInt(180)) &&
			r.TDSAmount.Equal(decimal.NewFromInt(15)) &&
			r.Amount.Equal(decimal.NewFromInt(1000))
	})).Return(settlementOK(), nil)

	_, err := w.LoadQuotation(context.Background())
	require.NoError(t, err)

	result, err := w.Pay(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Equal(t, "EXT-100", result.ProposalExternalID)
	assert.Equal(t, "APP-100", result.ApplicationID)
	m.proposals.AssertNotCalled(t, "GenerateInvoice", mock.Anything, mock.Anything)
	m.settlements.AssertExpectations(t)
}

func TestProposalWorkflow_DuplicateSubscriber(t *testing.T) {
	tests := []struct {
		name         string
		status       string
		message      string
		expectedCode string
		expectedErr  error
	}{
		{
			name:         "Failure status blocks creation",
			status:       domain.StatusFailure,
			message:      "Mobile already registered",
			expectedCode: customError.ErrCodeDuplicateSubscriber,
			expectedErr:  customError.ErrDuplicateSubscriber,
		},
		{
			name:         "Error status blocks creation",
			status:       domain.StatusError,
			expectedCode: customError.ErrCodeDuplicateSubscriber,
			expectedErr:  customError.ErrDuplicateSubscriber,
		},
		{
			name:         "Unknown status is unexpected",
			status:       "Pending",
			expectedCode: customError.ErrCodeUnexpectedDuplicateResponse,
			expectedErr:  customError.ErrUnexpectedDuplicateResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, m := newTestWorkflow(t, 5000, false)
			m.quotationOK(domain.PaymentModeFullPay)
			m.duplicateCheck(tt.status, tt.message)

			_, err := w.LoadQuotation(context.Background())
			require.NoError(t, err)

			_, err = w.Submit(context.Background(), validDraft())
			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expectedCode, customError.CodeOf(err))
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}

			assert.Equal(t, StateFailed, w.State())
			assert.Equal(t, tt.expectedCode, customError.CodeOf(w.Failure()))
			m.proposals.AssertNumberOfCalls(t, "CreateProposal", 0)
		})
	}
}

func TestProposalWorkflow_InsufficientBalanceMakesNoCalls(t *testing.T) {
	w, m := newTestWorkflow(t, 500, false)
	m.quotationOK(domain.PaymentModeFullPay)

	_, err := w.LoadQuotation(context.Background())
	require.NoError(t, err)

	_, err = w.Pay(context.Background(), validDraft())
	assert.ErrorIs(t, err, customError.ErrInsufficientWalletBalance)
	assert.Equal(t, StateFailed, w.State())

	m.proposals.AssertNotCalled(t, "CheckDuplicateSubscriber", mock.Anything, mock.Anything, mock.Anything)
	m.proposals.AssertNotCalled(t, "CreateProposal", mock.Anything, mock.Anything)
	m.settlements.AssertNotCalled(t, "SettlePayment", mock.Anything, mock.Anything)
}

func TestProposalWorkflow_PayWithoutQuotationIsInsufficient(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)

	_, err := w.Pay(context.Background(), validDraft())
	assert.ErrorIs(t, err, customError.ErrInsufficientWalletBalance)
	m.agents.AssertNotCalled(t, "GetPremiumQuotation", mock.Anything, mock.Anything)
}

func TestProposalWorkflow_PayTwiceCreatesOneProposal(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)
	m.quotationOK(domain.PaymentModeFullPay)
	m.duplicateCheck(domain.StatusSuccess, "")
	m.createOK()
	m.settlements.On("SettlePayment", mock.Anything, mock.Anything).Return(settlementOK(), nil)

	_, err := w.LoadQuotation(context.Background())
	require.NoError(t, err)

	_, err = w.Pay(context.Background(), validDraft())
	require.NoError(t, err)
	_, err = w.Pay(context.Background(), validDraft())
	require.NoError(t, err)

	m.proposals.AssertNumberOfCalls(t, "CreateProposal", 1)
	m.proposals.AssertNumberOfCalls(t, "CheckDuplicateSubscriber", 1)
	m.settlements.AssertNumberOfCalls(t, "SettlePayment", 2)
}

func TestProposalWorkflow_RetrySettlementAgainstExistingProposal(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)
	m.quotationOK(domain.PaymentModeFullPay)
	m.duplicateCheck(domain.StatusSuccess, "")
	m.createOK()
	m.settlements.On("SettlePayment", mock.Anything, mock.Anything).Return(&domain.Envelope[*domain.SettlementResponse]{
		Status:  domain.StatusFailure,
		Message: "Wallet locked",
	}, nil).Once()
	m.settlements.On("SettlePayment", mock.Anything, mock.Anything).Return(settlementOK(), nil).Once()

	_, err := w.LoadQuotation(context.Background())
	require.NoError(t, err)

	_, err = w.Pay(context.Background(), validDraft())
	assert.ErrorIs(t, err, customError.ErrSettlementFailed)
	assert.Contains(t, err.Error(), "Wallet locked")
	assert.Equal(t, StateFailed, w.State())
	require.NotNil(t, w.Proposal())

	result, err := w.Pay(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "EXT-100", result.ProposalExternalID)
	assert.Nil(t, w.Failure())
	m.proposals.AssertNumberOfCalls(t, "CreateProposal", 1)
}

func TestProposalWorkflow_FormInvalidThenCorrected(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)
	m.quotationOK(domain.PaymentModeFullPay)
	m.duplicateCheck(domain.StatusSuccess, "")
	m.createOK()

	_, err := w.LoadQuotation(context.Background())
	require.NoError(t, err)

	bad := validDraft()
	bad.Mobile = "123"
	bad.Pincode = ""
	_, err = w.Submit(context.Background(), bad)
	assert.ErrorIs(t, err, customError.ErrFormInvalid)

	var be *customError.BusinessError
	require.True(t, errors.As(err, &be))
	assert.Contains(t, be.Fields, "mobile")
	assert.Contains(t, be.Fields, "pincode")
	assert.Contains(t, be.Message, "mobile, pincode")
	m.proposals.AssertNotCalled(t, "CheckDuplicateSubscriber", mock.Anything, mock.Anything, mock.Anything)

	proposal, err := w.Submit(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Equal(t, "APP-100", proposal.ApplicationID)
	assert.Equal(t, StateAwaitingPaymentAmount, w.State())
}

func TestProposalWorkflow_LazyQuotationOnSubmit(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)
	m.quotationOK(domain.PaymentModeUpfront)
	m.duplicateCheck(domain.StatusSuccess, "")
	m.createOK()

	proposal, err := w.Submit(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Equal(t, "Upfront Commission", proposal.SelectedPaymentMode)
	assert.True(t, proposal.SelectedPremiumAmount.Equal(decimal.NewFromInt(800)))
}

func TestProposalWorkflow_ProposalCreationFailed(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)
	m.quotationOK(domain.PaymentModeFullPay)
	m.duplicateCheck(domain.StatusSuccess, "")
	m.proposals.On("CreateProposal", mock.Anything, mock.Anything).Return(&domain.Envelope[*domain.CreatedProposal]{
		Status:  domain.StatusFailure,
		Message: "Plan not available in pincode",
	}, nil)

	_, err := w.LoadQuotation(context.Background())
	require.NoError(t, err)

	_, err = w.Pay(context.Background(), validDraft())
	assert.ErrorIs(t, err, customError.ErrProposalCreationFailed)
	assert.Contains(t, err.Error(), "Plan not available in pincode")
	assert.Nil(t, w.Proposal())
	m.settlements.AssertNotCalled(t, "SettlePayment", mock.Anything, mock.Anything)
}

func TestProposalWorkflow_TransportErrorIsGeneric(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)
	m.quotationOK(domain.PaymentModeFullPay)
	m.proposals.On("CheckDuplicateSubscriber", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	_, err := w.LoadQuotation(context.Background())
	require.NoError(t, err)

	_, err = w.Submit(context.Background(), validDraft())
	assert.ErrorIs(t, err, customError.ErrNetworkOrServer)

	var be *customError.BusinessError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, customError.GenericFailureMessage, be.Message)
}

func TestProposalWorkflow_InvoiceFailureIsSwallowed(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, true)
	m.quotationOK(domain.PaymentModeFullPay)
	m.duplicateCheck(domain.StatusSuccess, "")
	m.createOK()
	m.settlements.On("SettlePayment", mock.Anything, mock.Anything).Return(settlementOK(), nil)
	m.proposals.On("GenerateInvoice", mock.Anything, "EXT-100").Return(nil, errors.New("pdf renderer down"))

	_, err := w.LoadQuotation(context.Background())
	require.NoError(t, err)

	result, err := w.Pay(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Empty(t, result.InvoiceURL)
	assert.Equal(t, StateComplete, w.State())
	m.journal.AssertCalled(t, "Record", mock.Anything, mock.MatchedBy(func(e *domain.JournalEntry) bool {
		return e.Kind == domain.JournalKindInvoiceSkipped && e.Reference == "EXT-100"
	}))
}

func TestProposalWorkflow_CancelDropsLateResponse(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)
	m.quotationOK(domain.PaymentModeFullPay)
	m.proposals.On("CheckDuplicateSubscriber", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { w.Cancel() }).
		Return(&domain.StatusReply{Status: domain.StatusSuccess}, nil)

	_, err := w.LoadQuotation(context.Background())
	require.NoError(t, err)
	before := w.Snapshot().InstanceID

	_, err = w.Submit(context.Background(), validDraft())
	assert.ErrorIs(t, err, customError.ErrWorkflowCancelled)

	snap := w.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.NotEqual(t, before, snap.InstanceID)
	assert.False(t, snap.Subscribed)
	require.NotNil(t, snap.Amounts)
	m.proposals.AssertNotCalled(t, "CreateProposal", mock.Anything, mock.Anything)
}

func TestProposalWorkflow_CancelAfterProposal(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)
	m.quotationOK(domain.PaymentModeFullPay)
	m.duplicateCheck(domain.StatusSuccess, "")
	m.createOK()

	_, err := w.Submit(context.Background(), validDraft())
	require.NoError(t, err)

	w.Cancel()

	assert.Equal(t, StateIdle, w.State())
	assert.Nil(t, w.Proposal())
	_, err = w.SelectMode(domain.ModeDiscount)
	assert.NoError(t, err)
}

// cancellingRefresher cancels the workflow the first time its balance is read.
type cancellingRefresher struct {
	workflow *ProposalWorkflow
	armed    bool
}

func (r *cancellingRefresher) Agent() *domain.Agent {
	if r.armed {
		r.armed = false
		r.workflow.Cancel()
	}
	return nil
}

func (r *cancellingRefresher) RefreshAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	return nil, nil
}

func TestProposalWorkflow_CancelDuringPayStopsBeforeSettlement(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)
	m.quotationOK(domain.PaymentModeFullPay)
	m.duplicateCheck(domain.StatusSuccess, "")
	m.createOK()

	_, err := w.LoadQuotation(context.Background())
	require.NoError(t, err)
	_, err = w.Submit(context.Background(), validDraft())
	require.NoError(t, err)

	refresher := &cancellingRefresher{workflow: w, armed: true}
	w.deps.Refresher = refresher

	var result *domain.WorkflowResult
	assert.NotPanics(t, func() {
		result, err = w.Pay(context.Background(), nil)
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, customError.ErrWorkflowCancelled)
	assert.Equal(t, StateIdle, w.State())
	assert.Nil(t, w.Proposal())
	m.settlements.AssertNotCalled(t, "SettlePayment", mock.Anything, mock.Anything)
}

func TestProposalWorkflow_BusyRejectsConcurrentOperation(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)
	m.quotationOK(domain.PaymentModeFullPay)

	var nested error
	m.proposals.On("CheckDuplicateSubscriber", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { _, nested = w.Submit(context.Background(), validDraft()) }).
		Return(&domain.StatusReply{Status: domain.StatusFailure}, nil)

	_, err := w.Submit(context.Background(), validDraft())
	assert.ErrorIs(t, err, customError.ErrDuplicateSubscriber)
	assert.ErrorIs(t, nested, customError.ErrWorkflowBusy)
}

func TestProposalWorkflow_SelectModeRejectsUnavailable(t *testing.T) {
	w, m := newTestWorkflow(t, 5000, false)
	m.quotationOK(domain.PaymentModeUpfront)

	_, err := w.SelectMode(domain.ModeFull)
	assert.ErrorIs(t, err, customError.ErrInvalidPaymentMode)

	_, err = w.LoadQuotation(context.Background())
	require.NoError(t, err)

	_, err = w.SelectMode(domain.ModeDiscount)
	assert.ErrorIs(t, err, customError.ErrInvalidPaymentMode)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, canTransition(StateIdle, StateValidatingForm))
	assert.True(t, canTransition(StateSettlingPayment, StateComplete))
	assert.False(t, canTransition(StateIdle, StateSettlingPayment))
	assert.False(t, canTransition(StateValidatingForm, StateCreatingProposal))
	assert.False(t, canTransition(StateGeneratingInvoice, StateFailed))
	assert.True(t, StateFailed.IsTerminal())
	assert.Equal(t, "awaiting_payment_amount", StateAwaitingPaymentAmount.String())
}
