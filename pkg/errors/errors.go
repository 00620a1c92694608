package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors
var (
	ErrFormInvalid                 = errors.New("form is invalid")
	ErrDuplicateSubscriber         = errors.New("subscriber already exists")
	ErrUnexpectedDuplicateResponse = errors.New("unexpected duplicate check response")
	ErrProposalCreationFailed      = errors.New("proposal creation failed")
	ErrInsufficientWalletBalance   = errors.New("insufficient wallet balance")
	ErrSettlementFailed            = errors.New("settlement failed")
	ErrInvoiceGenerationSkipped    = errors.New("invoice generation skipped")
	ErrNoProposalsSelected         = errors.New("no proposals selected")
	ErrNoValidPoliciesSelected     = errors.New("no valid policies selected")
	ErrNetworkOrServer             = errors.New("network or server error")
	ErrInvalidPaymentMode          = errors.New("invalid payment mode")
	ErrInvalidTransition           = errors.New("invalid workflow transition")
	ErrWalletNotEligible           = errors.New("wallet is not eligible")
	ErrWorkflowCancelled           = errors.New("workflow was cancelled")
	ErrWorkflowNotFound            = errors.New("workflow not found")
	ErrWorkflowBusy                = errors.New("workflow operation already in progress")
	ErrAgentContextUnavailable     = errors.New("agent context unavailable")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
	// Fields holds per-field messages for FORM_INVALID.
	Fields map[string]string
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeFormInvalid                 = "FORM_INVALID"
	ErrCodeDuplicateSubscriber         = "DUPLICATE_SUBSCRIBER"
	ErrCodeUnexpectedDuplicateResponse = "UNEXPECTED_DUPLICATE_RESPONSE"
	ErrCodeProposalCreationFailed      = "PROPOSAL_CREATION_FAILED"
	ErrCodeInsufficientWalletBalance   = "INSUFFICIENT_WALLET_BALANCE"
	ErrCodeSettlementFailed            = "SETTLEMENT_FAILED"
	ErrCodeInvoiceGenerationSkipped    = "INVOICE_GENERATION_SKIPPED"
	ErrCodeNoProposalsSelected         = "NO_PROPOSALS_SELECTED"
	ErrCodeNoValidPoliciesSelected     = "NO_VALID_POLICIES_SELECTED"
	ErrCodeNetworkOrServerError        = "NETWORK_OR_SERVER_ERROR"
	ErrCodeInvalidPaymentMode          = "INVALID_PAYMENT_MODE"
	ErrCodeInvalidTransition           = "INVALID_TRANSITION"
	ErrCodeWalletNotEligible           = "WALLET_NOT_ELIGIBLE"
	ErrCodeWorkflowCancelled           = "WORKFLOW_CANCELLED"
	ErrCodeWorkflowNotFound            = "WORKFLOW_NOT_FOUND"
	ErrCodeWorkflowBusy                = "WORKFLOW_BUSY"
	ErrCodeAgentContextUnavailable     = "AGENT_CONTEXT_UNAVAILABLE"
	ErrCodeDatabaseError               = "DATABASE_ERROR"
	ErrCodeCacheError                  = "CACHE_ERROR"
)

// GenericFailureMessage is shown when the portal gave no message of its own.
const GenericFailureMessage = "Something went wrong. Please try again."

// CodeOf returns the business code carried by err, or "" when err is not a BusinessError.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// serverMessage prefers the portal's own wording.
func serverMessage(message, fallback string) string {
	if strings.TrimSpace(message) != "" {
		return message
	}
	return fallback
}

func WrapFormInvalid(fields map[string]string) *BusinessError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	be := NewBusinessError(
		ErrCodeFormInvalid,
		fmt.Sprintf("Please correct the following fields: %s", strings.Join(names, ", ")),
		ErrFormInvalid,
	)
	be.Fields = fields
	return be
}

func WrapDuplicateSubscriber(message string) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicateSubscriber,
		serverMessage(message, "A subscriber with this mobile number or email already exists"),
		ErrDuplicateSubscriber,
	)
}

func WrapUnexpectedDuplicateResponse(status string) *BusinessError {
	return NewBusinessError(
		ErrCodeUnexpectedDuplicateResponse,
		fmt.Sprintf("Unexpected duplicate check status %q", status),
		ErrUnexpectedDuplicateResponse,
	)
}

func WrapProposalCreationFailed(message string) *BusinessError {
	return NewBusinessError(
		ErrCodeProposalCreationFailed,
		serverMessage(message, "Failed to create proposal"),
		ErrProposalCreationFailed,
	)
}

func WrapInsufficientWalletBalance(required, available string) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientWalletBalance,
		fmt.Sprintf("Wallet balance %s is less than the amount %s to be collected", available, required),
		ErrInsufficientWalletBalance,
	)
}

func WrapSettlementFailed(message string) *BusinessError {
	return NewBusinessError(
		ErrCodeSettlementFailed,
		serverMessage(message, "Failed to apply payment. Please try again."),
		ErrSettlementFailed,
	)
}

func WrapInvoiceGenerationSkipped(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeInvoiceGenerationSkipped,
		"Invoice could not be generated",
		errors.Join(ErrInvoiceGenerationSkipped, err),
	)
}

func WrapNoProposalsSelected() *BusinessError {
	return NewBusinessError(
		ErrCodeNoProposalsSelected,
		"Please select at least one proposal",
		ErrNoProposalsSelected,
	)
}

func WrapNoValidPoliciesSelected() *BusinessError {
	return NewBusinessError(
		ErrCodeNoValidPoliciesSelected,
		"Selected proposals have no valid policy numbers",
		ErrNoValidPoliciesSelected,
	)
}

func WrapNetworkOrServerError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeNetworkOrServerError,
		GenericFailureMessage,
		errors.Join(ErrNetworkOrServer, err),
	)
}

func WrapInvalidPaymentMode(mode string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidPaymentMode,
		fmt.Sprintf("Payment mode %q is not supported", mode),
		ErrInvalidPaymentMode,
	)
}

func WrapInvalidTransition(from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Cannot move from %s to %s", from, to),
		ErrInvalidTransition,
	)
}

func WrapWalletNotEligible(days int) *BusinessError {
	return NewBusinessError(
		ErrCodeWalletNotEligible,
		fmt.Sprintf("Wallet eligibility window expired %d day(s) ago", -days),
		ErrWalletNotEligible,
	)
}

func WrapWorkflowCancelled() *BusinessError {
	return NewBusinessError(
		ErrCodeWorkflowCancelled,
		"Workflow was cancelled",
		ErrWorkflowCancelled,
	)
}

func WrapWorkflowNotFound(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeWorkflowNotFound,
		fmt.Sprintf("Workflow %s not found", id),
		ErrWorkflowNotFound,
	)
}

func WrapWorkflowBusy() *BusinessError {
	return NewBusinessError(
		ErrCodeWorkflowBusy,
		"Another operation is still running for this proposal",
		ErrWorkflowBusy,
	)
}

func WrapAgentContextUnavailable(agentID string) *BusinessError {
	return NewBusinessError(
		ErrCodeAgentContextUnavailable,
		fmt.Sprintf("No agent profile available for %s", agentID),
		ErrAgentContextUnavailable,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
