package domain

import (
	"github.com/shopspring/decimal"
)

// BatchDelimiter joins policy and proposal identifiers in a batch request.
const BatchDelimiter = "||"

// SettlementRequest settles a single proposal from the agent's wallet
type SettlementRequest struct {
	AgentID            string          `json:"agent_id"`
	ProposalID         string          `json:"proposal_id"`
	ProposalExternalID string          `json:"proposal_external_id"`
	ApplicationID      string          `json:"application_id"`
	PaymentMode        string          `json:"payment_mode"`
	Amount             decimal.Decimal `json:"amount"`
	PremiumAmount      decimal.Decimal `json:"premium_amount"`
	GSTAmount          decimal.Decimal `json:"gst_amount"`
	CommissionAgent    decimal.Decimal `json:"commission_agent"`
	TDSAmount          decimal.Decimal `json:"tds_amount"`
	PayoutPercentage   decimal.Decimal `json:"payout_percentage"`
}

// SettlementResponse is the MasterData of settlePayment
type SettlementResponse struct {
	PaymentStatus string `json:"payment_status"`
	TransactionID string `json:"transaction_id"`
	PolicyNumber  string `json:"policy_number"`
}

// BatchSettlementRequest applies one wallet debit to many proposals
type BatchSettlementRequest struct {
	AgentCode     string          `json:"agent_code"`
	PolicyNumbers string          `json:"policy_no"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Mode          PaymentStatus   `json:"mode"`
	ProposalIDs   string          `json:"proposal_id"`
}

// SettlementSelection is a snapshot of the proposals chosen for batch payment
type SettlementSelection struct {
	Items               []*Proposal     `json:"items"`
	TotalSelectedAmount decimal.Decimal `json:"total_selected_amount"`
}

// ProposalIDs lists the selected proposal ids in selection order.
func (s SettlementSelection) ProposalIDs() []string {
	ids := make([]string, 0, len(s.Items))
	for _, p := range s.Items {
		ids = append(ids, p.ProposalID)
	}
	return ids
}

// IsEmpty reports whether nothing is selected.
func (s SettlementSelection) IsEmpty() bool {
	return len(s.Items) == 0
}

// SettlementResult is reported back after a batch settlement
type SettlementResult struct {
	SettledCount int             `json:"settled_count"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	ProposalIDs  []string        `json:"proposal_ids"`
	Message      string          `json:"message"`
}

// WorkflowResult is produced when a proposal workflow completes
type WorkflowResult struct {
	Settlement         *SettlementResponse `json:"settlement"`
	Draft              ProposalDraft       `json:"draft"`
	ProposalID         string              `json:"proposal_id"`
	ProposalExternalID string              `json:"proposal_external_id"`
	ApplicationID      string              `json:"application_id"`
	PaymentMode        string              `json:"payment_mode"`
	AmountPaid         decimal.Decimal     `json:"amount_paid"`
	InvoiceURL         string              `json:"invoice_url,omitempty"`
}
