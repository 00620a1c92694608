package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentStatus of a proposal on the portal
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusInProcess PaymentStatus = "InProcess"
	PaymentStatusApproved  PaymentStatus = "Approved"
)

// ParsePaymentStatus maps a tab name onto a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, bool) {
	switch PaymentStatus(value) {
	case PaymentStatusPending, PaymentStatusInProcess, PaymentStatusApproved:
		return PaymentStatus(value), true
	}
	return "", false
}

// ProposalDraft holds subscriber fields entered by the agent.
type ProposalDraft struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Mobile    string `json:"mobile" validate:"required,mobile"`
	Email     string `json:"email" validate:"required,email"`
	PAN       string `json:"pan" validate:"required,pan"`
	Pincode   string `json:"pincode" validate:"required,pincode"`
	PlanID    string `json:"plan_id" validate:"required"`

	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// Normalize trims every field and upper-cases the PAN.
func (d *ProposalDraft) Normalize() {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Mobile = strings.TrimSpace(d.Mobile)
	d.Email = strings.TrimSpace(d.Email)
	d.PAN = strings.ToUpper(strings.TrimSpace(d.PAN))
	d.Pincode = strings.TrimSpace(d.Pincode)
	d.PlanID = strings.TrimSpace(d.PlanID)
}

// Proposal is the portal-confirmed subscription application
type Proposal struct {
	ProposalID            string          `json:"proposal_id"`
	ExternalID            string          `json:"external_id"`
	ApplicationID         string          `json:"application_id"`
	SelectedPaymentMode   string          `json:"selected_payment_mode"`
	SelectedPremiumAmount decimal.Decimal `json:"selected_premium_amount"`
	PaymentStatus         PaymentStatus   `json:"payment_status"`
	PolicyNumber          string          `json:"policy_number"`
	InvoicePDFURL         string          `json:"invoice_pdf_url,omitempty"`
}

// CreateProposalRequest is submitted once the duplicate check passed
type CreateProposalRequest struct {
	AgentID        string          `json:"agent_id"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	Mobile         string          `json:"mobile"`
	Email          string          `json:"email"`
	PAN            string          `json:"pan"`
	Pincode        string          `json:"pincode"`
	PlanID         string          `json:"plan_id"`
	PaymentMode    string          `json:"payment_mode"`
	AgentCollected decimal.Decimal `json:"agent_collected"`
}

// CreatedProposal is the MasterData of a successful createProposal call
type CreatedProposal struct {
	ProposalID         string `json:"proposalId"`
	ProposalExternalID string `json:"proposalExternalId"`
	ApplicationID      string `json:"applicationId"`
}

// Invoice is the MasterData of generateInvoice
type Invoice struct {
	PDFURL string `json:"pdfUrl"`
}
