package domain

import "github.com/shopspring/decimal"

// Native payment modes configured for an agent
const (
	PaymentModeFullPay  = "Full Pay"
	PaymentModeDiscount = "Discount"
	PaymentModeUpfront  = "Upfront Commission"
)

// SelectableMode is a mode the agent can pick when paying for a proposal.
type SelectableMode string

const (
	ModeFull     SelectableMode = "full"
	ModeDiscount SelectableMode = "discount"
	ModeUpfront  SelectableMode = "Upfront"
)

// PremiumQuotation is the result of premium calculation for a candidate subscriber.
// It is replaced on re-fetch and never modified.
type PremiumQuotation struct {
	PaymentMode             string          `json:"paymentmode"`
	PremiumAmount           decimal.Decimal `json:"premium_amount"`
	FullAgentCollection     decimal.Decimal `json:"full_agent_collection"`
	UpfrontAgentCommission  decimal.Decimal `json:"upfront_agent_commission"`
	DiscountAgentCollection decimal.Decimal `json:"discount_agent_collection"`
	GSTAmount               decimal.Decimal `json:"gst_amount"`
	CommissionAgent         decimal.Decimal `json:"commission_agent"`
	TDSAmount               decimal.Decimal `json:"tds_amount"`
	PayoutPercentage        decimal.Decimal `json:"payout_percentage"`
}

// ModeSelection lists the modes available for a quotation
type ModeSelection struct {
	AvailableModes []SelectableMode `json:"available_modes"`
	DefaultMode    SelectableMode   `json:"default_mode"`
}

// Allows reports whether mode is one of the available modes.
func (s *ModeSelection) Allows(mode SelectableMode) bool {
	if s == nil {
		return false
	}
	for _, m := range s.AvailableModes {
		if m == mode {
			return true
		}
	}
	return false
}

// ModeAmounts is what a given mode collects from the agent
type ModeAmounts struct {
	Mode             SelectableMode  `json:"mode"`
	Premium          decimal.Decimal `json:"premium"`
	AgentCollected   decimal.Decimal `json:"agent_collected"`
	PaymentModeLabel string          `json:"payment_mode_label"`
}
