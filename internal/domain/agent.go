package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletFlow selects which agent date anchors the wallet eligibility window.
type WalletFlow string

const (
	WalletFlowAyushpay WalletFlow = "ayushpay"
	WalletFlowPracto   WalletFlow = "practo"
)

// Agent represents the portal's agent profile as cached by the engine
type Agent struct {
	AgentID           string          `json:"agent_id"`
	AgentCode         string          `json:"agent_code"`
	WalletAmount      decimal.Decimal `json:"wallet_amount"`
	WalletUpdateDate  *time.Time      `json:"wallet_update_date,omitempty"`
	AdminApprovedDate *time.Time      `json:"admin_approved_date,omitempty"`
	PaymentMode       string          `json:"payment_mode"`
}

// ReferenceDate returns the date the eligibility window starts from.
// Ayushpay counts from the last wallet top-up, Practo from admin approval;
// each falls back to the other date when its own is missing.
func (a *Agent) ReferenceDate(flow WalletFlow) *time.Time {
	if a == nil {
		return nil
	}

	primary, secondary := a.WalletUpdateDate, a.AdminApprovedDate
	if flow == WalletFlowPracto {
		primary, secondary = a.AdminApprovedDate, a.WalletUpdateDate
	}

	if primary != nil {
		return primary
	}
	return secondary
}

// Code returns the identifier the batch settlement endpoint expects.
func (a *Agent) Code() string {
	if a.AgentCode != "" {
		return a.AgentCode
	}
	return a.AgentID
}

// EligibilityResult is derived from the reference date and never persisted
type EligibilityResult struct {
	Days                int        `json:"days"`
	IsExpired           bool       `json:"is_expired"`
	EligibleForProposal bool       `json:"eligible_for_proposal"`
	ReferenceDate       *time.Time `json:"reference_date,omitempty"`
}

// AgentSource records where an AgentContext came from.
type AgentSource string

const (
	AgentSourcePayload AgentSource = "payload"
	AgentSourceSession AgentSource = "session"
	AgentSourceNone    AgentSource = "none"
)

// AgentContext is the agent a workflow runs for, resolved once per invocation.
type AgentContext struct {
	Agent  *Agent      `json:"agent"`
	Source AgentSource `json:"source"`
}
