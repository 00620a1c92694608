package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Journal entry kinds
const (
	JournalKindProposalCreated  = "proposal_created"
	JournalKindWalletSettlement = "wallet_settlement"
	JournalKindBatchSettlement  = "batch_settlement"
	JournalKindInvoiceSkipped   = "invoice_skipped"
)

// Journal entry outcomes
const (
	JournalOutcomeSucceeded = "succeeded"
	JournalOutcomeFailed    = "failed"
)

// JournalEntry records one remote operation the engine performed for an agent
type JournalEntry struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	WorkflowID *uuid.UUID      `json:"workflow_id,omitempty" db:"workflow_id"`
	AgentID    string          `json:"agent_id" db:"agent_id"`
	Kind       string          `json:"kind" db:"kind"`
	Reference  string          `json:"reference" db:"reference"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Outcome    string          `json:"outcome" db:"outcome"`
	Message    string          `json:"message" db:"message"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
