package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/agent-wallet/internal/domain"

	"github.com/jmoiron/sqlx"
)

type journalRepository struct {
	db *sqlx.DB
}

func NewJournalRepository(db *sqlx.DB) JournalRepository {
	return &journalRepository{db: db}
}

func (r *journalRepository) Record(ctx context.Context, entry *domain.JournalEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO settlement_journal (id, workflow_id, agent_id, kind, reference, amount, outcome, message, created_at)
		VALUES (:id, :workflow_id, :agent_id, :kind, :reference, :amount, :outcome, :message, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, entry)
	return err
}

func (r *journalRepository) ListByAgent(ctx context.Context, agentID string, limit int) ([]*domain.JournalEntry, error) {
	query := `
		SELECT id, workflow_id, agent_id, kind, reference, amount, outcome, message, created_at
		FROM settlement_journal
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var entries []*domain.JournalEntry
	err := r.db.SelectContext(ctx, &entries, query, agentID, limit)
	if err != nil {
		return nil, err
	}

	return entries, nil
}
