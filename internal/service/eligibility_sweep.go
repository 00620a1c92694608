package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/segyhp/agent-wallet/internal/domain"
	customError "github.com/segyhp/agent-wallet/pkg/errors"
	"github.com/segyhp/agent-wallet/pkg/logger"
)

// Sweep outcomes
const (
	SweepEligible = "eligible"
	SweepExpiring = "expiring"
	SweepExpired  = "expired"
	SweepFailed   = "failed"
)

const sweepConcurrency = 4

// SweepReport is the eligibility state of one agent at sweep time.
type SweepReport struct {
	AgentID          string                   `json:"agent_id"`
	Outcome          string                   `json:"outcome"`
	Eligibility      domain.EligibilityResult `json:"eligibility"`
	PendingProposals int                      `json:"pending_proposals"`
	Error            string                   `json:"error,omitempty"`
}

// EligibilitySweep refreshes a set of agents and reports wallets whose
// eligibility window has closed or closes within warningDays.
type EligibilitySweep struct {
	ledgers     LedgerSource
	warningDays int
	logger      *slog.Logger
}

func NewEligibilitySweep(ledgers LedgerSource, warningDays int, log *slog.Logger) *EligibilitySweep {
	if log == nil {
		log = logger.Discard()
	}
	return &EligibilitySweep{ledgers: ledgers, warningDays: warningDays, logger: log}
}

// Run sweeps agentIDs. A failure for one agent is reported, not returned.
func (s *EligibilitySweep) Run(ctx context.Context, agentIDs []string) []SweepReport {
	reports := make([]SweepReport, len(agentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for i, agentID := range agentIDs {
		g.Go(func() error {
			reports[i] = s.sweepOne(gctx, agentID)
			return nil
		})
	}
	_ = g.Wait()

	counts := map[string]int{}
	for _, r := range reports {
		counts[r.Outcome]++
	}
	s.logger.Info("eligibility sweep finished",
		slog.Int("agents", len(agentIDs)),
		slog.Int(SweepExpired, counts[SweepExpired]),
		slog.Int(SweepExpiring, counts[SweepExpiring]),
		slog.Int(SweepFailed, counts[SweepFailed]))
	return reports
}

func (s *EligibilitySweep) sweepOne(ctx context.Context, agentID string) SweepReport {
	report := SweepReport{AgentID: agentID}

	ledger := s.ledgers.Ledger(agentID)
	pending, err := ledger.Load(ctx, domain.PaymentStatusPending)
	if err != nil {
		report.Outcome = SweepFailed
		report.Error = err.Error()
		s.logger.Warn("eligibility sweep failed for agent",
			slog.String("agent_id", agentID),
			slog.String("code", customError.CodeOf(err)),
			slog.Any("error", err))
		return report
	}

	report.Eligibility = ledger.Eligibility()
	report.PendingProposals = len(pending)
	report.Outcome = s.classify(report.Eligibility)

	attrs := []any{
		slog.String("agent_id", agentID),
		slog.Int("days", report.Eligibility.Days),
		slog.Int("pending_proposals", report.PendingProposals),
	}
	switch report.Outcome {
	case SweepExpired:
		s.logger.Warn("wallet eligibility expired", attrs...)
	case SweepExpiring:
		s.logger.Info("wallet eligibility expiring soon", attrs...)
	default:
		s.logger.Debug("wallet eligible", attrs...)
	}
	return report
}

func (s *EligibilitySweep) classify(result domain.EligibilityResult) string {
	switch {
	case result.IsExpired:
		return SweepExpired
	case result.Days <= s.warningDays:
		return SweepExpiring
	default:
		return SweepEligible
	}
}
