package service

import (
	"time"

	"github.com/segyhp/agent-wallet/internal/domain"
	"github.com/segyhp/agent-wallet/pkg/utils"
)

// DefaultEligibilityWindowDays is how long a wallet stays usable after its reference date.
const DefaultEligibilityWindowDays = 15

// EligibilityWindow computes wallet eligibility against a clock.
type EligibilityWindow struct {
	days int
	now  func() time.Time
}

// NewEligibilityWindow creates a window of days; a nil clock uses time.Now.
func NewEligibilityWindow(days int, now func() time.Time) *EligibilityWindow {
	if days <= 0 {
		days = DefaultEligibilityWindowDays
	}
	if now == nil {
		now = time.Now
	}
	return &EligibilityWindow{days: days, now: now}
}

// Compute evaluates the window at the current instant. Results are not cached.
func (w *EligibilityWindow) Compute(referenceDate *time.Time) domain.EligibilityResult {
	return computeEligibility(referenceDate, w.now(), w.days)
}

// Days returns the window length.
func (w *EligibilityWindow) Days() int {
	return w.days
}

// ComputeEligibility evaluates the default 15-day window at now.
func ComputeEligibility(referenceDate *time.Time, now time.Time) domain.EligibilityResult {
	return computeEligibility(referenceDate, now, DefaultEligibilityWindowDays)
}

func computeEligibility(referenceDate *time.Time, now time.Time, windowDays int) domain.EligibilityResult {
	if referenceDate == nil || referenceDate.IsZero() {
		return domain.EligibilityResult{Days: 0, IsExpired: true, EligibleForProposal: false}
	}

	expiry := referenceDate.AddDate(0, 0, windowDays)
	days := utils.CeilDays(expiry.Sub(now))
	isExpired := days < 0

	ref := *referenceDate
	return domain.EligibilityResult{
		Days:                days,
		IsExpired:           isExpired,
		EligibleForProposal: !isExpired,
		ReferenceDate:       &ref,
	}
}
