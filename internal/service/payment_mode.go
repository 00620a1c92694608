package service

import (
	"strings"

	"github.com/segyhp/agent-wallet/internal/domain"
	customError "github.com/segyhp/agent-wallet/pkg/errors"
)

// DeriveModes returns the modes an agent may pay with for quotation q.
// Full Pay and Discount agents may switch between the two; Upfront
// Commission agents may not. Any other native mode is rejected.
func DeriveModes(q *domain.PremiumQuotation) (*domain.ModeSelection, error) {
	if q == nil {
		return nil, customError.WrapInvalidPaymentMode("")
	}

	switch q.PaymentMode {
	case domain.PaymentModeFullPay:
		return &domain.ModeSelection{
			AvailableModes: []domain.SelectableMode{domain.ModeFull, domain.ModeDiscount},
			DefaultMode:    domain.ModeFull,
		}, nil
	case domain.PaymentModeDiscount:
		return &domain.ModeSelection{
			AvailableModes: []domain.SelectableMode{domain.ModeFull, domain.ModeDiscount},
			DefaultMode:    domain.ModeDiscount,
		}, nil
	case domain.PaymentModeUpfront:
		return &domain.ModeSelection{
			AvailableModes: []domain.SelectableMode{domain.ModeUpfront},
			DefaultMode:    domain.ModeUpfront,
		}, nil
	}

	return nil, customError.WrapInvalidPaymentMode(q.PaymentMode)
}

// AmountsFor returns the premium and the amount collected from the agent for mode.
func AmountsFor(mode domain.SelectableMode, q *domain.PremiumQuotation) (*domain.ModeAmounts, error) {
	if q == nil {
		return nil, customError.WrapInvalidPaymentMode(string(mode))
	}

	amounts := &domain.ModeAmounts{Mode: mode, Premium: q.PremiumAmount}
	switch mode {
	case domain.ModeFull:
		amounts.AgentCollected = q.FullAgentCollection
		amounts.PaymentModeLabel = domain.PaymentModeFullPay
	case domain.ModeUpfront:
		amounts.AgentCollected = q.UpfrontAgentCommission
		amounts.PaymentModeLabel = domain.PaymentModeUpfront
	case domain.ModeDiscount:
		amounts.AgentCollected = q.DiscountAgentCollection
		amounts.PaymentModeLabel = domain.PaymentModeDiscount
	default:
		return nil, customError.WrapInvalidPaymentMode(string(mode))
	}

	return amounts, nil
}

// ParseSelectableMode accepts the mode names used by the UI, case-insensitively.
func ParseSelectableMode(value string) (domain.SelectableMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "full", "full pay":
		return domain.ModeFull, nil
	case "discount":
		return domain.ModeDiscount, nil
	case "upfront", "upfront commission":
		return domain.ModeUpfront, nil
	}
	return "", customError.WrapInvalidPaymentMode(value)
}
