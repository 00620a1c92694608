package utils

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const day = 24 * time.Hour

// CeilDays converts a duration to whole days, rounding up.
// A partial remaining day counts as a full day; -4.5 days becomes -4.
func CeilDays(d time.Duration) int {
	days := math.Ceil(float64(d) / float64(day))
	if days == 0 {
		// math.Ceil keeps the sign of -0.x as -0.
		return 0
	}
	return int(days)
}

// JoinIdentifiers joins non-empty, trimmed identifiers with delimiter.
func JoinIdentifiers(ids []string, delimiter string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			parts = append(parts, id)
		}
	}
	return strings.Join(parts, delimiter)
}

// Pluralize picks singular for a count of exactly one.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// SumDecimals adds up amounts.
func SumDecimals(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total
}

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a currency amount with thousands grouping and two decimals.
func FormatAmount(amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	return amountPrinter.Sprintf("%.2f", f)
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// ParseFlexibleDate accepts the date layouts the portal is known to emit.
// It returns nil for empty input or an unrecognised layout.
func ParseFlexibleDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02-01-2006",
		"02/01/2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
