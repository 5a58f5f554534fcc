package analytics

import (
	"fmt"
	"strconv"
	"strings"

	"commerce-analytics/internal/stats"

	"github.com/shopspring/decimal"
)

const notAvailable = "n/a"

// FormatCurrency formats an amount rounded to cents with a currency prefix
// and comma separators.
func FormatCurrency(amount float64, currency string) string {
	s := decimal.NewFromFloat(amount).Round(2).StringFixed(2)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intStr, decStr, _ := strings.Cut(s, ".")
	result := fmt.Sprintf("%s %s.%s", currency, groupThousands(intStr), decStr)
	if negative {
		result = "-" + result
	}
	return result
}

// FormatInt formats a count with the same grouping as FormatCurrency.
func FormatInt(n int) string {
	digits := strconv.Itoa(n)
	if n < 0 {
		return "-" + groupThousands(digits[1:])
	}
	return groupThousands(digits)
}

// FormatPercent formats a percentage with two decimals, n/a when undefined.
func FormatPercent(v stats.NullFloat) string {
	if !v.Valid {
		return notAvailable
	}
	return decimal.NewFromFloat(v.Float64).Round(2).StringFixed(2) + "%"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var parts []string
	for len(digits) > 3 {
		parts = append([]string{digits[len(digits)-3:]}, parts...)
		digits = digits[:len(digits)-3]
	}
	parts = append([]string{digits}, parts...)
	return strings.Join(parts, ",")
}
