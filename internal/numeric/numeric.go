// Package numeric holds the coercion policy for numeric fields received from
// the ERP.
//
// The policy is forgiving: a value that cannot be read as a
// number becomes the caller's default instead of failing the sync. Prices
// arrive as JSON numbers, dot-decimal strings ("99.90") or Brazilian
// formatted strings ("1.234,56", "R$ 12,50", "1.234.567").
//
// A single dot without a comma is always the decimal separator, so "1.234"
// reads as 1.234. Dots act as thousand separators only next to a decimal
// comma or when they split the digits into groups of three more than once.
package numeric

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseNumericOrDefault coerces v into a decimal, returning def when v is
// nil, empty or not numeric.
func ParseNumericOrDefault(v any, def decimal.Decimal) decimal.Decimal {
	d, ok := parse(v)
	if !ok {
		return def
	}
	return d
}

// ParseNumeric is ParseNumericOrDefault with a zero default
func ParseNumeric(v any) decimal.Decimal {
	return ParseNumericOrDefault(v, decimal.Zero)
}

func parse(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case decimal.Decimal:
		return n, true
	case json.Number:
		return parseString(n.String())
	case string:
		return parseString(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		return parse(float64(n))
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	default:
		return decimal.Decimal{}, false
	}
}

// dotThousands matches integers grouped by dots, like 1.234.567
var dotThousands = regexp.MustCompile(`^-?\d{1,3}(\.\d{3}){2,}$`)

func parseString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		// 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		// 1,234.56
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Decimal{}, false
		}
		s = strings.Replace(s, ",", ".", 1)
	case dotThousands.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
