// Package core provides the expense record, its parsing and its classification.
//
// This file contains amount parsing. Amounts are decimals rounded to two
// places; floats never touch them.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a price string to a decimal.
//
// It accepts a dot (12.34) or a single decimal comma (12,34), an optional
// leading sign and an exponent (3e2). Values beyond the float64 range count
// as not finite. Rounding is left to NewExpense so the record is the single
// place where the two-decimal rule lives.
//
// Examples:
//
//	ParseAmount("3.5")   -> 3.5, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-4")    -> -4, nil
//	ParseAmount("3e2")   -> 300, nil
//	ParseAmount("abc")   -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	// signs only lead the mantissa or the exponent
	prev := rune(0)
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == 'e', r == 'E':
		case (r == '-' || r == '+') && (i == 0 || prev == 'e' || prev == 'E'):
		default:
			return decimal.Zero, ErrInvalidAmount
		}
		prev = r
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if math.IsInf(d.InexactFloat64(), 0) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
