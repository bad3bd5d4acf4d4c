// Package core provides money parsing and handling utilities.
//
// This file contains the strict boundary parser for monetary amounts and the
// two tolerances the reconciliation relies on.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// SnapEpsilon absorbs accumulated noise from repeated two-decimal additions.
	SnapEpsilon = decimal.RequireFromString("0.005")

	// BalancedTolerance is the business threshold under which a variance counts as balanced.
	// It must stay distinct from SnapEpsilon.
	BalancedTolerance = decimal.NewFromInt(1)
)

// ParseAmount converts a user supplied decimal string into a non-negative amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators with at
// most two fractional digits. Signs, grouping characters, extra fractional
// digits and anything that is not a plain decimal number are rejected with
// ErrInvalidAmount; malformed input is never coerced to zero.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,3")   -> 12.30, nil
//	ParseAmount("12,345") -> 0, ErrInvalidAmount (likely a grouped 12345)
//	ParseAmount("")       -> 0, ErrInvalidAmount
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return decimal.Zero, ErrInvalidAmount
	}
	if len(parts) == 2 && len(parts[1]) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if r < '0' || r > '9' {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// MustAmount is ParseAmount for literals known to be valid. It panics otherwise.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic("core: invalid amount literal " + s)
	}
	return d
}

// IsNegligible reports whether |d| is below SnapEpsilon.
func IsNegligible(d decimal.Decimal) bool {
	return d.Abs().LessThan(SnapEpsilon)
}

// Snap returns zero for negligible values and d otherwise.
func Snap(d decimal.Decimal) decimal.Decimal {
	if IsNegligible(d) {
		return decimal.Zero
	}
	return d
}

// SumAmounts adds up amounts in order.
func SumAmounts(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
