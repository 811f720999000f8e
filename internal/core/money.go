// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts and budget
// percentages typed by a user, and for formatting them back.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a signed decimal string to an amount rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, thousands
// grouping when both separators appear (1,234.56 or 1.234,56), an optional
// leading sign and a leading currency symbol. Rounding is banker's
// rounding on the third decimal place.
//
// Examples:
//
//	ParseAmount("12.34")   -> 12.34
//	ParseAmount("-12,345") -> -12.34
//	ParseAmount("12.355")  -> 12.36
//	ParseAmount("1,234.5") -> 1234.50
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	s = strings.TrimLeft(s, "$€£ ")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	norm, ok := normalizeSeparators(s)
	if !ok || strings.ContainsAny(norm, "+-eE") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(norm)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if neg {
		d = d.Neg()
	}
	return d.RoundBank(2), nil
}

// normalizeSeparators rewrites s with a dot as the only decimal separator.
// When both separators occur the last one is the decimal separator and the
// other must group the integer part in threes.
func normalizeSeparators(s string) (string, bool) {
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	if dot < 0 || comma < 0 {
		return strings.ReplaceAll(s, ",", "."), true
	}
	decimalSep, groupSep := ".", ","
	if comma > dot {
		decimalSep, groupSep = ",", "."
	}
	intPart, frac, _ := strings.Cut(s, decimalSep)
	if strings.Contains(frac, groupSep) || strings.Contains(frac, decimalSep) {
		return "", false
	}
	groups := strings.Split(intPart, groupSep)
	if groups[0] == "" || len(groups[0]) > 3 {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	return strings.Join(groups, "") + "." + frac, true
}

// ParsePercent converts a percentage such as "12.5" or "12.5%" to a fraction.
// The value is truncated to two decimal places of percent, so "12.345" becomes
// 0.1234. Values outside 0-100 are accepted; callers decide whether to warn.
func ParsePercent(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return decimal.Zero, ErrInvalidPercent
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPercent, s)
	}
	return d.Mul(hundred).Floor().Div(decimal.NewFromInt(10000)), nil
}

// FormatAmount renders an amount with two decimals, e.g. "-12.30".
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatPercent renders a fraction as a percentage, e.g. 0.125 -> "12.50%".
func FormatPercent(f decimal.Decimal) string {
	return f.Mul(hundred).StringFixed(2) + "%"
}
