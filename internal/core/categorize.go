package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const categorySeparator = ":"

// PrimaryCategory returns the part of ref before the first colon.
func PrimaryCategory(ref string) string {
	primary, _, _ := strings.Cut(ref, categorySeparator)
	return primary
}

// SecondaryCategory returns the part of ref after the first colon, if any.
func SecondaryCategory(ref string) (string, bool) {
	_, secondary, ok := strings.Cut(ref, categorySeparator)
	return secondary, ok
}

func JoinCategory(primary, secondary string) string {
	if secondary == "" {
		return primary
	}
	return primary + categorySeparator + secondary
}

// NormalizeCategory cleans user input such as " Food : :Groceries" into
// "Food:Groceries". Empty parts are dropped and only two levels are kept.
func NormalizeCategory(input string) string {
	var parts []string
	for _, p := range strings.Split(input, categorySeparator) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return JoinCategory(parts[0], parts[1])
	}
}

// MatchesPrimary reports whether ref belongs to primary. The match stops at a
// category boundary, so "AutoLoan" does not belong to "Auto".
func MatchesPrimary(ref, primary string) bool {
	if ref == "" || primary == "" {
		return false
	}
	return ref == primary || strings.HasPrefix(ref, primary+categorySeparator)
}

// SplitTotal sums the split allocations of t.
func SplitTotal(t *Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, s := range t.Splits {
		total = total.Add(s.Amount)
	}
	return total
}

// IsCategorized reports whether every part of t maps to a known primary
// category. Split transactions must also add up exactly.
func IsCategorized(t *Transaction, cats *Categories) bool {
	if !t.IsSplit() {
		return cats.PrimaryExists(PrimaryCategory(t.Category))
	}
	for _, s := range t.Splits {
		if !cats.PrimaryExists(PrimaryCategory(s.Category)) {
			return false
		}
	}
	return SplitTotal(t).Equal(t.Amount)
}

func AppliesToPrimaryCategory(t *Transaction, primary string) bool {
	if !t.IsSplit() {
		return MatchesPrimary(t.Category, primary)
	}
	for _, s := range t.Splits {
		if MatchesPrimary(s.Category, primary) {
			return true
		}
	}
	return false
}

func AmountForPrimaryCategory(t *Transaction, primary string) decimal.Decimal {
	if !t.IsSplit() {
		if MatchesPrimary(t.Category, primary) {
			return t.Amount
		}
		return decimal.Zero
	}
	total := decimal.Zero
	for _, s := range t.Splits {
		if MatchesPrimary(s.Category, primary) {
			total = total.Add(s.Amount)
		}
	}
	return total
}

// UncategorizedAmount is the part of t that no known primary category claims.
func UncategorizedAmount(t *Transaction, cats *Categories) decimal.Decimal {
	if !t.IsSplit() {
		if IsCategorized(t, cats) {
			return decimal.Zero
		}
		return t.Amount
	}
	claimed := decimal.Zero
	for _, s := range t.Splits {
		if cats.PrimaryExists(PrimaryCategory(s.Category)) {
			claimed = claimed.Add(s.Amount)
		}
	}
	return t.Amount.Sub(claimed)
}

// IncomeIsAssigned reports whether income t reaches a known category, either
// through the whole pool or directly.
func IncomeIsAssigned(t *Transaction, cats *Categories) bool {
	switch t.Applied() {
	case ApplyToWhole:
		return true
	case ApplyToCategory:
		return cats.PrimaryExists(t.AppliedToCategory)
	default:
		return false
	}
}
