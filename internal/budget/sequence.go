// Package budget builds the monthly budget periods of a profile and computes
// category balances over them.
package budget

import (
	"budgetbook/internal/core"
)

// TransactionRange returns the earliest and latest calendar month holding a
// transaction in any account.
func TransactionRange(p *core.Profile) (first, last core.YearMonth, ok bool) {
	for _, a := range p.Accounts {
		for _, t := range a.Transactions {
			ym := t.Date.YearMonth()
			if !ok {
				first, last, ok = ym, ym, true
				continue
			}
			if ym.Before(first) {
				first = ym
			}
			if last.Before(ym) {
				last = ym
			}
		}
	}
	return first, last, ok
}

// CreateMonthlyBudgets creates one empty period per month between the first
// and last transaction. It returns false, leaving p untouched, when a budget
// already exists or there are no transactions.
func CreateMonthlyBudgets(p *core.Profile) bool {
	if p.HasBudget() {
		return false
	}
	first, last, ok := TransactionRange(p)
	if !ok {
		return false
	}
	for ym := first; !last.Before(ym); ym = ym.Next() {
		p.Budget = append(p.Budget, core.NewMonthlyBudget(ym))
	}
	return true
}

// AddNextMonthlyBudget appends the period after the last one, carrying the
// percentages forward. Transfers are not carried. On an empty budget it
// creates the period of the earliest transaction instead.
func AddNextMonthlyBudget(p *core.Profile) bool {
	if !p.HasBudget() {
		first, _, ok := TransactionRange(p)
		if !ok {
			return false
		}
		p.Budget = append(p.Budget, core.NewMonthlyBudget(first))
		return true
	}
	prev := p.Budget[len(p.Budget)-1]
	next := core.NewMonthlyBudget(prev.YearMonth().Next())
	for c, pct := range prev.Percentages {
		next.Percentages[c] = pct
	}
	p.Budget = append(p.Budget, next)
	return true
}
