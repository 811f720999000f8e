package budget

import (
	"github.com/shopspring/decimal"

	"budgetbook/internal/core"
)

// Engine computes category balances for one snapshot of a profile.
//
// NewEngine reads the profile once. Later changes to the profile are not
// seen; build a new Engine after mutating. An Engine never writes to the
// profile and, once built, is safe for concurrent use.
type Engine struct {
	primaries []string
	known     map[string]bool
	cats      *core.Categories

	periods []periodFlows
	index   map[core.YearMonth]int
	byMonth map[core.YearMonth][]core.Transaction

	startingTotal decimal.Decimal
	starting      map[string]decimal.Decimal

	// running balances per period index
	balances   map[string][]decimal.Decimal
	unassigned []decimal.Decimal
	totals     []decimal.Decimal
}

// periodFlows holds everything that happened within one month.
type periodFlows struct {
	ym           core.YearMonth
	transactions []core.Transaction
	percentages  map[string]decimal.Decimal
	transfers    []core.InternalTransfer

	expenses              map[string]decimal.Decimal
	uncategorizedExpenses decimal.Decimal
	wholeIncome           decimal.Decimal
	specificIncome        map[string]decimal.Decimal
	uncategorizedIncome   decimal.Decimal
	totalExpenses         decimal.Decimal
	totalIncome           decimal.Decimal
}

func NewEngine(p *core.Profile) *Engine {
	e := &Engine{
		primaries: p.Categories.Primaries(),
		known:     map[string]bool{},
		index:     map[core.YearMonth]int{},
		byMonth:   map[core.YearMonth][]core.Transaction{},
		starting:  map[string]decimal.Decimal{},
		balances:  map[string][]decimal.Decimal{},
	}
	e.cats = core.NewCategories()
	for _, c := range e.primaries {
		e.known[c] = true
		e.cats.AddPrimary(c)
	}

	e.startingTotal = decimal.Zero
	for _, a := range p.Accounts {
		e.startingTotal = e.startingTotal.Add(a.StartingBalance)
		for c, amount := range a.StartingDistribution {
			e.starting[c] = e.starting[c].Add(amount)
		}
		for _, t := range a.Transactions {
			ym := t.Date.YearMonth()
			e.byMonth[ym] = append(e.byMonth[ym], *t)
		}
	}

	for _, b := range p.Budget {
		ym := b.YearMonth()
		if _, dup := e.index[ym]; dup {
			continue
		}
		e.index[ym] = len(e.periods)
		pct := make(map[string]decimal.Decimal, len(b.Percentages))
		for c, v := range b.Percentages {
			pct[c] = v
		}
		transfers := append([]core.InternalTransfer(nil), b.Transfers...)
		e.periods = append(e.periods, e.collect(ym, pct, transfers))
	}
	e.accumulate()
	return e
}

func (e *Engine) collect(ym core.YearMonth, pct map[string]decimal.Decimal, transfers []core.InternalTransfer) periodFlows {
	f := periodFlows{
		ym:             ym,
		transactions:   e.byMonth[ym],
		percentages:    pct,
		transfers:      transfers,
		expenses:       map[string]decimal.Decimal{},
		specificIncome: map[string]decimal.Decimal{},
	}
	for i := range f.transactions {
		t := &f.transactions[i]
		switch {
		case t.IsExpense():
			f.totalExpenses = f.totalExpenses.Add(t.Amount)
			f.uncategorizedExpenses = f.uncategorizedExpenses.Add(core.UncategorizedAmount(t, e.cats))
			if t.IsSplit() {
				for _, s := range t.Splits {
					if c := core.PrimaryCategory(s.Category); c != "" {
						f.expenses[c] = f.expenses[c].Add(s.Amount)
					}
				}
			} else if t.Category != "" {
				c := core.PrimaryCategory(t.Category)
				f.expenses[c] = f.expenses[c].Add(t.Amount)
			}
		case t.IsIncome():
			f.totalIncome = f.totalIncome.Add(t.Amount)
			switch t.Applied() {
			case core.ApplyToWhole:
				f.wholeIncome = f.wholeIncome.Add(t.Amount)
			case core.ApplyToCategory:
				c := t.AppliedToCategory
				f.specificIncome[c] = f.specificIncome[c].Add(t.Amount)
				if !e.known[c] {
					f.uncategorizedIncome = f.uncategorizedIncome.Add(t.Amount)
				}
			default:
				f.uncategorizedIncome = f.uncategorizedIncome.Add(t.Amount)
			}
		}
	}
	return f
}

func (e *Engine) accumulate() {
	for _, c := range e.primaries {
		run := make([]decimal.Decimal, len(e.periods))
		bal := e.StartingBalance(c)
		for i := range e.periods {
			bal = bal.Add(e.periods[i].delta(c))
			run[i] = bal
		}
		e.balances[c] = run
	}

	e.unassigned = make([]decimal.Decimal, len(e.periods))
	e.totals = make([]decimal.Decimal, len(e.periods))
	unassigned := e.UnassignedStartingBalance()
	total := e.startingTotal
	for i := range e.periods {
		unassigned = unassigned.Add(e.unassignedDelta(&e.periods[i]))
		e.unassigned[i] = unassigned
		total = total.Add(e.periods[i].totalExpenses).Add(e.periods[i].totalIncome)
		e.totals[i] = total
	}
}

// flows returns the period at ym. A month outside the budget yields its
// transactions with no percentages and no transfers.
func (e *Engine) flows(ym core.YearMonth) *periodFlows {
	if i, ok := e.index[ym]; ok {
		return &e.periods[i]
	}
	f := e.collect(ym, nil, nil)
	return &f
}

func (f *periodFlows) incomeFromWhole(c string) decimal.Decimal {
	return f.wholeIncome.Mul(f.percentages[c])
}

func (f *periodFlows) internal(c string) decimal.Decimal {
	total := decimal.Zero
	for _, tr := range f.transfers {
		if tr.To == c {
			total = total.Add(tr.Amount)
		}
		if tr.From == c {
			total = total.Sub(tr.Amount)
		}
	}
	return total
}

func (f *periodFlows) delta(c string) decimal.Decimal {
	return f.expenses[c].
		Add(f.incomeFromWhole(c)).
		Add(f.specificIncome[c]).
		Add(f.internal(c))
}

func (e *Engine) allocatedPercentage(f *periodFlows) decimal.Decimal {
	total := decimal.Zero
	for c, pct := range f.percentages {
		if e.known[c] {
			total = total.Add(pct)
		}
	}
	return total
}

func (e *Engine) unallocated(f *periodFlows) decimal.Decimal {
	return f.wholeIncome.Mul(decimal.NewFromInt(1).Sub(e.allocatedPercentage(f)))
}

func (e *Engine) unassignedInternal(f *periodFlows) decimal.Decimal {
	total := decimal.Zero
	for _, tr := range f.transfers {
		if !e.known[tr.To] {
			total = total.Add(tr.Amount)
		}
		if !e.known[tr.From] {
			total = total.Sub(tr.Amount)
		}
	}
	return total
}

func (e *Engine) unassignedDelta(f *periodFlows) decimal.Decimal {
	return f.uncategorizedExpenses.
		Add(f.uncategorizedIncome).
		Add(e.unallocated(f)).
		Add(e.unassignedInternal(f))
}

// Categories returns the primary categories known to the snapshot.
func (e *Engine) Categories() []string {
	return append([]string(nil), e.primaries...)
}

// Periods returns the budget periods in chronological order.
func (e *Engine) Periods() []core.YearMonth {
	out := make([]core.YearMonth, len(e.periods))
	for i, f := range e.periods {
		out[i] = f.ym
	}
	return out
}

func (e *Engine) HasPeriod(ym core.YearMonth) bool {
	_, ok := e.index[ym]
	return ok
}

// Years returns the distinct years covered by the budget, ascending.
func (e *Engine) Years() []int {
	var years []int
	for _, f := range e.periods {
		if len(years) == 0 || years[len(years)-1] != f.ym.Year {
			years = append(years, f.ym.Year)
		}
	}
	return years
}

// Percentage is the share of whole-pool income given to c in ym.
func (e *Engine) Percentage(c string, ym core.YearMonth) decimal.Decimal {
	return e.flows(ym).percentages[c]
}

// TotalPercentage sums the percentages of known categories in ym.
func (e *Engine) TotalPercentage(ym core.YearMonth) decimal.Decimal {
	return e.allocatedPercentage(e.flows(ym))
}

// Expenses sums the negative amounts attributed to c in ym.
func (e *Engine) Expenses(c string, ym core.YearMonth) decimal.Decimal {
	return e.flows(ym).expenses[c]
}

func (e *Engine) IncomeAppliedToWhole(ym core.YearMonth) decimal.Decimal {
	return e.flows(ym).wholeIncome
}

func (e *Engine) IncomeFromWhole(c string, ym core.YearMonth) decimal.Decimal {
	return e.flows(ym).incomeFromWhole(c)
}

func (e *Engine) IncomeFromSpecific(c string, ym core.YearMonth) decimal.Decimal {
	return e.flows(ym).specificIncome[c]
}

func (e *Engine) Income(c string, ym core.YearMonth) decimal.Decimal {
	f := e.flows(ym)
	return f.incomeFromWhole(c).Add(f.specificIncome[c])
}

// InternalBalance is transfers into c minus transfers out of c in ym.
func (e *Engine) InternalBalance(c string, ym core.YearMonth) decimal.Decimal {
	return e.flows(ym).internal(c)
}

// StartingBalance sums every account's starting distribution for c.
func (e *Engine) StartingBalance(c string) decimal.Decimal {
	return e.starting[c]
}

// Balance carries the balance of c from the start of the budget through ym.
// A month outside the budget has no previous period.
func (e *Engine) Balance(c string, ym core.YearMonth) decimal.Decimal {
	i, ok := e.index[ym]
	if !ok {
		return e.StartingBalance(c).Add(e.flows(ym).delta(c))
	}
	if run, ok := e.balances[c]; ok {
		return run[i]
	}
	bal := e.StartingBalance(c)
	for j := 0; j <= i; j++ {
		bal = bal.Add(e.periods[j].delta(c))
	}
	return bal
}

// PreviousBalance is the balance c enters ym with.
func (e *Engine) PreviousBalance(c string, ym core.YearMonth) decimal.Decimal {
	if i, ok := e.index[ym]; ok && i > 0 {
		return e.Balance(c, e.periods[i-1].ym)
	}
	return e.StartingBalance(c)
}

// UnassignedStartingBalance is the part of the accounts' starting balances
// not distributed to a known category.
func (e *Engine) UnassignedStartingBalance() decimal.Decimal {
	total := e.startingTotal
	for _, c := range e.primaries {
		total = total.Sub(e.starting[c])
	}
	return total
}

func (e *Engine) UncategorizedExpenses(ym core.YearMonth) decimal.Decimal {
	return e.flows(ym).uncategorizedExpenses
}

// UncategorizedIncome is income that is not applied, or applied to a category
// that does not exist.
func (e *Engine) UncategorizedIncome(ym core.YearMonth) decimal.Decimal {
	return e.flows(ym).uncategorizedIncome
}

// UnallocatedIncome is the share of whole-pool income no known category's
// percentage claims. It is negative when percentages exceed one.
func (e *Engine) UnallocatedIncome(ym core.YearMonth) decimal.Decimal {
	return e.unallocated(e.flows(ym))
}

func (e *Engine) UnassignedInternalBalance(ym core.YearMonth) decimal.Decimal {
	return e.unassignedInternal(e.flows(ym))
}

func (e *Engine) UnassignedBalance(ym core.YearMonth) decimal.Decimal {
	if i, ok := e.index[ym]; ok {
		return e.unassigned[i]
	}
	return e.UnassignedStartingBalance().Add(e.unassignedDelta(e.flows(ym)))
}

func (e *Engine) PreviousUnassignedBalance(ym core.YearMonth) decimal.Decimal {
	if i, ok := e.index[ym]; ok && i > 0 {
		return e.unassigned[i-1]
	}
	return e.UnassignedStartingBalance()
}

func (e *Engine) TotalExpenses(ym core.YearMonth) decimal.Decimal {
	return e.flows(ym).totalExpenses
}

func (e *Engine) TotalIncome(ym core.YearMonth) decimal.Decimal {
	return e.flows(ym).totalIncome
}

func (e *Engine) TotalStartingBalance() decimal.Decimal {
	return e.startingTotal
}

// TotalBalance is the money held across all accounts at the end of ym.
func (e *Engine) TotalBalance(ym core.YearMonth) decimal.Decimal {
	if i, ok := e.index[ym]; ok {
		return e.totals[i]
	}
	f := e.flows(ym)
	return e.startingTotal.Add(f.totalExpenses).Add(f.totalIncome)
}

func (e *Engine) PreviousTotalBalance(ym core.YearMonth) decimal.Decimal {
	if i, ok := e.index[ym]; ok && i > 0 {
		return e.totals[i-1]
	}
	return e.startingTotal
}

// Transactions returns copies of the transactions dated in ym.
func (e *Engine) Transactions(ym core.YearMonth) []core.Transaction {
	return append([]core.Transaction(nil), e.byMonth[ym]...)
}
