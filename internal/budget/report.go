package budget

import (
	"github.com/shopspring/decimal"

	"budgetbook/internal/core"
)

// CategoryLine is one row of a month report.
type CategoryLine struct {
	Category        string          `json:"category"`
	Percentage      decimal.Decimal `json:"percentage"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	Expenses        decimal.Decimal `json:"expenses"`
	Income          decimal.Decimal `json:"income"`
	Internal        decimal.Decimal `json:"internal"`
	Balance         decimal.Decimal `json:"balance"`
}

type MonthReport struct {
	Period              core.YearMonth     `json:"-"`
	Month               string             `json:"month"`
	InBudget            bool               `json:"in_budget"`
	Categories          []CategoryLine     `json:"categories"`
	Unassigned          CategoryLine       `json:"unassigned"`
	Total               CategoryLine       `json:"total"`
	IncomeToWhole       decimal.Decimal    `json:"income_to_whole"`
	RemainingPercentage decimal.Decimal    `json:"remaining_percentage"`
	Uncategorized       []core.Transaction `json:"uncategorized"`
	UnassignedIncome    []core.Transaction `json:"unassigned_income"`
}

type MonthSummary struct {
	Period   core.YearMonth  `json:"-"`
	Month    string          `json:"month"`
	Expenses decimal.Decimal `json:"expenses"`
	Income   decimal.Decimal `json:"income"`
	Net      decimal.Decimal `json:"net"`
	Balance  decimal.Decimal `json:"balance"`
}

// MonthReport gathers every figure shown for one budget period.
func (e *Engine) MonthReport(ym core.YearMonth) MonthReport {
	r := MonthReport{
		Period:        ym,
		Month:         ym.String(),
		InBudget:      e.HasPeriod(ym),
		IncomeToWhole: e.IncomeAppliedToWhole(ym),
	}
	for _, c := range e.primaries {
		r.Categories = append(r.Categories, CategoryLine{
			Category:        c,
			Percentage:      e.Percentage(c, ym),
			PreviousBalance: e.PreviousBalance(c, ym),
			Expenses:        e.Expenses(c, ym),
			Income:          e.Income(c, ym),
			Internal:        e.InternalBalance(c, ym),
			Balance:         e.Balance(c, ym),
		})
	}

	allocated := e.TotalPercentage(ym)
	r.RemainingPercentage = decimal.NewFromInt(1).Sub(allocated)
	r.Unassigned = CategoryLine{
		Percentage:      r.RemainingPercentage,
		PreviousBalance: e.PreviousUnassignedBalance(ym),
		Expenses:        e.UncategorizedExpenses(ym),
		Income:          e.UncategorizedIncome(ym).Add(e.UnallocatedIncome(ym)),
		Internal:        e.UnassignedInternalBalance(ym),
		Balance:         e.UnassignedBalance(ym),
	}
	r.Total = CategoryLine{
		Percentage:      allocated,
		PreviousBalance: e.PreviousTotalBalance(ym),
		Expenses:        e.TotalExpenses(ym),
		Income:          e.TotalIncome(ym),
		Internal:        decimal.Zero,
		Balance:         e.TotalBalance(ym),
	}

	for _, t := range e.byMonth[ym] {
		switch {
		case t.IsExpense() && !core.UncategorizedAmount(&t, e.cats).IsZero():
			r.Uncategorized = append(r.Uncategorized, t)
		case t.IsIncome() && !core.IncomeIsAssigned(&t, e.cats):
			r.UnassignedIncome = append(r.UnassignedIncome, t)
		}
	}
	return r
}

// Summary is the overall expenses, income and balance of ym.
func (e *Engine) Summary(ym core.YearMonth) MonthSummary {
	exp := e.TotalExpenses(ym)
	inc := e.TotalIncome(ym)
	return MonthSummary{
		Period:   ym,
		Month:    ym.String(),
		Expenses: exp,
		Income:   inc,
		Net:      exp.Add(inc),
		Balance:  e.TotalBalance(ym),
	}
}

// YearSummary returns one summary per budget period in year.
func (e *Engine) YearSummary(year int) []MonthSummary {
	var out []MonthSummary
	for _, f := range e.periods {
		if f.ym.Year == year {
			out = append(out, e.Summary(f.ym))
		}
	}
	return out
}
