package sheets

import (
	"github.com/shopspring/decimal"

	"budgetbook/internal/budget"
	"budgetbook/internal/core"
)

var (
	summaryHeader = []any{"Month", "Expenses", "Income", "Net", "Balance"}
	reportHeader  = []any{"Category", "Percentage", "Previous", "Expenses", "Income", "Internal", "Balance"}
)

// YearRows renders the year overview followed by one report block per
// budget period of that year.
func YearRows(profile string, year int, e *budget.Engine) [][]any {
	summaries := e.YearSummary(year)
	rows := [][]any{
		{"Profile", profile},
		{"Year", year},
		{},
		summaryHeader,
	}
	for _, s := range summaries {
		rows = append(rows, SummaryRow(s))
	}
	for _, s := range summaries {
		rows = append(rows, []any{})
		rows = append(rows, ReportRows(e.MonthReport(s.Period))...)
	}
	return rows
}

func SummaryRow(s budget.MonthSummary) []any {
	return []any{s.Month, amount(s.Expenses), amount(s.Income), amount(s.Net), amount(s.Balance)}
}

// ReportRows renders a month report as a titled table with the unassigned
// pool and the total as its last two lines.
func ReportRows(r budget.MonthReport) [][]any {
	rows := [][]any{{"Month", r.Month}, reportHeader}
	for _, c := range r.Categories {
		rows = append(rows, lineRow(c.Category, c))
	}
	rows = append(rows, lineRow("Unassigned", r.Unassigned))
	rows = append(rows, lineRow("Total", r.Total))
	return rows
}

func lineRow(label string, l budget.CategoryLine) []any {
	return []any{
		label,
		core.FormatPercent(l.Percentage),
		amount(l.PreviousBalance),
		amount(l.Expenses),
		amount(l.Income),
		amount(l.Internal),
		amount(l.Balance),
	}
}

func amount(d decimal.Decimal) string {
	return core.FormatAmount(d)
}
