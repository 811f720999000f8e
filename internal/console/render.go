package console

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/shopspring/decimal"

	"budgetbook/internal/budget"
	"budgetbook/internal/core"
)

// newTable returns a borderless table whose styles follow the color profile of
// w, so piped output carries no escape codes. Columns listed in numeric are
// right aligned.
func newTable(w io.Writer, headers []string, numeric ...int) *table.Table {
	r := lipgloss.NewRenderer(w)
	cell := r.NewStyle().Padding(0, 1)
	head := cell.Bold(true)
	return table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := cell
			if row == table.HeaderRow {
				s = head
			}
			if slices.Contains(numeric, col) {
				s = s.Align(lipgloss.Right)
			}
			return s
		})
}

func renderAccounts(w io.Writer, p *core.Profile) {
	if len(p.Accounts) == 0 {
		fmt.Fprintln(w, "No accounts.")
		return
	}
	t := newTable(w, []string{"#", "Name", "Institution", "Number", "Starting", "Transactions"}, 0, 4, 5)
	for i, a := range p.Accounts {
		t.Row(strconv.Itoa(i+1), a.Name, a.Institution, a.Number,
			core.FormatAmount(a.StartingBalance), strconv.Itoa(len(a.Transactions)))
	}
	fmt.Fprintln(w, t.Render())
}

func categoryLabel(t *core.Transaction) string {
	if t.IsSplit() {
		return fmt.Sprintf("split(%d)", len(t.Splits))
	}
	if t.Category == "" {
		return "-"
	}
	return t.Category
}

func appliedLabel(t *core.Transaction) string {
	if !t.IsIncome() {
		return ""
	}
	switch t.Applied() {
	case core.ApplyToWhole:
		return "whole"
	case core.ApplyToCategory:
		return "-> " + t.AppliedToCategory
	}
	return "none"
}

func renderTransactions(w io.Writer, ts []*core.Transaction) {
	if len(ts) == 0 {
		fmt.Fprintln(w, "No transactions.")
		return
	}
	t := newTable(w, []string{"#", "Date", "Payee", "Description", "Amount", "Category", "Applied"}, 0, 4)
	for i, tx := range ts {
		t.Row(strconv.Itoa(i+1), tx.Date.String(), tx.Payee, tx.Description,
			core.FormatAmount(tx.Amount), categoryLabel(tx), appliedLabel(tx))
		for _, s := range tx.Splits {
			t.Row("", "", "", "  "+s.Description, core.FormatAmount(s.Amount), s.Category, "")
		}
	}
	fmt.Fprintln(w, t.Render())
}

func renderCategories(w io.Writer, cats *core.Categories) {
	primaries := cats.Primaries()
	if len(primaries) == 0 {
		fmt.Fprintln(w, "No categories.")
		return
	}
	r := lipgloss.NewRenderer(w)
	root := tree.Root("Categories").RootStyle(r.NewStyle().Bold(true))
	for _, p := range primaries {
		secondaries := cats.Secondaries(p)
		if len(secondaries) == 0 {
			root.Child(p)
			continue
		}
		branch := tree.Root(p)
		for _, s := range secondaries {
			branch.Child(s)
		}
		root.Child(branch)
	}
	fmt.Fprintln(w, root.String())
}

func renderPeriods(w io.Writer, p *core.Profile) {
	if !p.HasBudget() {
		fmt.Fprintln(w, "No budget periods.")
		return
	}
	t := newTable(w, []string{"Period", "Allocated", "Transfers"}, 1, 2)
	for _, b := range p.Budget {
		total := decimal.Zero
		for _, pct := range b.Percentages {
			total = total.Add(pct)
		}
		t.Row(b.YearMonth().String(), core.FormatPercent(total), strconv.Itoa(len(b.Transfers)))
	}
	fmt.Fprintln(w, t.Render())
}

func reportRow(name string, l budget.CategoryLine) []string {
	return []string{
		name,
		core.FormatPercent(l.Percentage),
		core.FormatAmount(l.PreviousBalance),
		core.FormatAmount(l.Expenses),
		core.FormatAmount(l.Income),
		core.FormatAmount(l.Internal),
		core.FormatAmount(l.Balance),
	}
}

func renderMonthReport(w io.Writer, r budget.MonthReport) {
	fmt.Fprintf(w, "Budget %s\n", r.Month)
	if !r.InBudget {
		fmt.Fprintf(w, "%s is outside the budget; percentages and transfers are empty.\n", r.Month)
	}
	t := newTable(w, []string{"Category", "Percent", "Previous", "Expenses", "Income", "Internal", "Balance"},
		1, 2, 3, 4, 5, 6)
	for _, l := range r.Categories {
		t.Row(reportRow(l.Category, l)...)
	}
	t.Row(reportRow("Unassigned", r.Unassigned)...)
	t.Row(reportRow("Total", r.Total)...)
	fmt.Fprintln(w, t.Render())

	fmt.Fprintf(w, "Income applied to whole: %s\n", core.FormatAmount(r.IncomeToWhole))
	if r.RemainingPercentage.IsNegative() {
		fmt.Fprintf(w, "Warning: percentages exceed 100%% by %s\n", core.FormatPercent(r.RemainingPercentage.Neg()))
	}
	listEntries(w, "Uncategorized expenses", r.Uncategorized)
	listEntries(w, "Unassigned income", r.UnassignedIncome)
}

func listEntries(w io.Writer, title string, ts []core.Transaction) {
	if len(ts) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, t := range ts {
		fmt.Fprintf(w, "  %s  %s  %s\n", t.Date, t.Payee, core.FormatAmount(t.Amount))
	}
}

func renderYear(w io.Writer, year int, months []budget.MonthSummary) {
	if len(months) == 0 {
		fmt.Fprintf(w, "No budget periods in %d.\n", year)
		return
	}
	fmt.Fprintf(w, "Year %d\n", year)
	t := newTable(w, []string{"Month", "Expenses", "Income", "Net", "Balance"}, 1, 2, 3, 4)
	for _, m := range months {
		t.Row(m.Month, core.FormatAmount(m.Expenses), core.FormatAmount(m.Income),
			core.FormatAmount(m.Net), core.FormatAmount(m.Balance))
	}
	fmt.Fprintln(w, t.Render())
}
