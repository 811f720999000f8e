package http

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"budgetbook/internal/budget"
	"budgetbook/internal/charts"
	"budgetbook/internal/core"
)

type periodView struct {
	Period      string                     `json:"period"`
	Percentages map[string]decimal.Decimal `json:"percentages"`
	Transfers   []core.InternalTransfer    `json:"transfers"`
}

func newPeriodView(b *core.MonthlyBudget) periodView {
	v := periodView{
		Period:      b.YearMonth().String(),
		Percentages: b.Percentages,
		Transfers:   b.Transfers,
	}
	if v.Percentages == nil {
		v.Percentages = map[string]decimal.Decimal{}
	}
	if v.Transfers == nil {
		v.Transfers = []core.InternalTransfer{}
	}
	return v
}

func periodViews(p *core.Profile) []periodView {
	out := make([]periodView, 0, len(p.Budget))
	for _, b := range p.Budget {
		out = append(out, newPeriodView(b))
	}
	return out
}

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(r.Context(), r.PathValue("profile"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"periods": periodViews(p)})
}

// handleCreateBudget creates one period per month spanned by the profile's
// transactions.
func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Update(r.Context(), r.PathValue("profile"), func(p *core.Profile) error {
		if p.HasBudget() {
			return errBudgetExists
		}
		if !budget.CreateMonthlyBudgets(p) {
			return errNoTransactions
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"periods": periodViews(p)})
}

func (s *Server) handleNextPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Update(r.Context(), r.PathValue("profile"), func(p *core.Profile) error {
		if !budget.AddNextMonthlyBudget(p) {
			return errNoTransactions
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPeriodView(p.Budget[len(p.Budget)-1]))
}

// handleMonthReport serves the report of one period. A month outside the
// budget yields a report with in_budget false and zero allocations.
func (s *Server) handleMonthReport(w http.ResponseWriter, r *http.Request) {
	ym, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.profiles.MonthReport(r.Context(), r.PathValue("profile"), ym)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSetPercentage(w http.ResponseWriter, r *http.Request) {
	ym, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	category, err := body.Require("category")
	if err != nil {
		writeError(w, r, err)
		return
	}
	raw, err := body.Require("percent")
	if err != nil {
		writeError(w, r, err)
		return
	}
	pct, err := core.ParsePercent(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var view periodView
	total := decimal.Zero
	_, err = s.profiles.Update(r.Context(), r.PathValue("profile"), func(p *core.Profile) error {
		b, ok := p.Period(ym)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrPeriodNotFound, ym)
		}
		if !p.Categories.PrimaryExists(category) {
			return fmt.Errorf("%w: %s", errUnknownCategory, category)
		}
		b.SetPercentage(category, pct)
		for _, c := range p.Categories.Primaries() {
			total = total.Add(b.Percentage(c))
		}
		view = newPeriodView(b)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period":               view,
		"total_percentage":     core.FormatPercent(total),
		"remaining_percentage": core.FormatPercent(decimal.NewFromInt(1).Sub(total)),
	})
}

func (s *Server) handleAddTransfer(w http.ResponseWriter, r *http.Request) {
	ym, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	from, err := body.Require("from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := body.Require("to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	raw, err := body.Require("amount")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if from == to {
		writeError(w, r, fmt.Errorf("%w: transfer from %s to itself", errBadRequest, from))
		return
	}
	amount, err := core.ParseAmount(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !amount.IsPositive() {
		writeError(w, r, fmt.Errorf("%w: transfer amount must be positive", core.ErrInvalidAmount))
		return
	}

	var view periodView
	_, err = s.profiles.Update(r.Context(), r.PathValue("profile"), func(p *core.Profile) error {
		b, ok := p.Period(ym)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrPeriodNotFound, ym)
		}
		b.AddTransfer(from, to, amount)
		view = newPeriodView(b)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleYearSummary(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summaries, err := s.profiles.YearSummary(r.Context(), r.PathValue("profile"), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []budget.MonthSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "months": summaries})
}

func (s *Server) handleYearChart(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summaries, err := s.profiles.YearSummary(r.Context(), r.PathValue("profile"), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	img, err := charts.YearChart(year, summaries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().PNG(img).Write(w)
}

func (s *Server) handleExpenseChart(w http.ResponseWriter, r *http.Request) {
	ym, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.profiles.MonthReport(r.Context(), r.PathValue("profile"), ym)
	if err != nil {
		writeError(w, r, err)
		return
	}
	img, err := charts.ExpensePie(report)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().PNG(img).Write(w)
}
