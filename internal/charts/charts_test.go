package charts

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budgetbook/internal/budget"
	"budgetbook/internal/core"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func summary(month time.Month, exp, inc, bal string) budget.MonthSummary {
	ym := core.YearMonth{Year: 2024, Month: month}
	e := decimal.RequireFromString(exp)
	i := decimal.RequireFromString(inc)
	return budget.MonthSummary{
		Period:   ym,
		Month:    ym.String(),
		Expenses: e,
		Income:   i,
		Net:      e.Add(i),
		Balance:  decimal.RequireFromString(bal),
	}
}

func TestYearChart(t *testing.T) {
	tests := []struct {
		name      string
		summaries []budget.MonthSummary
		wantErr   bool
	}{
		{name: "no months", wantErr: true},
		{
			name:      "single month",
			summaries: []budget.MonthSummary{summary(time.January, "-100", "500", "400")},
			wantErr:   true,
		},
		{
			name: "three months",
			summaries: []budget.MonthSummary{
				summary(time.January, "-100", "500", "400"),
				summary(time.February, "-350.25", "500", "549.75"),
				summary(time.March, "-80", "0", "469.75"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := YearChart(2024, tt.summaries)
			if tt.wantErr {
				if !errors.Is(err, ErrNotEnoughData) {
					t.Fatalf("expected ErrNotEnoughData, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.HasPrefix(img, pngMagic) {
				t.Errorf("output is not a PNG image")
			}
		})
	}
}

func TestExpensePie(t *testing.T) {
	t.Run("no expenses", func(t *testing.T) {
		r := budget.MonthReport{
			Month:      "2024-01",
			Categories: []budget.CategoryLine{{Category: "Food", Income: decimal.NewFromInt(10)}},
		}
		if _, err := ExpensePie(r); !errors.Is(err, ErrNotEnoughData) {
			t.Fatalf("expected ErrNotEnoughData, got %v", err)
		}
	})

	t.Run("categories and uncategorized", func(t *testing.T) {
		r := budget.MonthReport{
			Month: "2024-01",
			Categories: []budget.CategoryLine{
				{Category: "Food", Expenses: decimal.RequireFromString("-82.17")},
				{Category: "Auto", Expenses: decimal.RequireFromString("-40")},
				{Category: "Travel"},
			},
			Unassigned: budget.CategoryLine{Expenses: decimal.RequireFromString("-12.50")},
		}
		img, err := ExpensePie(r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.HasPrefix(img, pngMagic) {
			t.Errorf("output is not a PNG image")
		}
	})
}
