// Package charts renders budget figures as PNG images.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"budgetbook/internal/budget"
)

var ErrNotEnoughData = errors.New("not enough data to draw a chart")

const (
	width  = 1200
	height = 600
)

// YearChart draws monthly expenses, income and end-of-month balance. It
// needs at least two months.
func YearChart(year int, summaries []budget.MonthSummary) ([]byte, error) {
	if len(summaries) < 2 {
		return nil, fmt.Errorf("%w: year %d has %d budget months", ErrNotEnoughData, year, len(summaries))
	}

	xValues := make([]time.Time, len(summaries))
	expenses := make([]float64, len(summaries))
	income := make([]float64, len(summaries))
	balance := make([]float64, len(summaries))
	for i, s := range summaries {
		xValues[i] = time.Date(s.Period.Year, s.Period.Month, 1, 0, 0, 0, 0, time.UTC)
		expenses[i] = s.Expenses.Neg().InexactFloat64()
		income[i] = s.Income.InexactFloat64()
		balance[i] = s.Balance.InexactFloat64()
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Budget %d", year),
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding:   chart.Box{Top: 50, Left: 50, Right: 50, Bottom: 50},
			FillColor: chart.ColorWhite,
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 2006"),
			Style:          chart.Style{FontSize: 12, FontColor: chart.ColorBlack},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
			Style: chart.Style{FontSize: 12, FontColor: chart.ColorBlack},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Expenses",
				XValues: xValues,
				YValues: expenses,
				Style:   chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 2},
			},
			chart.TimeSeries{
				Name:    "Income",
				XValues: xValues,
				YValues: income,
				Style:   chart.Style{StrokeColor: chart.ColorGreen, StrokeWidth: 2},
			},
			chart.TimeSeries{
				Name:    "Balance",
				XValues: xValues,
				YValues: balance,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 3},
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph, chart.Style{FontSize: 12, FontColor: chart.ColorBlack}),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render year chart: %w", err)
	}
	return buf.Bytes(), nil
}

// ExpensePie draws the month's spending per primary category, with
// uncategorized spending as its own slice.
func ExpensePie(r budget.MonthReport) ([]byte, error) {
	var values []chart.Value
	add := func(label string, spent float64) {
		if spent > 0 {
			values = append(values, chart.Value{
				Label: fmt.Sprintf("%s: %.2f", label, spent),
				Value: spent,
			})
		}
	}
	for _, c := range r.Categories {
		add(c.Category, c.Expenses.Neg().InexactFloat64())
	}
	add("Uncategorized", r.Unassigned.Expenses.Neg().InexactFloat64())
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no expenses in %s", ErrNotEnoughData, r.Month)
	}

	pie := chart.PieChart{
		Title:  "Expenses " + r.Month,
		Width:  width,
		Height: height,
		Values: values,
		Background: chart.Style{
			Padding:   chart.Box{Top: 50, Left: 50, Right: 50, Bottom: 50},
			FillColor: chart.ColorWhite,
		},
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render expense chart: %w", err)
	}
	return buf.Bytes(), nil
}
