// Package sheets lays out budget reports as spreadsheet tables for export.
package sheets

import (
	"context"

	"budgetbook/internal/budget"
)

// BudgetExporter publishes one budget year of a profile to a spreadsheet.
type BudgetExporter interface {
	// ExportYear replaces the year's sheet with a fresh summary and returns
	// the written range.
	ExportYear(ctx context.Context, profile string, year int, e *budget.Engine) (ref string, err error)
}
