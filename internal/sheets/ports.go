package sheets

import (
	"context"

	"spendscan/internal/core"
)

// Ports for outbound summary export.
type (
	// SummaryWriter replaces the exported spending overview with the
	// summaries of the latest analysis run.
	SummaryWriter interface {
		WriteMonthlySummaries(ctx context.Context, summaries []core.MonthlySummary) (sheetRef string, err error)
	}

	// CategoryWriter replaces the exported per-category breakdown.
	CategoryWriter interface {
		WriteCategoryTotals(ctx context.Context, totals []core.CategoryTotal) (sheetRef string, err error)
	}
)
