package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// The summary types are derived views, recomputed from transactions on
// demand. They are plain serializable values with no behavior; a new
// list always replaces the old one, nothing is mutated in place.
type (
	// DailySummary groups one calendar day in the engine's time zone.
	DailySummary struct {
		Date         time.Time
		Total        decimal.Decimal
		Count        int
		Transactions []Transaction
	}

	// MonthlySummary is a strict roll-up of its daily summaries.
	MonthlySummary struct {
		Month string // "YYYY-MM"
		Total decimal.Decimal
		Count int
		Days  []DailySummary
	}

	// YearlySummary is a strict roll-up of its monthly summaries.
	YearlySummary struct {
		Year   string
		Total  decimal.Decimal
		Count  int
		Months []MonthlySummary
	}

	// CategoryTotal is one row of the category breakdown.
	CategoryTotal struct {
		Category Category
		Total    decimal.Decimal
	}
)
