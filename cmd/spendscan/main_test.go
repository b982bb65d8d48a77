package main

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendscan/internal/core"
	"spendscan/internal/pipeline"
)

func TestPrintResult(t *testing.T) {
	result := &pipeline.Result{
		NewlyProcessed: 3,
		Transactions:   make([]core.Transaction, 3),
		Monthly: []core.MonthlySummary{
			{Month: "2024-03", Total: decimal.NewFromInt(180), Count: 3},
		},
		Yearly: []core.YearlySummary{
			{Year: "2024", Total: decimal.NewFromInt(180), Count: 3},
		},
		ByCategory: []core.CategoryTotal{
			{Category: core.ParseCategory("food"), Total: decimal.NewFromInt(150)},
		},
		TotalSpending:  decimal.NewFromInt(180),
		AverageDaily:   decimal.NewFromInt(90),
		AverageMonthly: decimal.NewFromInt(180),
		Metadata:       core.AnalysisMetadata{LastRunAt: time.Now()},
	}

	var out strings.Builder
	printResult(&out, result)
	got := out.String()

	if !strings.Contains(got, "2024-03        180.00  (3 transactions)") {
		t.Errorf("monthly line missing:\n%s", got)
	}
	if !strings.Contains(got, "2024           180.00  (3 transactions)") {
		t.Errorf("yearly line missing:\n%s", got)
	}
	if strings.Contains(got, "%!") {
		t.Errorf("output contains a formatting error:\n%s", got)
	}
	if !strings.Contains(got, "Total spending:   180.00") {
		t.Errorf("total line missing:\n%s", got)
	}
}
