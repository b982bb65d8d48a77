// Package aggregate rolls classified transactions into daily, monthly
// and yearly summaries plus derived statistics.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"spendscan/internal/core"
)

// DefaultTopN is the truncation used when a caller passes n <= 0.
const DefaultTopN = 5

// Engine computes summary views over a transaction set. Summaries are
// always recomputed fresh; nothing here is cached or mutated in place.
//
// Only transactions that are not excluded, match the engine's direction
// and have a strictly positive amount feed totals AND counts: a summary
// count is exactly the number of transactions contributing to its total.
type Engine struct {
	loc       *time.Location
	direction core.Direction
}

// NewEngine creates an engine grouping by calendar day in loc. The time
// zone is fixed at construction, never implied from the host. direction
// selects the spending (debit) or income (credit) view.
func NewEngine(loc *time.Location, direction core.Direction) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if !direction.Valid() {
		direction = core.Debit
	}
	return &Engine{loc: loc, direction: direction}
}

func (e *Engine) eligible(tx core.Transaction) bool {
	return !tx.Excluded && tx.Direction == e.direction && tx.Amount.IsPositive()
}

// DailySummaries groups eligible transactions by calendar day in the
// engine's zone, descending by date. Transactions within a day are
// ordered by timestamp, then id, so output is deterministic regardless
// of input order or classification parallelism.
func (e *Engine) DailySummaries(txs []core.Transaction) []core.DailySummary {
	byDay := make(map[time.Time][]core.Transaction)
	for _, tx := range txs {
		if !e.eligible(tx) {
			continue
		}
		y, m, d := tx.Timestamp.In(e.loc).Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, e.loc)
		byDay[day] = append(byDay[day], tx)
	}

	days := make([]core.DailySummary, 0, len(byDay))
	for day, group := range byDay {
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].Timestamp.Equal(group[j].Timestamp) {
				return group[i].Timestamp.Before(group[j].Timestamp)
			}
			return group[i].ID < group[j].ID
		})

		total := decimal.Zero
		for _, tx := range group {
			total = total.Add(tx.Amount)
		}
		days = append(days, core.DailySummary{
			Date:         day,
			Total:        total,
			Count:        len(group),
			Transactions: group,
		})
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.After(days[j].Date)
	})
	return days
}

// MonthlySummaries is a strict roll-up of daily summaries: totals and
// counts are sums over the days, never recomputed from raw transactions,
// so monthly.Total == Σ daily.Total holds exactly.
func (e *Engine) MonthlySummaries(days []core.DailySummary) []core.MonthlySummary {
	byMonth := make(map[string]*core.MonthlySummary)
	order := make([]string, 0)
	for _, day := range days {
		key := day.Date.Format("2006-01")
		month, ok := byMonth[key]
		if !ok {
			month = &core.MonthlySummary{Month: key, Total: decimal.Zero}
			byMonth[key] = month
			order = append(order, key)
		}
		month.Total = month.Total.Add(day.Total)
		month.Count += day.Count
		month.Days = append(month.Days, day)
	}

	months := make([]core.MonthlySummary, 0, len(byMonth))
	for _, key := range order {
		months = append(months, *byMonth[key])
	}
	sort.Slice(months, func(i, j int) bool {
		return months[i].Month > months[j].Month
	})
	return months
}

// YearlySummaries is the strict roll-up of monthly summaries.
func (e *Engine) YearlySummaries(months []core.MonthlySummary) []core.YearlySummary {
	byYear := make(map[string]*core.YearlySummary)
	order := make([]string, 0)
	for _, month := range months {
		key := month.Month[:4]
		year, ok := byYear[key]
		if !ok {
			year = &core.YearlySummary{Year: key, Total: decimal.Zero}
			byYear[key] = year
			order = append(order, key)
		}
		year.Total = year.Total.Add(month.Total)
		year.Count += month.Count
		year.Months = append(year.Months, month)
	}

	years := make([]core.YearlySummary, 0, len(byYear))
	for _, key := range order {
		years = append(years, *byYear[key])
	}
	sort.Slice(years, func(i, j int) bool {
		return years[i].Year > years[j].Year
	})
	return years
}

// TotalSpending sums all eligible transaction amounts.
func (e *Engine) TotalSpending(txs []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if e.eligible(tx) {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// AverageDaily is the mean daily total across the days that have
// activity, rounded to 2 decimal places.
func AverageDaily(days []core.DailySummary) decimal.Decimal {
	if len(days) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, d := range days {
		total = total.Add(d.Total)
	}
	return total.DivRound(decimal.NewFromInt(int64(len(days))), 2)
}

// AverageMonthly is the mean monthly total across months with activity,
// rounded to 2 decimal places.
func AverageMonthly(months []core.MonthlySummary) decimal.Decimal {
	if len(months) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, m := range months {
		total = total.Add(m.Total)
	}
	return total.DivRound(decimal.NewFromInt(int64(len(months))), 2)
}

// TopN returns the n summaries with the largest totals, stable: equal
// totals keep their original relative order. n <= 0 means DefaultTopN.
func TopN[S any](summaries []S, total func(S) decimal.Decimal, n int) []S {
	if n <= 0 {
		n = DefaultTopN
	}
	ranked := make([]S, len(summaries))
	copy(ranked, summaries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return total(ranked[i]).GreaterThan(total(ranked[j]))
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// ByCategory computes the category breakdown for eligible transactions,
// descending by total with category key as the deterministic tie-break.
// categorize may return the zero Category for uncategorized spending.
func (e *Engine) ByCategory(txs []core.Transaction, categorize func(core.Transaction) core.Category) []core.CategoryTotal {
	totals := make(map[string]core.CategoryTotal)
	for _, tx := range txs {
		if !e.eligible(tx) {
			continue
		}
		cat := categorize(tx)
		entry, ok := totals[cat.Key()]
		if !ok {
			entry = core.CategoryTotal{Category: cat, Total: decimal.Zero}
		}
		entry.Total = entry.Total.Add(tx.Amount)
		totals[cat.Key()] = entry
	}

	breakdown := make([]core.CategoryTotal, 0, len(totals))
	for _, entry := range totals {
		breakdown = append(breakdown, entry)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if !breakdown[i].Total.Equal(breakdown[j].Total) {
			return breakdown[i].Total.GreaterThan(breakdown[j].Total)
		}
		return breakdown[i].Category.Key() < breakdown[j].Category.Key()
	})
	return breakdown
}
