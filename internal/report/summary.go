package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/id"
	"github.com/tally-dev/tally/internal/model"
)

// MonthSummary is the total flow for one calendar month.
type MonthSummary struct {
	Month   string // "2025-01"
	Outflow decimal.Decimal
	Inflow  decimal.Decimal
	Net     decimal.Decimal // Inflow - Outflow
}

// MonthlySummary groups records by calendar month, adds an entry for the
// month containing now if none exists, and sorts chronologically. Records
// without a date are left out; their count is returned as skipped.
func MonthlySummary(records []model.Record, now time.Time) (months []MonthSummary, skipped int) {
	byMonth := make(map[string]*MonthSummary)
	get := func(key string) *MonthSummary {
		m, ok := byMonth[key]
		if !ok {
			m = &MonthSummary{Month: key, Outflow: decimal.Zero, Inflow: decimal.Zero}
			byMonth[key] = m
		}
		return m
	}

	for _, rec := range records {
		if rec.Date.IsZero() {
			skipped++
			continue
		}
		m := get(id.MonthOf(rec.Date))
		m.Outflow = m.Outflow.Add(rec.Outflow)
		m.Inflow = m.Inflow.Add(rec.Inflow)
	}
	get(id.MonthOf(now))

	months = make([]MonthSummary, 0, len(byMonth))
	for _, m := range byMonth {
		m.Net = m.Inflow.Sub(m.Outflow)
		months = append(months, *m)
	}
	// "YYYY-MM" keys sort chronologically as strings.
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })
	return months, skipped
}

// Totals is the aggregate flow over a set of records.
type Totals struct {
	Count   int
	Outflow decimal.Decimal
	Inflow  decimal.Decimal
	Net     decimal.Decimal
}

// Overview returns totals over all records and over the month containing now.
func Overview(records []model.Record, now time.Time) (all, current Totals) {
	all = Totals{Outflow: decimal.Zero, Inflow: decimal.Zero}
	current = Totals{Outflow: decimal.Zero, Inflow: decimal.Zero}
	thisMonth := id.MonthOf(now)

	for _, rec := range records {
		all.add(rec)
		if !rec.Date.IsZero() && id.MonthOf(rec.Date) == thisMonth {
			current.add(rec)
		}
	}
	all.Net = all.Inflow.Sub(all.Outflow)
	current.Net = current.Inflow.Sub(current.Outflow)
	return all, current
}

func (t *Totals) add(rec model.Record) {
	t.Count++
	t.Outflow = t.Outflow.Add(rec.Outflow)
	t.Inflow = t.Inflow.Add(rec.Inflow)
}

// Side selects inflows or outflows.
type Side string

const (
	SideOutflow Side = "outflow"
	SideInflow  Side = "inflow"
)

// TotalLabel names the grand-total row of CategoryTotals.
const TotalLabel = "Total"

// CategoryTotal is the amount spent or received in one category.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
}

// CategoryTotals sums one side of the records per category, largest first,
// and appends a Total row. Records with nothing on that side are ignored.
func CategoryTotals(records []model.Record, side Side) []CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	for _, rec := range records {
		amount := rec.Outflow
		if side == SideInflow {
			amount = rec.Inflow
		}
		if !amount.IsPositive() {
			continue
		}
		cat := rec.Category
		if cat == "" {
			cat = model.Uncategorized
		}
		sums[cat] = sums[cat].Add(amount)
	}

	out := make([]CategoryTotal, 0, len(sums)+1)
	total := decimal.Zero
	for cat, amt := range sums {
		out = append(out, CategoryTotal{Category: cat, Amount: amt})
		total = total.Add(amt)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return append(out, CategoryTotal{Category: TotalLabel, Amount: total})
}
