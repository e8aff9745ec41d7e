package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies the institution/format a record was parsed from.
type Source string

const (
	SourceCIBC      Source = "cibc"
	SourceAMEX      Source = "amex"
	SourceCanonical Source = "canonical"
)

// Sources lists every known source.
var Sources = []Source{SourceCIBC, SourceAMEX, SourceCanonical}

// ParseSource maps a case-insensitive name to a Source.
func ParseSource(s string) (Source, bool) {
	want := Source(strings.ToLower(strings.TrimSpace(s)))
	for _, src := range Sources {
		if src == want {
			return src, true
		}
	}
	return "", false
}

// Label returns the upper-case institution label used in output files ("CIBC").
func (s Source) Label() string {
	return strings.ToUpper(string(s))
}

// Uncategorized is the reserved category every table carries.
const Uncategorized = "Uncategorized"

// Record is one normalized transaction in the canonical schema.
type Record struct {
	ID          string    // session-scoped handle, not part of the dedup key
	Date        time.Time // calendar day in UTC; zero = unparsable
	Description string
	Merchant    string
	Inflow      decimal.Decimal // zero unless money received
	Outflow     decimal.Decimal // zero unless money spent
	Source      Source
	Category    string
}

// SignedAmount returns Inflow - Outflow: positive for money in, negative for money out.
func (r Record) SignedAmount() decimal.Decimal {
	return r.Inflow.Sub(r.Outflow)
}

// HasAmount reports whether either side is non-zero.
func (r Record) HasAmount() bool {
	return !r.Inflow.IsZero() || !r.Outflow.IsZero()
}

// Month returns the calendar month the record falls in.
func (r Record) Month() (int, time.Month) {
	return r.Date.Year(), r.Date.Month()
}

// IsOutflow reports whether the record spends money.
func (r Record) IsOutflow() bool { return r.Outflow.IsPositive() }

// IsInflow reports whether the record receives money.
func (r Record) IsInflow() bool { return r.Inflow.IsPositive() }

// SplitSigned maps a signed amount onto (inflow, outflow).
// Positive amounts are inflows; negative amounts become a positive outflow.
func SplitSigned(amount decimal.Decimal) (inflow, outflow decimal.Decimal) {
	if amount.IsNegative() {
		return decimal.Zero, amount.Abs()
	}
	return amount, decimal.Zero
}

// Day returns midnight UTC for the given calendar date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateDay drops the time-of-day and location from t.
func TruncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return Day(t.Year(), t.Month(), t.Day())
}
