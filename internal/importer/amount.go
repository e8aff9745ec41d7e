package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var amountReplacer = strings.NewReplacer(
	"$", "",
	"£", "",
	"€", "",
	",", "",
	" ", "",
	"\u00a0", "", // non-breaking space
	"CAD", "",
	"USD", "",
)

// ParseAmount converts "$1,234.56", "-1,234.56" or "(12.00)" to a decimal.
// Blank cells and a lone "-" are zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = amountReplacer.Replace(strings.TrimSpace(s))
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// amountOrZero parses a cell, recording an Issue and returning zero on failure.
// Amounts finer than a cent are rounded, with an Issue.
func amountOrZero(raw string, row int, field string, issues *[]Issue) decimal.Decimal {
	d, err := ParseAmount(raw)
	if err != nil {
		*issues = append(*issues, Issue{Row: row, Field: field, Value: raw, Reason: "unparsable amount, using 0"})
		return decimal.Zero
	}
	if rounded := d.Round(2); !rounded.Equal(d) {
		*issues = append(*issues, Issue{Row: row, Field: field, Value: raw, Reason: "rounded to " + rounded.StringFixed(2)})
		return rounded
	}
	return d
}

// parseDate tries each layout in order and returns the calendar day in UTC.
func parseDate(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q", s)
}
