package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/id"
	"github.com/tally-dev/tally/internal/model"
)

// Rule names a record invariant.
type Rule string

const (
	RuleOneSide   Rule = "one-side"
	RuleNegative  Rule = "non-negative"
	RulePrecision Rule = "precision"
	RuleDate      Rule = "date"
	RuleCategory  Rule = "category"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Rule        Rule
	RecordID    string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Rule, id.ShortID(e.RecordID), e.Description)
}

var hundred = decimal.NewFromInt(100)

// ValidateRecords checks every record and returns all violations found.
func ValidateRecords(records []model.Record) []ValidationError {
	var errs []ValidationError
	for _, rec := range records {
		errs = append(errs, ValidateRecord(rec)...)
	}
	return errs
}

// ValidateRecord checks one record.
func ValidateRecord(rec model.Record) []ValidationError {
	var errs []ValidationError
	add := func(rule Rule, format string, args ...any) {
		errs = append(errs, ValidationError{Rule: rule, RecordID: rec.ID, Description: fmt.Sprintf(format, args...)})
	}

	// Exactly one of inflow/outflow.
	if rec.Inflow.IsZero() == rec.Outflow.IsZero() {
		add(RuleOneSide, "record must have exactly one of inflow or outflow")
	}

	if rec.Inflow.IsNegative() {
		add(RuleNegative, "inflow %s is negative", rec.Inflow)
	}
	if rec.Outflow.IsNegative() {
		add(RuleNegative, "outflow %s is negative", rec.Outflow)
	}

	// Exact cents: no more than 2 decimal places.
	for _, side := range []struct {
		name string
		v    decimal.Decimal
	}{{"inflow", rec.Inflow}, {"outflow", rec.Outflow}} {
		if !side.v.Mul(hundred).Equal(side.v.Mul(hundred).Floor()) {
			add(RulePrecision, "%s %s has more than 2 decimal places", side.name, side.v)
		}
	}

	if rec.Date.IsZero() {
		add(RuleDate, "missing date")
	}

	if rec.Category == "" {
		add(RuleCategory, "missing category")
	}

	return errs
}
