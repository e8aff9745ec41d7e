package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/model"
)

// CanonicalParser reads files already in the canonical schema: the
// *_cleaned.csv artifacts this tool writes, or hand-made uploads with
// Date/Description/Inflow/Outflow columns. A legacy single signed Amount
// column is split by sign.
type CanonicalParser struct{}

// CleanedHeader is the header of every *_cleaned.csv artifact.
var CleanedHeader = []string{"Date", "Description", "Inflow", "Outflow", "Source", "Merchant", "Category"}

var canonicalDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000",
	"01/02/2006",
}

type canonicalColumns struct {
	date, desc, merchant, inflow, outflow, amount, source, category int
}

// Source returns the parser's source.
func (p *CanonicalParser) Source() model.Source { return model.SourceCanonical }

// Parse reads a canonical CSV and returns Records.
func (p *CanonicalParser) Parse(r io.Reader) ([]model.Record, []Issue, error) {
	data, err := readInput(r)
	if err != nil {
		return nil, nil, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading canonical CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	cols, err := locateCanonicalColumns(rows[0])
	if err != nil {
		return nil, nil, err
	}

	var (
		records []model.Record
		issues  []Issue
	)
	for i, rec := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(rec) {
			continue
		}
		if txn, ok := parseCanonicalRow(rec, cols, rowNum, &issues); ok {
			records = append(records, txn)
		}
	}
	return records, issues, nil
}

func locateCanonicalColumns(header []string) (canonicalColumns, error) {
	cols := canonicalColumns{-1, -1, -1, -1, -1, -1, -1, -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			cols.date = i
		case "description":
			cols.desc = i
		case "merchant":
			cols.merchant = i
		case "inflow":
			cols.inflow = i
		case "outflow":
			cols.outflow = i
		case "amount":
			cols.amount = i
		case "source":
			cols.source = i
		case "category":
			cols.category = i
		}
	}

	if cols.date < 0 {
		return cols, fmt.Errorf("%w: canonical file has no Date column", ErrFormatMismatch)
	}
	hasSplit := cols.inflow >= 0 && cols.outflow >= 0
	if !hasSplit && cols.amount < 0 {
		return cols, fmt.Errorf("%w: expected Inflow and Outflow columns, or Amount", ErrFormatMismatch)
	}
	if hasSplit {
		cols.amount = -1
	}
	return cols, nil
}

func parseCanonicalRow(rec []string, cols canonicalColumns, rowNum int, issues *[]Issue) (model.Record, bool) {
	rawDate := cell(rec, cols.date)
	date, err := parseDate(rawDate, canonicalDateLayouts)
	if err != nil {
		*issues = append(*issues, Issue{Row: rowNum, Field: "date", Value: rawDate, Reason: "unparsable date; skipped"})
		return model.Record{}, false
	}

	var signed decimal.Decimal
	if cols.amount >= 0 {
		signed = amountOrZero(cell(rec, cols.amount), rowNum, "amount", issues)
	} else {
		in := amountOrZero(cell(rec, cols.inflow), rowNum, "inflow", issues)
		out := amountOrZero(cell(rec, cols.outflow), rowNum, "outflow", issues)
		signed = in.Abs().Sub(out.Abs())
	}
	inflow, outflow := model.SplitSigned(signed)
	if inflow.IsZero() && outflow.IsZero() {
		return model.Record{}, false
	}

	desc := cell(rec, cols.desc)
	merchant := cell(rec, cols.merchant)
	if merchant == "" {
		merchant = desc
	}

	source, ok := model.ParseSource(cell(rec, cols.source))
	if !ok {
		source = model.SourceCanonical
	}

	category := cell(rec, cols.category)
	if category == "" {
		category = model.Uncategorized
	}

	return model.Record{
		Date:        date,
		Description: desc,
		Merchant:    merchant,
		Inflow:      inflow,
		Outflow:     outflow,
		Source:      source,
		Category:    category,
	}, true
}
