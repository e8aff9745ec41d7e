package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/tally-dev/tally/internal/model"
)

// CIBCParser parses CIBC chequing and credit-card CSV exports.
//
// Columns are positional: Date, Description, Debit, Credit[, Card number].
// Exports may or may not carry a header row; header text is never relied on.
type CIBCParser struct{}

// cibcVariant is one known CIBC column layout.
type cibcVariant struct {
	name   string
	fields int
}

var cibcVariants = []cibcVariant{
	{name: "chequing", fields: 4},
	{name: "credit-card", fields: 5},
}

const (
	cibcColDate   = 0
	cibcColDesc   = 1
	cibcColDebit  = 2
	cibcColCredit = 3
)

var cibcDateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006"}

// Source returns the parser's source.
func (p *CIBCParser) Source() model.Source { return model.SourceCIBC }

// Parse reads a CIBC CSV and returns canonical Records.
func (p *CIBCParser) Parse(r io.Reader) ([]model.Record, []Issue, error) {
	data, err := readInput(r)
	if err != nil {
		return nil, nil, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading cibc CSV: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil, nil
	}

	width := len(rows[0])
	if _, err := cibcVariantFor(width); err != nil {
		return nil, nil, err
	}

	start := 0
	if isCIBCHeader(rows[0]) {
		start = 1
	}

	var (
		records []model.Record
		issues  []Issue
	)
	for i, rec := range rows[start:] {
		rowNum := start + i + 1
		if isBlankRow(rec) {
			continue
		}
		if len(rec) != width {
			issues = append(issues, Issue{Row: rowNum, Reason: fmt.Sprintf("expected %d fields, got %d; skipped", width, len(rec))})
			continue
		}
		if txn, ok := parseCIBCRow(rec, rowNum, &issues); ok {
			records = append(records, txn)
		}
	}
	return records, issues, nil
}

// isCIBCHeader reports whether the first row is column titles rather than a
// transaction with a malformed date: neither its date nor its amounts parse.
func isCIBCHeader(rec []string) bool {
	if _, err := parseDate(cell(rec, cibcColDate), cibcDateLayouts); err == nil {
		return false
	}
	for _, i := range []int{cibcColDebit, cibcColCredit} {
		if d, err := ParseAmount(cell(rec, i)); err == nil && !d.IsZero() {
			return false
		}
	}
	return true
}

func cibcVariantFor(fields int) (cibcVariant, error) {
	for _, v := range cibcVariants {
		if v.fields == fields {
			return v, nil
		}
	}
	return cibcVariant{}, fmt.Errorf("%w: cibc export has %d columns, want 4 or 5", ErrFormatMismatch, fields)
}

func parseCIBCRow(rec []string, rowNum int, issues *[]Issue) (model.Record, bool) {
	date, err := parseDate(cell(rec, cibcColDate), cibcDateLayouts)
	if err != nil {
		*issues = append(*issues, Issue{Row: rowNum, Field: "date", Value: cell(rec, cibcColDate), Reason: "unparsable date; skipped"})
		return model.Record{}, false
	}

	debit := amountOrZero(cell(rec, cibcColDebit), rowNum, "debit", issues)
	credit := amountOrZero(cell(rec, cibcColCredit), rowNum, "credit", issues)

	// Both columns filled is not a valid CIBC row; collapse to the net side.
	inflow, outflow := model.SplitSigned(credit.Sub(debit))
	if inflow.IsZero() && outflow.IsZero() {
		return model.Record{}, false
	}

	desc := cell(rec, cibcColDesc)
	return model.Record{
		Date:        date,
		Description: desc,
		Merchant:    desc,
		Inflow:      inflow,
		Outflow:     outflow,
		Source:      model.SourceCIBC,
		Category:    model.Uncategorized,
	}, true
}
