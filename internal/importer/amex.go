package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/tally-dev/tally/internal/model"
)

// DefaultAMEXHeaderRow is the 1-based row holding the AMEX column headers;
// the rows above it are account summary boilerplate.
const DefaultAMEXHeaderRow = 12

// AMEXParser parses American Express statement downloads (.xls, .xlsx, or
// the same table saved as CSV).
//
// Every AMEX row is treated as a debit: the absolute amount becomes Outflow
// and Inflow is always zero.
type AMEXParser struct {
	HeaderRow int // 1-based; 0 means DefaultAMEXHeaderRow
}

var amexDateLayouts = []string{
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"2006-01-02",
	"01/02/2006",
}

// zipMagic prefixes every .xlsx file; ole2Magic every legacy .xls.
var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

type amexColumns struct {
	date, desc, amount, merchant int
}

// Source returns the parser's source.
func (p *AMEXParser) Source() model.Source { return model.SourceAMEX }

// Parse reads an AMEX statement and returns canonical Records.
func (p *AMEXParser) Parse(r io.Reader) ([]model.Record, []Issue, error) {
	rows, err := p.readRows(r)
	if err != nil {
		return nil, nil, err
	}

	headerIdx, cols, err := p.findHeader(rows)
	if err != nil {
		return nil, nil, err
	}

	var (
		records []model.Record
		issues  []Issue
	)
	for i, rec := range rows[headerIdx+1:] {
		rowNum := headerIdx + i + 2
		// The table ends at the first blank row; anything below is footer text.
		if isBlankRow(rec) {
			break
		}
		if txn, ok := parseAMEXRow(rec, cols, rowNum, &issues); ok {
			records = append(records, txn)
		}
	}
	return records, issues, nil
}

func (p *AMEXParser) headerRow() int {
	if p.HeaderRow <= 0 {
		return DefaultAMEXHeaderRow
	}
	return p.HeaderRow
}

// findHeader uses the configured header row when it carries the expected
// columns. CSV saves drop blank preamble lines, so otherwise the first row
// that does is used.
func (p *AMEXParser) findHeader(rows [][]string) (int, amexColumns, error) {
	idx := p.headerRow() - 1
	if idx < len(rows) {
		if cols, err := locateAMEXColumns(rows[idx]); err == nil {
			return idx, cols, nil
		}
	}
	for i, row := range rows {
		if cols, err := locateAMEXColumns(row); err == nil {
			return i, cols, nil
		}
	}
	if idx >= len(rows) {
		return 0, amexColumns{}, fmt.Errorf("%w: amex sheet has %d rows, header expected on row %d", ErrFormatMismatch, len(rows), idx+1)
	}
	_, err := locateAMEXColumns(rows[idx])
	return 0, amexColumns{}, err
}

func (p *AMEXParser) readRows(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading amex input: %w", err)
	}

	if bytes.HasPrefix(data, zipMagic) {
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening amex workbook: %w", err)
		}
		defer f.Close()

		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: amex workbook has no sheets", ErrFormatMismatch)
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("reading amex sheet %q: %w", sheets[0], err)
		}
		return rows, nil
	}
	if bytes.HasPrefix(data, ole2Magic) {
		return readXLSRows(data)
	}

	text, err := readInput(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(bytes.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading amex CSV: %w", err)
	}
	return rows, nil
}

func locateAMEXColumns(header []string) (amexColumns, error) {
	cols := amexColumns{date: -1, desc: -1, amount: -1, merchant: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			if cols.date < 0 {
				cols.date = i
			}
		case "description":
			cols.desc = i
		case "amount":
			cols.amount = i
		case "merchant":
			cols.merchant = i
		}
	}

	var missing []string
	if cols.date < 0 {
		missing = append(missing, "Date")
	}
	if cols.desc < 0 {
		missing = append(missing, "Description")
	}
	if cols.amount < 0 {
		missing = append(missing, "Amount")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: amex header missing %s", ErrFormatMismatch, strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseAMEXRow(rec []string, cols amexColumns, rowNum int, issues *[]Issue) (model.Record, bool) {
	rawDate := cell(rec, cols.date)
	// "01 Mar. 2024": the abbreviation dot is not part of any Go layout.
	date, err := parseDate(strings.ReplaceAll(rawDate, ".", ""), amexDateLayouts)
	if err != nil {
		*issues = append(*issues, Issue{Row: rowNum, Field: "date", Value: rawDate, Reason: "unparsable date; skipped"})
		return model.Record{}, false
	}

	amount := amountOrZero(cell(rec, cols.amount), rowNum, "amount", issues)
	if amount.IsZero() {
		return model.Record{}, false
	}

	desc := cell(rec, cols.desc)
	merchant := cell(rec, cols.merchant)
	if merchant == "" {
		merchant = desc
	}

	return model.Record{
		Date:        date,
		Description: desc,
		Merchant:    merchant,
		Outflow:     amount.Abs(),
		Source:      model.SourceAMEX,
		Category:    model.Uncategorized,
	}, true
}

// readXLSRows reads every row of a legacy BIFF workbook. Missing rows come
// back empty, so the blank row that ends the AMEX table is preserved.
func readXLSRows(data []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("%w: unreadable amex .xls: %v", ErrFormatMismatch, r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("opening amex .xls: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: amex workbook has no sheets", ErrFormatMismatch)
	}
	return wb.ReadAllCells(math.MaxInt32), nil
}
