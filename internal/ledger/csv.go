package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/id"
	"github.com/tally-dev/tally/internal/model"
)

// Header is the CSV header for ledger.csv and session.csv.
const Header = "id,date,description,merchant,inflow,outflow,source,category"

const (
	numFields   = 8
	dateFormat  = "2006-01-02"
	colID       = 0
	colDate     = 1
	colDesc     = 2
	colMerchant = 3
	colInflow   = 4
	colOutflow  = 5
	colSource   = 6
	colCategory = 7
)

// ReadRecords reads all records from a ledger or session CSV.
// Rows without an id are given a fresh one.
func ReadRecords(r io.Reader) ([]model.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	// Skip header row.
	var records []model.Record
	for i, row := range rows[1:] {
		rec, err := UnmarshalRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if rec.ID == "" {
			rec.ID = id.NewRecordID()
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteRecords writes records (including header).
func WriteRecords(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, rec := range records {
		if err := cw.Write(MarshalRecord(rec)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalRecord converts a Record to a CSV row.
func MarshalRecord(rec model.Record) []string {
	row := make([]string, numFields)
	row[colID] = rec.ID
	if !rec.Date.IsZero() {
		row[colDate] = rec.Date.Format(dateFormat)
	}
	row[colDesc] = rec.Description
	row[colMerchant] = rec.Merchant

	if !rec.Inflow.IsZero() {
		row[colInflow] = rec.Inflow.StringFixed(2)
	}
	if !rec.Outflow.IsZero() {
		row[colOutflow] = rec.Outflow.StringFixed(2)
	}

	row[colSource] = string(rec.Source)
	row[colCategory] = rec.Category
	return row
}

// UnmarshalRecord converts a CSV row to a Record.
func UnmarshalRecord(row []string) (model.Record, error) {
	if len(row) != numFields {
		return model.Record{}, fmt.Errorf("expected %d fields, got %d", numFields, len(row))
	}

	var date time.Time
	if row[colDate] != "" {
		d, err := time.Parse(dateFormat, row[colDate])
		if err != nil {
			return model.Record{}, fmt.Errorf("parsing date %q: %w", row[colDate], err)
		}
		date = d
	}

	inflow, err := parseMoney(row[colInflow])
	if err != nil {
		return model.Record{}, fmt.Errorf("parsing inflow %q: %w", row[colInflow], err)
	}
	outflow, err := parseMoney(row[colOutflow])
	if err != nil {
		return model.Record{}, fmt.Errorf("parsing outflow %q: %w", row[colOutflow], err)
	}

	source, ok := model.ParseSource(row[colSource])
	if !ok {
		return model.Record{}, fmt.Errorf("unknown source %q", row[colSource])
	}

	category := row[colCategory]
	if category == "" {
		category = model.Uncategorized
	}

	return model.Record{
		ID:          row[colID],
		Date:        date,
		Description: row[colDesc],
		Merchant:    row[colMerchant],
		Inflow:      inflow,
		Outflow:     outflow,
		Source:      source,
		Category:    category,
	}, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
