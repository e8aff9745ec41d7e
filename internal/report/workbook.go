package report

import (
	"fmt"
	"io"
	"sort"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/tally-dev/tally/internal/fileutil"
	"github.com/tally-dev/tally/internal/model"
)

const (
	SummarySheet = "Master Summary"
	DetailSheet  = "Transaction Details"

	headerFill  = "366092"
	moneyFormat = `"$"#,##0.00`
	maxColWidth = 50
)

var (
	summaryHeader = []string{"Month", "Outflow (CAD)", "Inflow (CAD)", "Net (CAD)"}
	detailHeader  = []string{"Date", "Description", "Merchant", "Inflow", "Outflow", "Source", "Category"}
)

// WriteWorkbook writes the monthly report: a summary sheet and every record,
// most recent first. The file is replaced atomically.
func WriteWorkbook(path string, months []MonthSummary, records []model.Record) error {
	f, err := buildWorkbook(months, records)
	if err != nil {
		return err
	}
	defer f.Close()

	err = fileutil.WriteAtomic(path, func(w io.Writer) error {
		return f.Write(w)
	})
	if err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}

func buildWorkbook(months []MonthSummary, records []model.Record) (*excelize.File, error) {
	f := excelize.NewFile()
	ok := false
	defer func() {
		if !ok {
			f.Close()
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return nil, fmt.Errorf("naming summary sheet: %w", err)
	}
	if _, err := f.NewSheet(DetailSheet); err != nil {
		return nil, fmt.Errorf("adding detail sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}
	numFmt := moneyFormat
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return nil, fmt.Errorf("creating money style: %w", err)
	}

	sw := newSheetWriter(f, SummarySheet)
	sw.row(toAny(summaryHeader))
	for _, m := range months {
		sw.row([]any{m.Month, m.Outflow.InexactFloat64(), m.Inflow.InexactFloat64(), m.Net.InexactFloat64()})
	}
	if err := sw.finish(headerStyle); err != nil {
		return nil, err
	}
	if len(months) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(summaryHeader), len(months)+1)
		if err := f.SetCellStyle(SummarySheet, "B2", last, moneyStyle); err != nil {
			return nil, fmt.Errorf("styling summary amounts: %w", err)
		}
	}

	sorted := make([]model.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })

	dw := newSheetWriter(f, DetailSheet)
	dw.row(toAny(detailHeader))
	for _, rec := range sorted {
		date := ""
		if !rec.Date.IsZero() {
			date = rec.Date.Format("2006-01-02")
		}
		dw.row([]any{
			date,
			rec.Description,
			rec.Merchant,
			moneyCell(rec.Inflow),
			moneyCell(rec.Outflow),
			rec.Source.Label(),
			rec.Category,
		})
	}
	if err := dw.finish(headerStyle); err != nil {
		return nil, err
	}
	if len(sorted) > 0 {
		last, _ := excelize.CoordinatesToCellName(5, len(sorted)+1)
		if err := f.SetCellStyle(DetailSheet, "D2", last, moneyStyle); err != nil {
			return nil, fmt.Errorf("styling detail amounts: %w", err)
		}
	}

	ok = true
	return f, nil
}

// sheetWriter appends rows to a sheet and tracks column widths.
type sheetWriter struct {
	f      *excelize.File
	sheet  string
	rows   int
	widths []int
	err    error
}

func newSheetWriter(f *excelize.File, sheet string) *sheetWriter {
	return &sheetWriter{f: f, sheet: sheet}
}

func (w *sheetWriter) row(values []any) {
	if w.err != nil {
		return
	}
	w.rows++
	cell, _ := excelize.CoordinatesToCellName(1, w.rows)
	if err := w.f.SetSheetRow(w.sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("writing %s row %d: %w", w.sheet, w.rows, err)
		return
	}
	for i, v := range values {
		if i >= len(w.widths) {
			w.widths = append(w.widths, 0)
		}
		if n := utf8.RuneCountInString(fmt.Sprint(v)); n > w.widths[i] {
			w.widths[i] = n
		}
	}
}

func (w *sheetWriter) finish(headerStyle int) error {
	if w.err != nil {
		return w.err
	}
	if w.rows == 0 {
		return nil
	}
	last, _ := excelize.CoordinatesToCellName(len(w.widths), 1)
	if err := w.f.SetCellStyle(w.sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("styling %s header: %w", w.sheet, err)
	}
	for i, width := range w.widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := w.f.SetColWidth(w.sheet, col, col, float64(min(width+2, maxColWidth))); err != nil {
			return fmt.Errorf("sizing %s column %s: %w", w.sheet, col, err)
		}
	}
	return nil
}

func moneyCell(d decimal.Decimal) any {
	if d.IsZero() {
		return ""
	}
	return d.InexactFloat64()
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
