package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tally-dev/tally/internal/fileutil"
	"github.com/tally-dev/tally/internal/model"
)

const cleanedDateFormat = "2006-01-02"

// CleanedName returns the artifact name for an input file:
// "statement.csv" from cibc becomes "statement_cibc_cleaned.csv".
func CleanedName(inputPath string, source model.Source) string {
	base := filepath.Base(inputPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_%s_cleaned.csv", base, source)
}

// WriteCleaned writes records as a cleaned CSV into outDir and returns the
// artifact path. The directory is created if missing and the file is
// replaced atomically, so a reader never sees a partial artifact.
func WriteCleaned(outDir, inputPath string, source model.Source, records []model.Record) (string, error) {
	path := filepath.Join(outDir, CleanedName(inputPath, source))
	err := fileutil.WriteAtomic(path, func(w io.Writer) error {
		return WriteCleanedCSV(w, records)
	})
	if err != nil {
		return "", fmt.Errorf("writing cleaned output %s: %w", path, err)
	}
	return path, nil
}

// WriteCleanedCSV writes records in the cleaned schema, header included.
func WriteCleanedCSV(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(CleanedHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, rec := range records {
		if err := cw.Write(marshalCleaned(rec)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func marshalCleaned(rec model.Record) []string {
	row := make([]string, len(CleanedHeader))
	row[0] = rec.Date.Format(cleanedDateFormat)
	row[1] = rec.Description
	if !rec.Inflow.IsZero() {
		row[2] = rec.Inflow.StringFixed(2)
	}
	if !rec.Outflow.IsZero() {
		row[3] = rec.Outflow.StringFixed(2)
	}
	row[4] = rec.Source.Label()
	row[5] = rec.Merchant
	row[6] = rec.Category
	return row
}
