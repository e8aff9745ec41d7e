package intakelog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Outcome is the result of one processing attempt.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeLocked    Outcome = "locked"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one row in the intake log.
type Entry struct {
	Timestamp time.Time
	Source    string
	Path      string
	Outcome   Outcome
	Attempts  int
	Records   int
	Output    string
	Detail    string
}

// Header is the CSV header for intake-log.csv.
const Header = "timestamp,source,path,outcome,attempts,records,output,detail"

const (
	numFields    = 8
	logDir       = "logs"
	logFile      = "logs/intake-log.csv"
	colTimestamp = 0
	colSource    = 1
	colPath      = 2
	colOutcome   = 3
	colAttempts  = 4
	colRecords   = 5
	colOutput    = 6
	colDetail    = 7
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colSource] = e.Source
	row[colPath] = e.Path
	row[colOutcome] = string(e.Outcome)
	row[colAttempts] = strconv.Itoa(e.Attempts)
	row[colRecords] = strconv.Itoa(e.Records)
	row[colOutput] = e.Output
	row[colDetail] = e.Detail
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	attempts, err := strconv.Atoi(record[colAttempts])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing attempts %q: %w", record[colAttempts], err)
	}
	records, err := strconv.Atoi(record[colRecords])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing records %q: %w", record[colRecords], err)
	}

	return Entry{
		Timestamp: ts,
		Source:    record[colSource],
		Path:      record[colPath],
		Outcome:   Outcome(record[colOutcome]),
		Attempts:  attempts,
		Records:   records,
		Output:    record[colOutput],
		Detail:    record[colDetail],
	}, nil
}

// Log appends to <dataDir>/logs/intake-log.csv. It is safe for concurrent
// use by several watchers in one process.
type Log struct {
	mu      sync.Mutex
	dataDir string
}

// New returns a Log rooted at dataDir.
func New(dataDir string) *Log {
	return &Log{dataDir: dataDir}
}

// Append writes entries, creating the file and header if needed.
func (l *Log) Append(entries ...Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Append(l.dataDir, entries)
}

// Append writes entries to <dataDir>/logs/intake-log.csv, creating the file and header if needed.
func Append(dataDir string, entries []Entry) error {
	dir := filepath.Join(dataDir, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(dataDir, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening intake log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <dataDir>/logs/intake-log.csv.
// Returns nil if the file does not exist.
func Read(dataDir string) ([]Entry, error) {
	path := filepath.Join(dataDir, logFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening intake log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading intake log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
