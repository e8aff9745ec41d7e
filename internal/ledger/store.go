package ledger

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/tally-dev/tally/internal/fileutil"
	"github.com/tally-dev/tally/internal/model"
)

// ErrEmptySession is returned when a merge is requested with nothing to merge.
var ErrEmptySession = errors.New("session is empty")

// PersistenceError reports a ledger write that did not complete. The
// previously stored ledger is intact and the merge can be retried.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting ledger %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the durable, deduplicated ledger backed by a single CSV file.
type Store struct {
	path    string
	records []model.Record
}

// MergeResult summarizes a merge.
type MergeResult struct {
	Merged  int // records taken from the session
	Dropped int // records removed as duplicates
	Total   int // ledger size after the merge
}

// NewStore creates a Store for the ledger file at path. Call Load before use.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the ledger file path.
func (s *Store) Path() string { return s.path }

// Load restores the ledger from disk. A missing file is an empty ledger.
func (s *Store) Load() error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.records = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening ledger %s: %w", s.path, err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return fmt.Errorf("reading ledger %s: %w", s.path, err)
	}
	s.records = records
	return nil
}

// Records returns a snapshot of the ledger.
func (s *Store) Records() []model.Record {
	out := make([]model.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of ledger records.
func (s *Store) Len() int { return len(s.records) }

// MergeSession appends the session's records, deduplicates, and persists the
// ledger. The in-memory ledger and the session change only after the write
// succeeds.
func (s *Store) MergeSession(sess *Session) (MergeResult, error) {
	if sess == nil || sess.Len() == 0 {
		return MergeResult{}, ErrEmptySession
	}

	incoming := sess.Records()
	for i := range incoming {
		incoming[i] = roundCents(incoming[i])
	}
	combined := make([]model.Record, 0, len(s.records)+len(incoming))
	combined = append(combined, s.records...)
	combined = append(combined, incoming...)
	merged := Dedup(combined)

	err := fileutil.WriteAtomic(s.path, func(w io.Writer) error {
		return WriteRecords(w, merged)
	})
	if err != nil {
		return MergeResult{}, &PersistenceError{Path: s.path, Err: err}
	}

	s.records = merged
	sess.Reset()
	return MergeResult{
		Merged:  len(incoming),
		Dropped: len(combined) - len(merged),
		Total:   len(merged),
	}, nil
}

// DedupKey is the identity of a record for deduplication: calendar date,
// merchant and signed amount. The sign keeps an inflow and an outflow of the
// same magnitude apart.
type DedupKey struct {
	Date     string
	Merchant string
	Amount   string
}

// KeyOf returns the dedup key of rec. The amount is taken in cents, the
// precision the ledger file stores.
func KeyOf(rec model.Record) DedupKey {
	return DedupKey{
		Date:     rec.Date.Format(dateFormat),
		Merchant: rec.Merchant,
		Amount:   rec.SignedAmount().StringFixed(2),
	}
}

// roundCents quantizes both amounts to the stored precision so the in-memory
// ledger matches what a reload would read back.
func roundCents(rec model.Record) model.Record {
	rec.Inflow = rec.Inflow.Round(2)
	rec.Outflow = rec.Outflow.Round(2)
	return rec
}

// Dedup keeps the last record for each key. The result is ordered by the
// position of each surviving record in the input.
func Dedup(records []model.Record) []model.Record {
	last := make(map[DedupKey]int, len(records))
	for i, rec := range records {
		last[KeyOf(rec)] = i
	}

	out := make([]model.Record, 0, len(last))
	for i, rec := range records {
		if last[KeyOf(rec)] == i {
			out = append(out, rec)
		}
	}
	return out
}
