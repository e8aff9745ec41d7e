package ledger

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/fileutil"
	"github.com/tally-dev/tally/internal/id"
	"github.com/tally-dev/tally/internal/model"
)

var (
	// ErrRecordNotFound is returned when a session edit names an unknown record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidRecord is returned when an edit would break a record invariant.
	ErrInvalidRecord = errors.New("invalid record")
)

// Session is the working set of records from the most recent upload, edited
// before being merged into the ledger.
type Session struct {
	records []model.Record
	upload  string
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Records returns a copy of the session's records.
func (s *Session) Records() []model.Record {
	out := make([]model.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records in the session.
func (s *Session) Len() int { return len(s.records) }

// Upload returns the token of the upload the session was loaded from.
func (s *Session) Upload() string { return s.upload }

// Replace discards the session and loads records from a new upload.
// Records without an ID are assigned one.
func (s *Session) Replace(records []model.Record, upload string) {
	s.records = make([]model.Record, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = id.NewRecordID()
		}
		s.records = append(s.records, rec)
	}
	s.upload = upload
}

// Get returns the record with the given ID (or unique ID prefix).
func (s *Session) Get(recordID string) (model.Record, error) {
	i, err := s.find(recordID)
	if err != nil {
		return model.Record{}, err
	}
	return s.records[i], nil
}

// ReplaceCategoryOf sets the category of one record.
func (s *Session) ReplaceCategoryOf(recordID, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return fmt.Errorf("%w: empty category", ErrInvalidRecord)
	}
	i, err := s.find(recordID)
	if err != nil {
		return err
	}
	s.records[i].Category = category
	return nil
}

// SetAmount replaces the amounts of one record. Exactly one side must be
// positive and the other zero.
func (s *Session) SetAmount(recordID string, inflow, outflow decimal.Decimal) error {
	i, err := s.find(recordID)
	if err != nil {
		return err
	}
	rec := s.records[i]
	rec.Inflow, rec.Outflow = inflow, outflow
	if verrs := ValidateRecord(rec); len(verrs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRecord, joinErrors(verrs))
	}
	s.records[i] = rec
	return nil
}

// Delete removes one record.
func (s *Session) Delete(recordID string) error {
	i, err := s.find(recordID)
	if err != nil {
		return err
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	return nil
}

// Insert validates and appends a record, returning its ID.
func (s *Session) Insert(rec model.Record) (string, error) {
	if rec.ID == "" {
		rec.ID = id.NewRecordID()
	}
	if rec.Category == "" {
		rec.Category = model.Uncategorized
	}
	if rec.Merchant == "" {
		rec.Merchant = rec.Description
	}
	rec.Date = model.TruncateDay(rec.Date)
	if verrs := ValidateRecord(rec); len(verrs) > 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidRecord, joinErrors(verrs))
	}
	s.records = append(s.records, rec)
	return rec.ID, nil
}

// Reset empties the session.
func (s *Session) Reset() {
	s.records = nil
	s.upload = ""
}

func (s *Session) find(recordID string) (int, error) {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return -1, fmt.Errorf("%w: empty id", ErrRecordNotFound)
	}

	match := -1
	for i, rec := range s.records {
		if rec.ID == recordID {
			return i, nil
		}
		if strings.HasPrefix(rec.ID, recordID) {
			if match >= 0 {
				return -1, fmt.Errorf("%w: id prefix %q is ambiguous", ErrRecordNotFound, recordID)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	return match, nil
}

// LoadSession reads a session file. A missing file yields an empty session.
// The upload token lives in a sidecar next to the records.
func LoadSession(path string) (*Session, error) {
	s := NewSession()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening session %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", path, err)
	}
	s.records = records

	token, err := os.ReadFile(uploadPath(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading session upload token: %w", err)
	}
	s.upload = strings.TrimSpace(string(token))
	return s, nil
}

// Save writes the session to path atomically.
func (s *Session) Save(path string) error {
	err := fileutil.WriteAtomic(path, func(w io.Writer) error {
		return WriteRecords(w, s.records)
	})
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if err := fileutil.WriteFileAtomic(uploadPath(path), []byte(s.upload+"\n")); err != nil {
		return fmt.Errorf("saving session upload token: %w", err)
	}
	return nil
}

func uploadPath(sessionPath string) string {
	return sessionPath + ".upload"
}

func joinErrors(verrs []ValidationError) string {
	msgs := make([]string, len(verrs))
	for i, ve := range verrs {
		msgs[i] = ve.Description
	}
	return strings.Join(msgs, "; ")
}
