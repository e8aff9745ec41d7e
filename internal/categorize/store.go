package categorize

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tally-dev/tally/internal/fileutil"
	"github.com/tally-dev/tally/internal/model"
)

// ErrUnknownCategory is returned when learning into a category that does not exist.
var ErrUnknownCategory = errors.New("unknown category")

// Store is the persisted category table. Every mutation is written through
// to disk before it returns.
type Store struct {
	path  string
	table Table
}

// Load reads the category table at path. A missing file yields the default
// table; it is written on the first mutation.
func Load(path string) (*Store, error) {
	s := &Store{path: path, table: DefaultTable()}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}

	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing categories %s: %w", path, err)
	}
	s.table = t.normalize()
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Table returns a copy of the current table.
func (s *Store) Table() Table {
	out := Table{Categories: make([]Category, len(s.table.Categories))}
	for i, c := range s.table.Categories {
		out.Categories[i] = Category{Name: c.Name, Keywords: append([]string{}, c.Keywords...)}
	}
	return out
}

// Save writes the table atomically.
func (s *Store) Save() error {
	data, err := yaml.Marshal(s.table)
	if err != nil {
		return fmt.Errorf("marshaling categories: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("writing categories: %w", err)
	}
	return nil
}

// AddCategory appends a new, empty category. Returns false if it already exists.
func (s *Store) AddCategory(name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("category name is empty")
	}
	if s.table.Has(name) {
		return false, nil
	}

	prev := s.table
	s.table = Table{Categories: append(append([]Category{}, prev.Categories...), Category{Name: name, Keywords: []string{}})}
	if err := s.Save(); err != nil {
		s.table = prev
		return false, err
	}
	return true, nil
}

// Learn adds keyword to category and persists the table. It returns false
// when nothing changed: the keyword is blank, already present (ignoring
// case), or the category is the reserved one.
func (s *Store) Learn(category, keyword string) (bool, error) {
	keyword = strings.TrimSpace(keyword)
	idx := s.table.index(category)
	if idx < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if !s.addKeyword(idx, keyword) {
		return false, nil
	}
	if err := s.Save(); err != nil {
		s.removeLastKeyword(idx)
		return false, err
	}
	return true, nil
}

// LearnFromRecords learns every (Merchant, Category) pair in records for
// categories that exist, and persists once. It returns the number of
// keywords added.
func (s *Store) LearnFromRecords(records []model.Record) (int, error) {
	prev := s.Table()
	added := 0
	for _, rec := range records {
		idx := s.table.index(rec.Category)
		if idx < 0 {
			continue
		}
		if s.addKeyword(idx, strings.TrimSpace(rec.Merchant)) {
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}
	if err := s.Save(); err != nil {
		s.table = prev
		return 0, err
	}
	return added, nil
}

func (s *Store) addKeyword(idx int, keyword string) bool {
	c := &s.table.Categories[idx]
	if keyword == "" || c.Name == model.Uncategorized {
		return false
	}
	for _, kw := range c.Keywords {
		if strings.EqualFold(kw, keyword) {
			return false
		}
	}
	c.Keywords = append(c.Keywords, keyword)
	return true
}

func (s *Store) removeLastKeyword(idx int) {
	c := &s.table.Categories[idx]
	c.Keywords = c.Keywords[:len(c.Keywords)-1]
}
