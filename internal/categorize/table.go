package categorize

import (
	"strings"

	"github.com/tally-dev/tally/internal/model"
)

// Category is a named spending category and the merchant keywords that
// select it.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Table is the ordered category table. Order matters: the first category
// with a matching keyword wins.
type Table struct {
	Categories []Category `yaml:"categories"`
}

// DefaultTable returns a table holding only the reserved category.
func DefaultTable() Table {
	return Table{Categories: []Category{{Name: model.Uncategorized, Keywords: []string{}}}}
}

// Names returns category names in table order.
func (t Table) Names() []string {
	names := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a category exists. Names compare case-insensitively.
func (t Table) Has(name string) bool {
	return t.index(name) >= 0
}

// Lookup returns the stored spelling of a category name.
func (t Table) Lookup(name string) (string, bool) {
	i := t.index(name)
	if i < 0 {
		return "", false
	}
	return t.Categories[i].Name, true
}

func (t Table) index(name string) int {
	name = strings.TrimSpace(name)
	for i, c := range t.Categories {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Match returns the first category whose keyword is a case-insensitive
// substring of merchant, or Uncategorized.
func (t Table) Match(merchant string) string {
	m := strings.ToLower(strings.TrimSpace(merchant))
	if m == "" {
		return model.Uncategorized
	}
	for _, c := range t.Categories {
		if c.Name == model.Uncategorized {
			continue
		}
		for _, kw := range c.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(m, kw) {
				return c.Name
			}
		}
	}
	return model.Uncategorized
}

// Categorize returns a copy of records with Category set from the table.
// Records that match nothing are reset to Uncategorized.
func Categorize(records []model.Record, table Table) []model.Record {
	out := make([]model.Record, len(records))
	for i, rec := range records {
		rec.Category = table.Match(rec.Merchant)
		out[i] = rec
	}
	return out
}

// normalize makes t well-formed: the reserved category exists and carries
// no keywords, names are unique ignoring case, keyword lists are non-nil.
func (t Table) normalize() Table {
	seen := make(map[string]bool, len(t.Categories))
	out := Table{Categories: make([]Category, 0, len(t.Categories)+1)}
	hasReserved := false
	for _, c := range t.Categories {
		c.Name = strings.TrimSpace(c.Name)
		key := strings.ToLower(c.Name)
		if c.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		if strings.EqualFold(c.Name, model.Uncategorized) {
			c.Name = model.Uncategorized
			hasReserved = true
			c.Keywords = []string{}
		}
		if c.Keywords == nil {
			c.Keywords = []string{}
		}
		out.Categories = append(out.Categories, c)
	}
	if !hasReserved {
		out.Categories = append([]Category{{Name: model.Uncategorized, Keywords: []string{}}}, out.Categories...)
	}
	return out
}
