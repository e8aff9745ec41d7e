package categorize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/model"
)

func rec(merchant string) model.Record {
	return model.Record{
		Date:     model.Day(2025, 1, 3),
		Merchant: merchant,
		Outflow:  decimal.NewFromInt(5),
		Source:   model.SourceCIBC,
		Category: model.Uncategorized,
	}
}

func table(cats ...Category) Table {
	return Table{Categories: append([]Category{{Name: model.Uncategorized}}, cats...)}
}

func TestCategorize_CaseInsensitiveSubstring(t *testing.T) {
	tbl := table(Category{Name: "Food", Keywords: []string{"coffee"}})

	got := Categorize([]model.Record{rec("  Joe's COFFEE Bar "), rec("SHELL")}, tbl)
	assert.Equal(t, "Food", got[0].Category)
	assert.Equal(t, model.Uncategorized, got[1].Category)
}

func TestCategorize_FirstMatchWins(t *testing.T) {
	tbl := table(
		Category{Name: "Groceries", Keywords: []string{"costco"}},
		Category{Name: "Gas", Keywords: []string{"costco gas"}},
	)
	got := Categorize([]model.Record{rec("COSTCO GAS #123")}, tbl)
	assert.Equal(t, "Groceries", got[0].Category)
}

func TestCategorize_ResetsStaleCategory(t *testing.T) {
	r := rec("UNKNOWN")
	r.Category = "Food"
	got := Categorize([]model.Record{r}, table())
	assert.Equal(t, model.Uncategorized, got[0].Category)
}

func TestCategorize_IsPureAndDeterministic(t *testing.T) {
	tbl := table(Category{Name: "Food", Keywords: []string{"tim"}})
	in := []model.Record{rec("TIM HORTONS"), rec("AMAZON")}

	a := Categorize(in, tbl)
	b := Categorize(in, tbl)
	assert.Equal(t, a, b)
	assert.Equal(t, model.Uncategorized, in[0].Category, "input must not be modified")
}

func TestCategorize_ReservedKeywordsIgnored(t *testing.T) {
	tbl := Table{Categories: []Category{{Name: model.Uncategorized, Keywords: []string{"shell"}}, {Name: "Gas", Keywords: []string{"shell"}}}}
	assert.Equal(t, "Gas", tbl.Match("SHELL"))
}

func TestCategorize_BlankMerchant(t *testing.T) {
	tbl := table(Category{Name: "All", Keywords: []string{" "}})
	assert.Equal(t, model.Uncategorized, tbl.Match(""))
	assert.Equal(t, model.Uncategorized, tbl.Match("X"))
}

func TestLoad_MissingGivesDefault(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "categories.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{model.Uncategorized}, s.Table().Names())
}

func TestLoad_NormalizesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	content := `categories:
  - name: Food
    keywords: [starbucks, tim hortons]
  - name: Uncategorized
    keywords: [junk]
  - name: Food
    keywords: [dup]
  - name: FOOD
    keywords: [dup]
  - name: uncategorized
  - name: Gas
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	tbl := s.Table()
	assert.Equal(t, []string{"Food", model.Uncategorized, "Gas"}, tbl.Names())
	assert.Equal(t, []string{"starbucks", "tim hortons"}, tbl.Categories[0].Keywords)
	assert.Empty(t, tbl.Categories[1].Keywords)
	assert.NotNil(t, tbl.Categories[2].Keywords)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: [\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestStore_AddCategoryPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	s, err := Load(path)
	require.NoError(t, err)

	added, err := s.AddCategory(" Food ")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddCategory("Food")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = s.AddCategory("")
	assert.Error(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{model.Uncategorized, "Food"}, reloaded.Table().Names())
}

func TestStore_CategoryNamesIgnoreCase(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "categories.yaml"))
	require.NoError(t, err)
	_, err = s.AddCategory("Food")
	require.NoError(t, err)

	added, err := s.AddCategory("food")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []string{model.Uncategorized, "Food"}, s.Table().Names())

	tbl := s.Table()
	assert.True(t, tbl.Has("FOOD"))
	name, ok := tbl.Lookup(" food ")
	require.True(t, ok)
	assert.Equal(t, "Food", name)
	_, ok = tbl.Lookup("Gas")
	assert.False(t, ok)

	learned, err := s.Learn("fOoD", "Starbucks")
	require.NoError(t, err)
	assert.True(t, learned)
	assert.Equal(t, "Food", s.Table().Match("STARBUCKS #12"))
}

func TestStore_Learn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	s, err := Load(path)
	require.NoError(t, err)
	_, err = s.AddCategory("Food")
	require.NoError(t, err)

	changed, err := s.Learn("Food", "  Starbucks ")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Learn("Food", "STARBUCKS")
	require.NoError(t, err)
	assert.False(t, changed, "keyword already present")

	changed, err = s.Learn("Food", "   ")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.Learn(model.Uncategorized, "anything")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = s.Learn("Travel", "air canada")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Starbucks"}, reloaded.Table().Categories[1].Keywords)
	assert.Equal(t, "Food", reloaded.Table().Match("STARBUCKS #0423"))
}

func TestStore_LearnNeverReorders(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "categories.yaml"))
	require.NoError(t, err)
	for _, name := range []string{"A", "B"} {
		_, err := s.AddCategory(name)
		require.NoError(t, err)
	}
	_, err = s.Learn("B", "x")
	require.NoError(t, err)
	_, err = s.Learn("A", "y")
	require.NoError(t, err)
	_, err = s.Learn("B", "z")
	require.NoError(t, err)

	tbl := s.Table()
	assert.Equal(t, []string{model.Uncategorized, "A", "B"}, tbl.Names())
	assert.Equal(t, []string{"x", "z"}, tbl.Categories[2].Keywords)
}

func TestStore_LearnFromRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	s, err := Load(path)
	require.NoError(t, err)
	_, err = s.AddCategory("Food")
	require.NoError(t, err)

	a := rec("TIM HORTONS")
	a.Category = "Food"
	b := rec("SHELL")
	c := rec("GHOST")
	c.Category = "Deleted"
	d := rec("tim hortons")
	d.Category = "Food"

	n, err := s.LearnFromRecords([]model.Record{a, b, c, d})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"TIM HORTONS"}, reloaded.Table().Categories[1].Keywords)
}

func TestStore_SaveFailureRollsBack(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "data")
	s, err := Load(filepath.Join(blocker, "categories.yaml"))
	require.NoError(t, err)

	// A plain file where the directory should be makes the write fail.
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err = s.AddCategory("Food")
	require.Error(t, err)
	assert.False(t, s.Table().Has("Food"))
}
