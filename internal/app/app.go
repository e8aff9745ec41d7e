package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/categorize"
	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/gitops"
	"github.com/tally-dev/tally/internal/id"
	"github.com/tally-dev/tally/internal/importer"
	"github.com/tally-dev/tally/internal/intake"
	"github.com/tally-dev/tally/internal/intakelog"
	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/logger"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/report"
)

// ErrUnknownSource is returned when no parser is registered for a source name.
var ErrUnknownSource = errors.New("unknown source")

// State is everything one tally invocation works on: the category table,
// the ledger, and the pending session. Mutations to the session stay in
// memory until SaveSession.
type State struct {
	Config     *config.Config
	Categories *categorize.Store
	Ledger     *ledger.Store
	Session    *ledger.Session
	History    *intakelog.Log

	registry *importer.Registry
	base     zerolog.Logger
	log      zerolog.Logger
}

// Open loads the category table, ledger, and session named by cfg.
func Open(cfg *config.Config, log zerolog.Logger) (*State, error) {
	cats, err := categorize.Load(cfg.CategoriesPath())
	if err != nil {
		return nil, err
	}

	store := ledger.NewStore(cfg.LedgerPath())
	if err := store.Load(); err != nil {
		return nil, err
	}

	sess, err := ledger.LoadSession(cfg.SessionPath())
	if err != nil {
		return nil, err
	}

	return &State{
		Config:     cfg,
		Categories: cats,
		Ledger:     store,
		Session:    sess,
		History:    intakelog.New(cfg.DataPath()),
		registry:   registryFor(cfg),
		base:       log,
		log:        logger.Component(log, "app"),
	}, nil
}

func registryFor(cfg *config.Config) *importer.Registry {
	r := importer.NewRegistry()
	r.Register(&importer.CIBCParser{})
	r.Register(&importer.AMEXParser{HeaderRow: cfg.AMEX.HeaderRow})
	r.Register(&importer.CanonicalParser{})
	return r
}

// Parser returns the parser for a source name.
func (s *State) Parser(source string) (importer.Parser, error) {
	p := s.registry.Get(source)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return p, nil
}

// SaveSession writes the session buffer to disk.
func (s *State) SaveSession() error {
	return s.Session.Save(s.Config.SessionPath())
}

// LoadResult reports what LoadUpload did.
type LoadResult struct {
	Upload  string
	Records int
	Issues  []importer.Issue
	Skipped bool // same upload already loaded
}

// LoadUpload parses path, categorizes the records, and replaces the session
// with them. Loading the file that is already the session is a no-op unless
// force is set.
func (s *State) LoadUpload(path, source string, force bool) (LoadResult, error) {
	parser, err := s.Parser(source)
	if err != nil {
		return LoadResult{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("reading upload: %w", err)
	}
	token := uploadToken(path, info.Size())
	if !force && s.Session.Len() > 0 && s.Session.Upload() == token {
		s.log.Info().Str("upload", token).Msg("upload already loaded")
		return LoadResult{Upload: token, Records: s.Session.Len(), Skipped: true}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("reading upload: %w", err)
	}
	defer f.Close()

	records, issues, err := parser.Parse(f)
	if err != nil {
		return LoadResult{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	for _, is := range issues {
		s.log.Warn().Str("path", path).Int("row", is.Row).Str("field", is.Field).Str("value", is.Value).Msg(is.Reason)
	}

	records = categorize.Categorize(records, s.Categories.Table())
	s.Session.Replace(records, token)
	if err := s.SaveSession(); err != nil {
		return LoadResult{}, err
	}
	s.log.Info().Str("upload", token).Int("records", len(records)).Msg("session loaded")
	return LoadResult{Upload: token, Records: len(records), Issues: issues}, nil
}

func uploadToken(path string, size int64) string {
	return fmt.Sprintf("%s:%d", filepath.Base(path), size)
}

// SetCategory moves one session record to category. With learn set, the
// record's merchant is added as a keyword of that category.
func (s *State) SetCategory(recordID, category string, learn bool) error {
	name, ok := s.Categories.Table().Lookup(category)
	if !ok {
		return fmt.Errorf("%w: %q", categorize.ErrUnknownCategory, strings.TrimSpace(category))
	}
	category = name
	rec, err := s.Session.Get(recordID)
	if err != nil {
		return err
	}
	if err := s.Session.ReplaceCategoryOf(rec.ID, category); err != nil {
		return err
	}
	if err := s.SaveSession(); err != nil {
		return err
	}
	if learn {
		if _, err := s.Categories.Learn(category, rec.Merchant); err != nil {
			return err
		}
	}
	return nil
}

// SetAmount replaces the amounts of one session record.
func (s *State) SetAmount(recordID string, inflow, outflow decimal.Decimal) error {
	if err := s.Session.SetAmount(recordID, inflow, outflow); err != nil {
		return err
	}
	return s.SaveSession()
}

// DeleteRecord removes one record from the session.
func (s *State) DeleteRecord(recordID string) error {
	if err := s.Session.Delete(recordID); err != nil {
		return err
	}
	return s.SaveSession()
}

// InsertParams holds the fields of a manually entered record.
type InsertParams struct {
	Date        time.Time
	Description string
	Merchant    string
	Inflow      decimal.Decimal
	Outflow     decimal.Decimal
	Source      model.Source
	Category    string
}

// InsertRecord adds a manually entered record to the session and returns its ID.
func (s *State) InsertRecord(params InsertParams) (string, error) {
	if params.Category != "" {
		name, ok := s.Categories.Table().Lookup(params.Category)
		if !ok {
			return "", fmt.Errorf("%w: %q", categorize.ErrUnknownCategory, params.Category)
		}
		params.Category = name
	}
	if params.Source == "" {
		params.Source = model.SourceCanonical
	}
	recordID, err := s.Session.Insert(model.Record{
		Date:        params.Date,
		Description: strings.TrimSpace(params.Description),
		Merchant:    strings.TrimSpace(params.Merchant),
		Inflow:      params.Inflow,
		Outflow:     params.Outflow,
		Source:      params.Source,
		Category:    params.Category,
	})
	if err != nil {
		return "", err
	}
	if err := s.SaveSession(); err != nil {
		return "", err
	}
	return recordID, nil
}

// ResetSession discards every pending record.
func (s *State) ResetSession() error {
	s.Session.Reset()
	return s.SaveSession()
}

// MergeReport reports what Merge did.
type MergeReport struct {
	ledger.MergeResult
	Learned int
	Commit  string // short hash when the data dir was committed
}

// Merge folds the session into the ledger, then learns every
// (merchant, category) pair from the merged records. With git auto-commit
// on, the data dir is committed afterwards.
func (s *State) Merge() (MergeReport, error) {
	pending := s.Session.Records()
	upload := s.Session.Upload()
	if upload == "" {
		upload = "manual entries"
	}

	res, err := s.Ledger.MergeSession(s.Session)
	if err != nil {
		return MergeReport{}, err
	}
	s.log.Info().Int("merged", res.Merged).Int("dropped", res.Dropped).Int("total", res.Total).Msg("session merged")

	if err := s.SaveSession(); err != nil {
		return MergeReport{MergeResult: res}, err
	}
	learned, err := s.Categories.LearnFromRecords(pending)
	if err != nil {
		return MergeReport{MergeResult: res}, fmt.Errorf("learning keywords: %w", err)
	}
	mr := MergeReport{MergeResult: res, Learned: learned}
	mr.Commit = s.commitData(fmt.Sprintf("merge: %d records from %s", res.Merged, upload))
	return mr, nil
}

// commitData snapshots the ledger and category table when auto-commit is on.
// A failed commit is logged; the merge itself is already durable.
func (s *State) commitData(message string) string {
	git := s.Config.Git
	dir := s.Config.DataPath()
	if !git.AutoCommit || !gitops.IsRepo(dir) {
		return ""
	}
	repo := &gitops.Repo{Dir: dir, AuthorName: git.AuthorName, AuthorEmail: git.AuthorEmail}
	hash, err := repo.Commit(message, filepath.Base(s.Config.LedgerPath()), filepath.Base(s.Config.CategoriesPath()))
	if err != nil {
		s.log.Warn().Err(err).Str("dir", dir).Msg("committing data dir")
		return ""
	}
	if hash != "" {
		s.log.Info().Str("commit", hash).Msg("data dir committed")
	}
	return hash
}

// Summary is the aggregate view of the ledger.
type Summary struct {
	Months   []report.MonthSummary
	All      report.Totals
	Current  report.Totals
	Outflows []report.CategoryTotal
	Inflows  []report.CategoryTotal
}

// Summary aggregates the ledger as of now.
func (s *State) Summary(now time.Time) Summary {
	records := s.Ledger.Records()
	months := s.monthly(records, now)
	all, current := report.Overview(records, now)
	return Summary{
		Months:   months,
		All:      all,
		Current:  current,
		Outflows: report.CategoryTotals(records, report.SideOutflow),
		Inflows:  report.CategoryTotals(records, report.SideInflow),
	}
}

// MonthTotals returns per-category outflow and inflow totals for one month
// of the ledger, given as "2025-01".
func (s *State) MonthTotals(key string) (outflows, inflows []report.CategoryTotal, err error) {
	year, month, err := id.ParseMonth(key)
	if err != nil {
		return nil, nil, err
	}
	var records []model.Record
	for _, rec := range s.Ledger.Records() {
		if rec.Date.IsZero() {
			continue
		}
		if y, m := rec.Month(); y == year && m == month {
			records = append(records, rec)
		}
	}
	return report.CategoryTotals(records, report.SideOutflow), report.CategoryTotals(records, report.SideInflow), nil
}

// ExportReport writes the report workbook for the ledger and returns its path.
func (s *State) ExportReport(now time.Time) (string, error) {
	records := s.Ledger.Records()
	path := s.Config.ReportPath()
	if err := report.WriteWorkbook(path, s.monthly(records, now), records); err != nil {
		return "", err
	}
	s.log.Info().Str("path", path).Int("records", len(records)).Msg("report written")
	return path, nil
}

func (s *State) monthly(records []model.Record, now time.Time) []report.MonthSummary {
	months, skipped := report.MonthlySummary(records, now)
	if skipped > 0 {
		s.log.Warn().Int("records", skipped).Msg("records without a date left out of the monthly summary")
	}
	return months
}

// Controllers builds one intake controller per configured watcher.
func (s *State) Controllers() ([]*intake.Controller, error) {
	ctrls := make([]*intake.Controller, 0, len(s.Config.Watchers))
	for _, w := range s.Config.Watchers {
		parser, err := s.Parser(w.Source)
		if err != nil {
			return nil, err
		}
		loc := intake.Location{
			Source:    parser.Source(),
			Dir:       s.Config.Resolve(w.Dir),
			Extension: w.Extension,
			OutputDir: s.Config.OutputPath(),
		}
		ctrls = append(ctrls, s.controller(loc, parser))
	}
	return ctrls, nil
}

// Convert runs a single file through intake, with lock retry, and returns
// the result. The cleaned file goes to the configured output directory.
func (s *State) Convert(path, source string) (intake.Result, error) {
	parser, err := s.Parser(source)
	if err != nil {
		return intake.Result{}, err
	}
	loc := intake.Location{
		Source:    parser.Source(),
		Dir:       filepath.Dir(path),
		Extension: filepath.Ext(path),
		OutputDir: s.Config.OutputPath(),
	}
	res := s.controller(loc, parser).Process(path)
	return res, res.Err
}

func (s *State) controller(loc intake.Location, parser importer.Parser) *intake.Controller {
	opts := intake.Options{
		Debounce:     s.Config.Intake.Debounce,
		MaxAttempts:  s.Config.Intake.MaxAttempts,
		RetryBackoff: s.Config.Intake.RetryBackoff,
	}
	c := intake.NewController(loc, parser, opts, logger.Component(s.base, "intake"))
	c.History = s.History
	return c
}
