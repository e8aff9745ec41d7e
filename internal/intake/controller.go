package intake

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tally-dev/tally/internal/importer"
	"github.com/tally-dev/tally/internal/intakelog"
	"github.com/tally-dev/tally/internal/model"
)

// ErrFileLocked is returned when a file stayed locked by another process
// for every attempt.
var ErrFileLocked = errors.New("file locked")

// ErrEmptyFile is returned for a file with no content yet. A file that is
// still being written often shows up empty on its first event; the path is
// left untracked so the next event processes it.
var ErrEmptyFile = errors.New("file is empty")

const skippedEmpty = "empty file"

// State is the per-path processing state.
type State string

const (
	StateIdle           State = "idle"
	StateDebounced      State = "debounced"
	StateProcessing     State = "processing"
	StateSucceeded      State = "succeeded"
	StateLockedRetrying State = "locked-retrying"
	StateFailed         State = "failed"
)

// Options tunes debounce and lock retry.
type Options struct {
	Debounce     time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// DefaultOptions returns a 10s debounce window and 5 attempts 1s apart.
func DefaultOptions() Options {
	return Options{
		Debounce:     10 * time.Second,
		MaxAttempts:  5,
		RetryBackoff: time.Second,
	}
}

// Location is one watched folder and where its cleaned output goes.
type Location struct {
	Source    model.Source
	Dir       string
	Extension string
	OutputDir string
}

// Event is a file-system notification for one path.
type Event struct {
	Path  string
	IsDir bool
}

// Result reports what Handle or Process did with a path.
type Result struct {
	Path     string
	State    State
	Skipped  string // reason the event was ignored, if it was
	Attempts int
	Records  int
	Issues   []importer.Issue
	Output   string
	Err      error
}

// OpenFunc opens a file for reading.
type OpenFunc func(path string) (io.ReadCloser, error)

// Controller turns file events for one Location into cleaned output files.
// Handle may be called from several goroutines; at most one attempt per
// path is in flight at a time.
type Controller struct {
	loc    Location
	opts   Options
	parser importer.Parser
	log    zerolog.Logger

	// Hooks; nil means the real implementation.
	Open    OpenFunc
	Now     func() time.Time
	Sleep   func(time.Duration)
	History *intakelog.Log

	mu    sync.Mutex
	paths map[string]*pathState
}

type pathState struct {
	state   State
	started time.Time
}

// NewController creates a Controller. Zero option fields take their defaults.
func NewController(loc Location, parser importer.Parser, opts Options, log zerolog.Logger) *Controller {
	def := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = def.Debounce
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = def.RetryBackoff
	}
	loc.Dir = filepath.Clean(loc.Dir)
	return &Controller{
		loc:    loc,
		opts:   opts,
		parser: parser,
		log:    log.With().Str("source", string(loc.Source)).Logger(),
		paths:  make(map[string]*pathState),
	}
}

// Location returns the watched location.
func (c *Controller) Location() Location { return c.loc }

// State returns the current state of path. Expired entries read as idle.
func (c *Controller) State(path string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(c.now())
	if st, ok := c.paths[filepath.Clean(path)]; ok {
		return st.state
	}
	return StateIdle
}

// Tracked returns the number of paths in the state table.
func (c *Controller) Tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

// Handle filters an event, applies the debounce window, and processes the
// file if it is due.
func (c *Controller) Handle(ev Event) Result {
	path := filepath.Clean(ev.Path)
	res := Result{Path: path, State: StateIdle}

	switch {
	case ev.IsDir:
		res.Skipped = "directory"
		return res
	case filepath.Dir(path) != c.loc.Dir:
		res.Skipped = "outside watched folder"
		return res
	case !importer.HasExtension(path, c.loc.Extension):
		res.Skipped = "extension"
		return res
	}

	c.mu.Lock()
	now := c.now()
	c.evictLocked(now)
	if st, ok := c.paths[path]; ok {
		c.mu.Unlock()
		res.State = st.state
		if st.state == StateSucceeded || st.state == StateFailed {
			res.State = StateDebounced
			res.Skipped = "debounced"
		} else {
			res.Skipped = "in flight"
		}
		c.log.Debug().Str("path", path).Str("reason", res.Skipped).Msg("skipping event")
		return res
	}
	st := &pathState{state: StateProcessing, started: now}
	c.paths[path] = st
	c.mu.Unlock()

	res = c.process(path, st)

	c.mu.Lock()
	if errors.Is(res.Err, ErrEmptyFile) {
		delete(c.paths, path)
	} else {
		st.state = res.State
	}
	c.mu.Unlock()
	return res
}

// Process runs the parser on path with lock retry and writes the cleaned
// artifact. It bypasses the debounce table.
func (c *Controller) Process(path string) Result {
	return c.process(filepath.Clean(path), nil)
}

func (c *Controller) process(path string, st *pathState) Result {
	log := c.log.With().Str("path", path).Logger()
	res := Result{Path: path, State: StateProcessing}

	if err := os.MkdirAll(c.loc.OutputDir, 0o755); err != nil {
		return c.finish(log, res, fmt.Errorf("creating output dir: %w", err))
	}

	var (
		records []model.Record
		issues  []importer.Issue
		err     error
	)
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		res.Attempts = attempt
		records, issues, err = c.parseOnce(path)
		if err == nil || !isLocked(err) {
			break
		}
		c.setState(st, StateLockedRetrying)
		log.Warn().Int("attempt", attempt).Int("max_attempts", c.opts.MaxAttempts).Msg("file locked, retrying")
		if attempt < c.opts.MaxAttempts {
			c.sleep(c.opts.RetryBackoff)
			c.setState(st, StateProcessing)
		}
	}
	if errors.Is(err, ErrEmptyFile) {
		log.Debug().Msg("file is empty, waiting for content")
		res.State = StateIdle
		res.Skipped = skippedEmpty
		res.Err = err
		return res
	}
	if err != nil {
		if isLocked(err) {
			err = fmt.Errorf("%w: %s after %d attempts", ErrFileLocked, path, res.Attempts)
		}
		return c.finish(log, res, err)
	}

	for _, is := range issues {
		log.Warn().Int("row", is.Row).Str("field", is.Field).Str("value", is.Value).Msg(is.Reason)
	}
	res.Issues = issues
	res.Records = len(records)

	out, err := importer.WriteCleaned(c.loc.OutputDir, path, c.loc.Source, records)
	if err != nil {
		return c.finish(log, res, err)
	}
	res.Output = out
	return c.finish(log, res, nil)
}

func (c *Controller) parseOnce(path string) ([]model.Record, []importer.Issue, error) {
	f, err := c.open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	return c.parser.Parse(bytes.NewReader(data))
}

func (c *Controller) finish(log zerolog.Logger, res Result, err error) Result {
	entry := intakelog.Entry{
		Timestamp: c.now().UTC(),
		Source:    string(c.loc.Source),
		Path:      res.Path,
		Attempts:  res.Attempts,
		Records:   res.Records,
		Output:    res.Output,
	}

	if err != nil {
		res.State = StateFailed
		res.Err = err
		entry.Outcome = intakelog.OutcomeFailed
		if errors.Is(err, ErrFileLocked) {
			entry.Outcome = intakelog.OutcomeLocked
		}
		entry.Detail = err.Error()
		log.Error().Err(err).Int("attempts", res.Attempts).Msg("processing failed")
	} else {
		res.State = StateSucceeded
		entry.Outcome = intakelog.OutcomeProcessed
		if len(res.Issues) > 0 {
			entry.Detail = summarizeIssues(res.Issues)
		}
		log.Info().Int("records", res.Records).Str("output", res.Output).Msg("cleaned file written")
	}

	if c.History != nil {
		if herr := c.History.Append(entry); herr != nil {
			log.Warn().Err(herr).Msg("appending intake log")
		}
	}
	return res
}

// evictLocked drops finished entries whose debounce window has passed.
func (c *Controller) evictLocked(now time.Time) {
	for p, st := range c.paths {
		if st.state != StateSucceeded && st.state != StateFailed {
			continue
		}
		if now.Sub(st.started) >= c.opts.Debounce {
			delete(c.paths, p)
		}
	}
}

func (c *Controller) setState(st *pathState, s State) {
	if st == nil {
		return
	}
	c.mu.Lock()
	st.state = s
	c.mu.Unlock()
}

func (c *Controller) open(path string) (io.ReadCloser, error) {
	if c.Open != nil {
		return c.Open(path)
	}
	return os.Open(path)
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) sleep(d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

// isLocked reports whether err means another process holds the file.
func isLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) || isSharingViolation(err)
}

func summarizeIssues(issues []importer.Issue) string {
	const limit = 3
	msgs := make([]string, 0, limit)
	for i, is := range issues {
		if i == limit {
			msgs = append(msgs, fmt.Sprintf("and %d more", len(issues)-limit))
			break
		}
		msgs = append(msgs, is.String())
	}
	return strings.Join(msgs, "; ")
}
