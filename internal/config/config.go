package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tally-dev/tally/internal/fileutil"
	"github.com/tally-dev/tally/internal/model"
)

// FileName is the config file looked up in the working directory.
const FileName = "tally.yaml"

// Environment overrides, applied after tally.yaml and .env are read.
const (
	EnvDataDir   = "TALLY_DATA_DIR"
	EnvOutputDir = "TALLY_OUTPUT_DIR"
	EnvLogLevel  = "TALLY_LOG_LEVEL"
)

// Config represents the top-level tally.yaml configuration.
type Config struct {
	DataDir    string       `yaml:"data_dir"`
	OutputDir  string       `yaml:"output_dir"`
	ReportFile string       `yaml:"report_file"`
	Intake     IntakeConfig `yaml:"intake"`
	AMEX       AMEXConfig   `yaml:"amex"`
	Watchers   []Watcher    `yaml:"watchers,omitempty"`
	Log        LogConfig    `yaml:"log"`
	Git        GitConfig    `yaml:"git"`

	// dir is the directory relative paths resolve against.
	dir string
}

// IntakeConfig tunes the folder watcher.
type IntakeConfig struct {
	Debounce     time.Duration `yaml:"debounce"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// AMEXConfig controls the AMEX statement layout.
type AMEXConfig struct {
	HeaderRow int `yaml:"header_row"` // 1-based
}

// Watcher is one folder to watch for new exports.
type Watcher struct {
	Source    string `yaml:"source"`
	Dir       string `yaml:"dir"`
	Extension string `yaml:"extension"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// GitConfig controls versioning of the data directory.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Default returns a Config with sensible defaults for a new project rooted at dir.
func Default(dir string) *Config {
	return &Config{
		DataDir:    "data",
		OutputDir:  "processed",
		ReportFile: filepath.Join("reports", "master_finance_tracker.xlsx"),
		Intake: IntakeConfig{
			Debounce:     10 * time.Second,
			MaxAttempts:  5,
			RetryBackoff: time.Second,
		},
		AMEX: AMEXConfig{HeaderRow: 12},
		Watchers: []Watcher{
			{Source: string(model.SourceCIBC), Dir: filepath.Join("imports", "cibc"), Extension: ".csv"},
			{Source: string(model.SourceAMEX), Dir: filepath.Join("imports", "amex"), Extension: ".xls"},
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Git: GitConfig{
			AuthorName:  "tally",
			AuthorEmail: "tally@localhost",
		},
		dir: dir,
	}
}

// Load reads a tally.yaml file from disk. A .env file next to it is loaded
// into the environment first; variables already set are left alone.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	dir := filepath.Dir(abs)

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default(dir)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.Intake.MaxAttempts < 1 {
		return fmt.Errorf("intake.max_attempts must be at least 1, got %d", c.Intake.MaxAttempts)
	}
	if c.Intake.Debounce < 0 || c.Intake.RetryBackoff < 0 {
		return fmt.Errorf("intake durations must not be negative")
	}
	if c.AMEX.HeaderRow < 1 {
		return fmt.Errorf("amex.header_row must be at least 1, got %d", c.AMEX.HeaderRow)
	}
	for i, w := range c.Watchers {
		if _, ok := model.ParseSource(w.Source); !ok {
			return fmt.Errorf("watchers[%d]: unknown source %q", i, w.Source)
		}
		if w.Dir == "" {
			return fmt.Errorf("watchers[%d]: dir is required", i)
		}
		// Cleaned files written into a watched folder would be picked up again.
		if filepath.Clean(c.Resolve(w.Dir)) == filepath.Clean(c.OutputPath()) {
			return fmt.Errorf("watchers[%d]: dir %q is the output_dir", i, w.Dir)
		}
	}
	return nil
}

// Dir returns the directory relative paths resolve against.
func (c *Config) Dir() string { return c.dir }

// Resolve makes p absolute against the config directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

// DataPath returns the resolved data directory.
func (c *Config) DataPath() string { return c.Resolve(c.DataDir) }

// OutputPath returns the resolved directory for cleaned files.
func (c *Config) OutputPath() string { return c.Resolve(c.OutputDir) }

// ReportPath returns the resolved report workbook path.
func (c *Config) ReportPath() string { return c.Resolve(c.ReportFile) }

// LedgerPath is the durable ledger file.
func (c *Config) LedgerPath() string { return filepath.Join(c.DataPath(), "ledger.csv") }

// SessionPath is the pending session buffer file.
func (c *Config) SessionPath() string { return filepath.Join(c.DataPath(), "session.csv") }

// CategoriesPath is the category table file.
func (c *Config) CategoriesPath() string { return filepath.Join(c.DataPath(), "categories.yaml") }
