package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears the override variables for one test and restores them after.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDataDir, EnvOutputDir, EnvLogLevel} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestRoundTrip(t *testing.T) {
	unsetEnv(t)
	dir := t.TempDir()
	cfg := Default(dir)
	cfg.Intake.Debounce = 3 * time.Second
	cfg.AMEX.HeaderRow = 8
	cfg.Watchers = append(cfg.Watchers, Watcher{Source: "canonical", Dir: "cleaned", Extension: ".csv"})

	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.DataDir, got.DataDir)
	assert.Equal(t, cfg.OutputDir, got.OutputDir)
	assert.Equal(t, cfg.ReportFile, got.ReportFile)
	assert.Equal(t, 3*time.Second, got.Intake.Debounce)
	assert.Equal(t, 5, got.Intake.MaxAttempts)
	assert.Equal(t, time.Second, got.Intake.RetryBackoff)
	assert.Equal(t, 8, got.AMEX.HeaderRow)
	require.Len(t, got.Watchers, 3)
	assert.Equal(t, "canonical", got.Watchers[2].Source)
	assert.Equal(t, "info", got.Log.Level)
}

func TestDefaults(t *testing.T) {
	cfg := Default("/srv/tally")

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 10*time.Second, cfg.Intake.Debounce)
	assert.Equal(t, 5, cfg.Intake.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Intake.RetryBackoff)
	assert.Equal(t, 12, cfg.AMEX.HeaderRow)
	require.Len(t, cfg.Watchers, 2)
	assert.Equal(t, "cibc", cfg.Watchers[0].Source)
	assert.Equal(t, ".xls", cfg.Watchers[1].Extension)
	assert.False(t, cfg.Git.AutoCommit)
	assert.Equal(t, "tally", cfg.Git.AuthorName)
	assert.NoError(t, cfg.Validate())
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	unsetEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("output_dir: out\nintake:\n  debounce: 30s\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, 30*time.Second, cfg.Intake.Debounce)
	assert.Equal(t, 5, cfg.Intake.MaxAttempts)
	assert.Equal(t, "data", cfg.DataDir)
}

func TestLoad_RelativePathsResolveAgainstConfigDir(t *testing.T) {
	unsetEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, Default(dir)))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataPath())
	assert.Equal(t, filepath.Join(dir, "data", "ledger.csv"), cfg.LedgerPath())
	assert.Equal(t, filepath.Join(dir, "data", "session.csv"), cfg.SessionPath())
	assert.Equal(t, filepath.Join(dir, "data", "categories.yaml"), cfg.CategoriesPath())
	assert.Equal(t, filepath.Join(dir, "processed"), cfg.OutputPath())
	assert.Equal(t, "/abs/x", cfg.Resolve("/abs/x"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	unsetEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, Default(dir)))

	t.Setenv(EnvDataDir, "/var/tally")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/tally", cfg.DataPath())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_DotEnv(t *testing.T) {
	unsetEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, Default(dir)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TALLY_OUTPUT_DIR=cleaned\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cleaned"), cfg.OutputPath())
}

func TestLoad_EnvBeatsDotEnv(t *testing.T) {
	unsetEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, Default(dir)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TALLY_LOG_LEVEL=debug\n"), 0o644))
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Intake.MaxAttempts = 0 }},
		{"negative debounce", func(c *Config) { c.Intake.Debounce = -time.Second }},
		{"header row", func(c *Config) { c.AMEX.HeaderRow = 0 }},
		{"unknown source", func(c *Config) { c.Watchers[0].Source = "chase" }},
		{"missing dir", func(c *Config) { c.Watchers[1].Dir = "" }},
		{"watcher writes into itself", func(c *Config) { c.Watchers[0].Dir = c.OutputDir }},
		{"watcher dir spelled differently", func(c *Config) { c.Watchers[1].Dir = "./processed/" }},
		{"absolute output dir", func(c *Config) { c.OutputDir = c.Resolve(c.Watchers[0].Dir) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestYAMLFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, Default(dir)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "data_dir: data")
	assert.Contains(t, contents, "debounce: 10s")
	assert.Contains(t, contents, "header_row: 12")
	assert.Contains(t, contents, "source: cibc")
	assert.Contains(t, contents, "auto_commit: false")
	assert.NotContains(t, contents, "dir: "+dir)
}
