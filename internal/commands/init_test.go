package commands_test

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/categorize"
	"github.com/tally-dev/tally/internal/commands"
	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/gitops"
)

func runTally(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// initProject runs `tally init` in a temp dir and returns the dir and config path.
func initProject(t *testing.T) (string, string) {
	t.Helper()
	for _, k := range []string{config.EnvDataDir, config.EnvOutputDir, config.EnvLogLevel} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	dir := t.TempDir()
	_, err := runTally(t, "init", dir)
	require.NoError(t, err)
	return dir, filepath.Join(dir, config.FileName)
}

func TestInit_CreatesStructure(t *testing.T) {
	dir, _ := initProject(t)

	expectedDirs := []string{
		"data",
		"processed",
		"reports",
		filepath.Join("imports", "cibc"),
		filepath.Join("imports", "amex"),
	}
	for _, d := range expectedDirs {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
}

func TestInit_Config(t *testing.T) {
	dir, cfgPath := initProject(t)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataPath())
	assert.Len(t, cfg.Watchers, 2)
}

func TestInit_Categories(t *testing.T) {
	dir, _ := initProject(t)

	cats, err := categorize.Load(filepath.Join(dir, "data", "categories.yaml"))
	require.NoError(t, err)
	assert.Equal(t, categorize.DefaultTable().Names(), cats.Table().Names())
}

func TestInit_Gitignore(t *testing.T) {
	dir, _ := initProject(t)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ".env")
}

func TestInit_RefusesExistingProject(t *testing.T) {
	dir, _ := initProject(t)
	_, err := runTally(t, "init", dir)
	require.Error(t, err, "second init should fail")
}

func TestVersion(t *testing.T) {
	out, err := runTally(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")
}

func TestInit_GitVersionsDataDir(t *testing.T) {
	if !gitops.Available() {
		t.Skip("git not available, skipping")
	}
	for _, k := range []string{config.EnvDataDir, config.EnvOutputDir, config.EnvLogLevel} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	dir := t.TempDir()
	_, err := runTally(t, "init", dir, "--git")
	require.NoError(t, err)

	dataDir := filepath.Join(dir, "data")
	assert.True(t, gitops.IsRepo(dataDir))

	cfgPath := filepath.Join(dir, config.FileName)
	export := filepath.Join(dir, "jan.csv")
	require.NoError(t, os.WriteFile(export, []byte("2025-01-03,TIM HORTONS,4.25,\n"), 0o644))
	_, err = runTally(t, "-c", cfgPath, "load", export, "-s", "cibc")
	require.NoError(t, err)

	out, err := runTally(t, "-c", cfgPath, "merge")
	require.NoError(t, err)
	assert.Contains(t, out, "Committed data dir")

	log := exec.Command("git", "log", "--format=%s")
	log.Dir = dataDir
	subjects, err := log.Output()
	require.NoError(t, err)
	assert.Contains(t, string(subjects), "merge: 1 records from jan.csv:")
	assert.Contains(t, string(subjects), "init: category table")
}
