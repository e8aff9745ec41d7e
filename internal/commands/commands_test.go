package commands_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tally-dev/tally/internal/commands"
	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/report"
)

const cibcExport = "2025-01-03,TIM HORTONS #123,4.25,\n" +
	"2025-01-05,PAYROLL,,2500.00\n" +
	"2025-02-10,SHELL GAS,40.00,\n"

var shortID = regexp.MustCompile(`(?m)^([0-9a-f]{8})\s+\S+\s+SHELL GAS`)

func writeExport(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "jan.csv")
	require.NoError(t, os.WriteFile(p, []byte(cibcExport), 0o644))
	return p
}

func TestLoadEditMerge(t *testing.T) {
	dir, cfgPath := initProject(t)
	export := writeExport(t, dir)

	out, err := runTally(t, "-c", cfgPath, "category", "add", "Gas")
	require.NoError(t, err)
	assert.Contains(t, out, "Added category Gas")

	out, err = runTally(t, "-c", cfgPath, "load", export, "--source", "cibc")
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 3 records")

	out, err = runTally(t, "-c", cfgPath, "load", export, "--source", "cibc")
	require.NoError(t, err)
	assert.Contains(t, out, "already loaded")

	out, err = runTally(t, "-c", cfgPath, "session", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "TIM HORTONS #123")
	m := shortID.FindStringSubmatch(out)
	require.Len(t, m, 2, "listing should show the SHELL GAS id: %s", out)

	_, err = runTally(t, "-c", cfgPath, "session", "set-category", m[1], "Gas", "--learn")
	require.NoError(t, err)

	out, err = runTally(t, "-c", cfgPath, "category", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "SHELL GAS")

	out, err = runTally(t, "-c", cfgPath, "merge")
	require.NoError(t, err)
	assert.Contains(t, out, "Merged 3 records")

	_, err = runTally(t, "-c", cfgPath, "merge")
	assert.ErrorIs(t, err, ledger.ErrEmptySession)

	out, err = runTally(t, "-c", cfgPath, "session", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Session is empty")
}

func TestSessionEdits(t *testing.T) {
	dir, cfgPath := initProject(t)
	_, err := runTally(t, "-c", cfgPath, "load", writeExport(t, dir), "-s", "cibc")
	require.NoError(t, err)

	out, err := runTally(t, "-c", cfgPath, "session", "list")
	require.NoError(t, err)
	id := shortID.FindStringSubmatch(out)[1]

	_, err = runTally(t, "-c", cfgPath, "session", "set-amount", id, "--outflow", "41.50")
	require.NoError(t, err)
	_, err = runTally(t, "-c", cfgPath, "session", "set-amount", id, "--inflow", "1", "--outflow", "1")
	assert.ErrorIs(t, err, ledger.ErrInvalidRecord)

	out, err = runTally(t, "-c", cfgPath, "session", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "41.50")

	_, err = runTally(t, "-c", cfgPath, "session", "delete", id)
	require.NoError(t, err)
	_, err = runTally(t, "-c", cfgPath, "session", "delete", id)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)

	out, err = runTally(t, "-c", cfgPath, "session", "insert",
		"--date", "2025-01-20", "--description", "Farmers market", "--outflow", "$18.00")
	require.NoError(t, err)
	assert.Contains(t, out, "Inserted")

	out, err = runTally(t, "-c", cfgPath, "session", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Farmers market")
	assert.Contains(t, out, "CANONICAL")

	_, err = runTally(t, "-c", cfgPath, "session", "insert", "--date", "20/01/2025", "--description", "x", "--outflow", "1")
	assert.Error(t, err)

	out, err = runTally(t, "-c", cfgPath, "session", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Discarded 3 records")
}

func TestConvertAndHistory(t *testing.T) {
	dir, cfgPath := initProject(t)
	export := writeExport(t, dir)

	out, err := runTally(t, "-c", cfgPath, "convert", "-s", "cibc", export)
	require.NoError(t, err)
	assert.Contains(t, out, "3 records")
	_, err = os.Stat(filepath.Join(dir, "processed", "jan_cibc_cleaned.csv"))
	require.NoError(t, err)

	out, err = runTally(t, "-c", cfgPath, "convert", "-s", "cibc", filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, out, "missing.csv")

	out, err = runTally(t, "-c", cfgPath, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "processed")
	assert.Contains(t, out, "failed")

	_, err = runTally(t, "-c", cfgPath, "convert", "-s", "chase", export)
	assert.Error(t, err)
}

func TestSummaryAndReport(t *testing.T) {
	dir, cfgPath := initProject(t)
	_, err := runTally(t, "-c", cfgPath, "load", writeExport(t, dir), "-s", "cibc")
	require.NoError(t, err)
	_, err = runTally(t, "-c", cfgPath, "merge")
	require.NoError(t, err)

	out, err := runTally(t, "-c", cfgPath, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-01")
	assert.Contains(t, out, "2495.75")
	assert.Contains(t, out, "Outflow by category")

	out, err = runTally(t, "-c", cfgPath, "summary", "--month", "2025-02")
	require.NoError(t, err)
	assert.Contains(t, out, "Outflow by category, 2025-02")
	assert.Contains(t, out, "40.00")
	assert.NotContains(t, out, "2500.00")

	_, err = runTally(t, "-c", cfgPath, "summary", "--month", "February")
	assert.Error(t, err)

	out, err = runTally(t, "-c", cfgPath, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "Report written")

	f, err := excelize.OpenFile(filepath.Join(dir, "reports", "master_finance_tracker.xlsx"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.DetailSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestMissingConfig(t *testing.T) {
	_, err := runTally(t, "-c", filepath.Join(t.TempDir(), config.FileName), "session", "list")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatch_StopsOnCancel(t *testing.T) {
	dir, cfgPath := initProject(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		cmd := commands.NewRootCommand()
		cmd.SetOut(&syncDiscard{})
		cmd.SetErr(&syncDiscard{})
		cmd.SetArgs([]string{"-c", cfgPath, "watch"})
		done <- cmd.ExecuteContext(ctx)
	}()

	want := filepath.Join(dir, "processed", "feb_cibc_cleaned.csv")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "imports", "cibc", "feb.csv"), []byte(cibcExport), 0o644)
		_, err := os.Stat(want)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

type syncDiscard struct{}

func (syncDiscard) Write(p []byte) (int, error) { return len(p), nil }
