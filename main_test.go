package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(raw, []byte("DATE;DRINK;BRAND;PLACE;PRICE\n"+
		"01/01/2025;Cerveza;Mahou;Casa Madrid;3,00€\n"+
		"14-feb;Cerveza;Estrella;Malaga;2,50\n"), 0644))

	t.Setenv("RAW_INPUT_PATH", raw)
	t.Setenv("CLEAN_PATH", filepath.Join(dir, "clean.csv"))
	t.Setenv("ENRICHED_PATH", filepath.Join(dir, "enriched.csv"))
	t.Setenv("RESULTS_DIR", filepath.Join(dir, "results"))
	t.Setenv("SNAPSHOT_ENABLED", "false")
	t.Setenv("SINK", "none")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func TestRootCommandRunsAllStages(t *testing.T) {
	dir := setupEnv(t)

	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.FileExists(t, filepath.Join(dir, "clean.csv"))
	assert.FileExists(t, filepath.Join(dir, "enriched.csv"))
	assert.FileExists(t, filepath.Join(dir, "results", "general_summary.txt"))
}

func TestStageSubcommands(t *testing.T) {
	dir := setupEnv(t)

	for _, stage := range []string{"normalize", "enrich", "report"} {
		cmd := newRootCmd()
		cmd.SetArgs([]string{stage})
		require.NoError(t, cmd.Execute(), stage)
	}
	assert.FileExists(t, filepath.Join(dir, "results", "summary.json"))
}

func TestInvalidConfigurationFails(t *testing.T) {
	setupEnv(t)
	t.Setenv("SINK", "mongodb")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"run"})
	assert.Error(t, cmd.Execute())
}

func TestMissingRulesFileFails(t *testing.T) {
	setupEnv(t)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"normalize", "--rules", filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, cmd.Execute())
}
