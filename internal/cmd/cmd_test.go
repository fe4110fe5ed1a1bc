package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olorin-ai/verdict/internal/audit"
	"github.com/olorin-ai/verdict/internal/config"
)

const testStateDoc = `{
  "id": "inv-cli-test",
  "orchestrator_loops": 3,
  "resource_pressure": 0.2,
  "ai_confidence": 0.8,
  "evidence_strength": 0.7,
  "tools_used": ["snowflake_query_tool", "device_check"],
  "tool_results": {"device_check": {"hits": 1}},
  "domain_findings": {
    "network": {"risk_score": 0.5, "evidence": ["proxy exit node"]},
    "location": {"risk_score": 0.3, "evidence": ["geo match"]},
    "device": {"risk_score": 0.4, "evidence": ["clean device history"]}
  }
}`

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func setupDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	viper.Set(config.KeyDataDir, dir)
	viper.Set(config.KeySigningKey, "cli-test-signing-key-0123456789abcd")
	t.Cleanup(func() {
		viper.Set(config.KeyDataDir, nil)
		viper.Set(config.KeySigningKey, nil)
	})
	return dir
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("safety:\n  max_loops: 12\n"), 0o644))

	assert.NoError(t, runCommand(t, "validate", "-f", path))
}

func TestValidateCommand_InvalidDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("safety:\n  max_loops: -1\n"), 0o644))

	assert.Error(t, runCommand(t, "validate", "-f", path))
}

func TestEvaluateCommand_PersistsAuditRecord(t *testing.T) {
	dataDir := setupDataDir(t)

	statePath := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(testStateDoc), 0o644))

	require.NoError(t, runCommand(t, "evaluate",
		"--state", statePath,
		"--model-score", "0.55"))

	store, err := audit.NewStore(filepath.Join(dataDir, "verdicts.db"), "cli-test-signing-key-0123456789abcd")
	require.NoError(t, err)
	defer store.Close()

	records, err := store.List(context.Background(), "inv-cli-test", "", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "valid", records[0].Status)
	assert.True(t, records[0].Published)

	ok, err := store.Verify(context.Background(), records[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateCommand_WritesUpdatedState(t *testing.T) {
	setupDataDir(t)

	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	outPath := filepath.Join(dir, "state-out.json")
	require.NoError(t, os.WriteFile(statePath, []byte(testStateDoc), 0o644))

	require.NoError(t, runCommand(t, "evaluate",
		"--state", statePath,
		"--model-score", "0.3",
		"--no-persist",
		"--write-state", outPath))

	updated, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(updated), "confidence_evolution", "mutated state carries the new consolidation")
}

func TestEvaluateCommand_RequiresStateFlag(t *testing.T) {
	// Reset the sticky flag from earlier runs
	evaluateStateFile = ""
	evaluateWriteState = ""
	evaluateNoPersist = false
	err := runCommand(t, "evaluate")
	assert.Error(t, err)
}
