package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommand_ReportsEachScenario(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), "testdata/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✓ pair_trace\n")
	assert.Contains(t, out, "✗ failing\n")
	assert.Contains(t, out, "y = 11")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommand_FilterJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(jsonOpts()), "testdata/scenarios", "--filter", "pair*")
	require.NoError(t, err)

	var result TestResult
	decodeEnvelope(t, out, &result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "pair_trace", result.Scenarios[0].Name)
}

func TestTestCommand_UpdateGolden(t *testing.T) {
	dir := t.TempDir()
	scenario := "testdata/scenarios/pair_trace.yaml"

	_, err := execute(t, NewTestCommand(textOpts()), scenario, "--golden-dir", dir)
	require.Error(t, err, "no golden file yet")

	_, err = execute(t, NewTestCommand(textOpts()), scenario, "--golden-dir", dir, "--update")
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(dir, "pair_trace.golden"))
	require.NoError(t, err)
	checkedIn, err := os.ReadFile("testdata/scenarios/golden/pair_trace.golden")
	require.NoError(t, err)
	assert.Equal(t, string(bytes.TrimSpace(checkedIn)), string(bytes.TrimSpace(written)))

	_, err = execute(t, NewTestCommand(textOpts()), scenario, "--golden-dir", dir)
	require.NoError(t, err)
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pair_trace.golden"), []byte(`{"scenario":"pair_trace","trace":[]}`), 0o644))

	out, err := execute(t, NewTestCommand(textOpts()), "testdata/scenarios/pair_trace.yaml", "--golden-dir", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_Errors(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()), "testdata/no-such-dir")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, NewTestCommand(textOpts()), "testdata/scenarios", "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
