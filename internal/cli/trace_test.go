package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceCommand_Timeline(t *testing.T) {
	db := journal(t)

	out, err := execute(t, NewTraceCommand(jsonOpts()), "--db", db)
	require.NoError(t, err)

	var result TraceResult
	resp := decodeEnvelope(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 4, result.Stats["actions"])
	assert.Positive(t, result.Stats["valueChanged"])

	var lastAction int64
	for _, e := range result.Timeline {
		if e.Kind == "action" {
			lastAction = e.Seq
			continue
		}
		assert.Equal(t, "event", e.Kind)
		assert.GreaterOrEqual(t, e.AfterAction, lastAction, "events follow the action they were journaled after")
	}
	assert.Equal(t, "setValue", firstActionType(result.Timeline))
}

func firstActionType(timeline []TraceEntry) string {
	for _, e := range timeline {
		if e.Kind == "action" {
			return e.Type
		}
	}
	return ""
}

func TestTraceCommand_Kind(t *testing.T) {
	db := journal(t)

	out, err := execute(t, NewTraceCommand(jsonOpts()), "--db", db, "--kind", "valueChanged")
	require.NoError(t, err)

	var result TraceResult
	decodeEnvelope(t, out, &result)
	require.NotEmpty(t, result.Timeline)
	for _, e := range result.Timeline {
		assert.Equal(t, "event", e.Kind)
		assert.Equal(t, "valueChanged", e.Type)
	}
	assert.NotContains(t, result.Stats, "actions")
}

func TestTraceCommand_Text(t *testing.T) {
	db := journal(t)

	out, err := execute(t, NewTraceCommand(textOpts()), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "] setValue {")
	assert.Contains(t, out, "] createWire {")
	assert.Contains(t, out, "Stats:\n")
}

func TestTraceCommand_MissingDatabase(t *testing.T) {
	_, err := execute(t, NewTraceCommand(textOpts()), "--db", "testdata/missing.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
