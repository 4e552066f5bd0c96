package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bassline/internal/ir"
	"github.com/roach88/bassline/internal/store"
)

func TestReplayCommand_MatchesFinal(t *testing.T) {
	db := journal(t)

	out, err := execute(t, NewReplayCommand(textOpts()), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Journal: 4 actions")
	assert.Contains(t, out, "Replayed: 4 applied, 0 failed")
	assert.Contains(t, out, "✓ deterministic")
	assert.Contains(t, out, "✓ matches final snapshot")
}

func TestReplayCommand_JSON(t *testing.T) {
	db := journal(t)

	out, err := execute(t, NewReplayCommand(jsonOpts()), "--db", db)
	require.NoError(t, err)

	var report ReplayReport
	decodeEnvelope(t, out, &report)
	assert.True(t, report.Deterministic)
	require.NotNil(t, report.MatchesFinal)
	assert.True(t, *report.MatchesFinal)
	assert.Equal(t, int64(4), report.LastSeq)
	assert.NotEmpty(t, report.Hash)
}

func TestReplayCommand_Mismatch(t *testing.T) {
	db := journal(t)

	ctx := context.Background()
	s, err := store.Open(db)
	require.NoError(t, err)
	final, err := s.LatestSnapshot(ctx, FinalLabel)
	require.NoError(t, err)
	b := final.Bassline.Clone()
	x := b.Contacts["x"]
	x.Content = ir.IRInt(99)
	b.Contacts["x"] = x
	_, err = s.SaveSnapshot(ctx, FinalLabel, final.Seq, b)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	out, err := execute(t, NewReplayCommand(textOpts()), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ differs from final snapshot")
	assert.Contains(t, out, "x: got 2, want 99")
}

func TestReplayCommand_Errors(t *testing.T) {
	_, err := execute(t, NewReplayCommand(textOpts()), "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")

	_, err = execute(t, NewReplayCommand(textOpts()))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompareFinal(t *testing.T) {
	final := ir.NewBassline()
	final.Contacts["a"] = ir.Contact{ID: "a", Content: ir.IRInt(1)}
	final.Contacts["b"] = ir.Contact{ID: "b", Content: ir.IRInt(2)}
	final.Contacts["c"] = ir.Contact{ID: "c"}
	final.Contacts["d"] = ir.Contact{ID: "d"}

	got := compareFinal(final, map[string]ir.IRValue{
		"a": ir.IRInt(1),
		"c": ir.IRString("x"),
	})
	assert.Equal(t, []string{`b: missing, want 2`, `c: unexpected value "x"`}, got)
}
