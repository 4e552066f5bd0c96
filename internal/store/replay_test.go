package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bassline/internal/engine"
	"github.com/roach88/bassline/internal/ir"
)

// recordSession runs a few actions against a recorded engine and returns
// its final values.
func recordSession(t *testing.T, s *Store) map[string]ir.IRValue {
	t.Helper()
	ctx := context.Background()
	net := pairNetwork()
	e := newTestEngine(t, net)
	_, err := Attach(ctx, s, e, net, WithRecorderLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, e.SetValue("x", ir.IRInt(10)))
	require.NoError(t, e.ApplyActions(ir.ActionSet{
		ir.CreateContact{Contact: ir.Contact{ID: "q", BlendMode: ir.BlendMerge}},
		ir.CreateWire{Wire: ir.Wire{ID: "yq", FromID: "y", ToID: "q", Bidirectional: true}},
	}))
	require.NoError(t, e.ApplyAction(ir.DeleteContact{ContactID: "z"}))
	return e.Values()
}

func TestRestoreReproducesValues(t *testing.T) {
	s := createTestStore(t)
	want := recordSession(t, s)

	e, res, err := Restore(context.Background(), s,
		engine.WithLogger(quietLogger()),
		engine.WithIDGenerator(engine.NewSequenceGenerator("gen")),
	)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Applied)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, int64(4), res.LastSeq)
	assert.Equal(t, want, e.Values())
	assert.Equal(t, ir.IRInt(10), want["q"])
	_, ok := e.Contact("z")
	assert.False(t, ok)
}

func TestReplayFromSeq(t *testing.T) {
	s := createTestStore(t)
	recordSession(t, s)

	e := newTestEngine(t, pairNetwork())
	require.NoError(t, e.SetValue("x", ir.IRInt(10)))

	res, err := Replay(context.Background(), s, e, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.Equal(t, ir.IRInt(10), mustGet(t, e, "q"))
}

func TestReplayOverDifferentNetwork(t *testing.T) {
	s := createTestStore(t)
	recordSession(t, s)

	e := newTestEngine(t, ir.NewBassline())
	res, err := Replay(context.Background(), s, e, 0)

	require.Error(t, err)
	assert.True(t, engine.IsCode(err, engine.ErrCodeUnknownContact))
	assert.Equal(t, 3, res.Failed, "setValue x, createWire yq and deleteContact z fail")
	assert.Equal(t, 1, res.Applied)
}

func TestReplayCancelled(t *testing.T) {
	s := createTestStore(t)
	recordSession(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Replay(ctx, s, newTestEngine(t, pairNetwork()), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRestoreWithoutInitialSnapshot(t *testing.T) {
	s := createTestStore(t)
	_, _, err := Restore(context.Background(), s)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func mustGet(t *testing.T, e *engine.Engine, id string) ir.IRValue {
	t.Helper()
	v, ok := e.GetValue(id)
	require.True(t, ok, "no value for %s", id)
	return v
}
