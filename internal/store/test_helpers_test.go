package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/bassline/internal/engine"
	"github.com/roach88/bassline/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pairNetwork is x -> y (one-way) plus an unconnected z.
func pairNetwork() ir.Bassline {
	b := ir.NewBassline()
	for _, id := range []string{"x", "y", "z"} {
		b.Contacts[id] = ir.Contact{ID: id, BlendMode: ir.BlendMerge}
	}
	b.Wires["w"] = ir.Wire{ID: "w", FromID: "x", ToID: "y"}
	return b
}

func newTestEngine(t *testing.T, b ir.Bassline) *engine.Engine {
	t.Helper()
	e, err := engine.New(b,
		engine.WithLogger(quietLogger()),
		engine.WithIDGenerator(engine.NewSequenceGenerator("gen")),
	)
	require.NoError(t, err)
	return e
}
