package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_Directory(t *testing.T) {
	paths, err := Discover("testdata/scenarios")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "adder_sums.yaml"),
		filepath.Join("testdata", "scenarios", "inject_passthrough.yaml"),
		filepath.Join("testdata", "scenarios", "pair_trace.yaml"),
		filepath.Join("testdata", "scenarios", "stream_and_sets.yaml"),
	}, paths)
}

func TestDiscover_MixedAndDeduplicated(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"b.yml", "a.yaml", "notes.txt", filepath.Join("nested", "c.yaml")} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("name: x\n"), 0o644))
	}
	single := filepath.Join(dir, "a.yaml")

	paths, err := Discover(single, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		single,
		filepath.Join(dir, "b.yml"),
		filepath.Join(dir, "nested", "c.yaml"),
	}, paths)
}

func TestDiscover_Missing(t *testing.T) {
	_, err := Discover("testdata/nowhere")
	var notFound *ScenarioNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "testdata/nowhere", notFound.Path)
}
