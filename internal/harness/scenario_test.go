package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ResolvesNetworkPath(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/adder_sums.yaml")
	require.NoError(t, err)

	assert.Equal(t, "adder_sums", s.Name)
	assert.Equal(t, filepath.Join("testdata", "networks", "adder.cue"), s.Network)
	require.Len(t, s.Steps, 4)
	assert.Equal(t, "set", s.Steps[0].Kind())
	assert.Equal(t, "UNKNOWN_CONTACT", s.Steps[2].ExpectError)
	assert.Equal(t, "actions", s.Steps[3].Kind())
	assert.True(t, s.Replay)
	assert.False(t, s.Golden)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	root, err := filepath.Abs("testdata")
	require.NoError(t, err)
	dir := t.TempDir()
	path := writeScenario(t, dir, "s.yaml", `
name: based
network: networks/adder.cue
steps:
  - set: { contact: x, value: 1 }
`)

	s, err := LoadScenarioWithBasePath(path, root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "networks", "adder.cue"), s.Network)
}

func TestLoadScenario_InlineNetwork(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/pair_trace.yaml")
	require.NoError(t, err)

	b, err := s.LoadNetwork()
	require.NoError(t, err)
	assert.Len(t, b.Contacts, 2)
	assert.False(t, b.Wires["w"].Bidirectional)
}

func TestLoadScenario_MissingNetworkFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "s.yaml", `
name: lost
network: nowhere.cue
steps:
  - set: { contact: x, value: 1 }
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network not found")
}

func TestLoadScenario_FileErrors(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown field",
			src:  "name: a\nnetwork: n.cue\nsteps: [{set: {contact: x, value: 1}}]\nassertions: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			src:  "network: n.cue\nsteps: [{set: {contact: x, value: 1}}]\n",
			want: "name is required",
		},
		{
			name: "missing network",
			src:  "name: a\nsteps: [{set: {contact: x, value: 1}}]\n",
			want: "network is required",
		},
		{
			name: "network of wrong shape",
			src:  "name: a\nnetwork: [1, 2]\nsteps: [{set: {contact: x, value: 1}}]\n",
			want: "network must be a path or a mapping",
		},
		{
			name: "no steps",
			src:  "name: a\nnetwork: n.cue\n",
			want: "steps list is required",
		},
		{
			name: "two kinds in one step",
			src:  "name: a\nnetwork: n.cue\nsteps: [{set: {contact: x, value: 1}, stream: {contact: y, value: 2}}]\n",
			want: "exactly one of set, stream or actions",
		},
		{
			name: "empty step",
			src:  "name: a\nnetwork: n.cue\nsteps: [{expect_error: UNKNOWN_CONTACT}]\n",
			want: "exactly one of set, stream or actions",
		},
		{
			name: "set without contact",
			src:  "name: a\nnetwork: n.cue\nsteps: [{set: {value: 1}}]\n",
			want: "steps[0].set: contact is required",
		},
		{
			name: "unknown event type",
			src:  "name: a\nnetwork: n.cue\nsteps: [{set: {contact: x, value: 1}}]\nexpect: {event_counts: {exploded: 1}}\n",
			want: `unknown event type "exploded"`,
		},
		{
			name: "negative count",
			src:  "name: a\nnetwork: n.cue\nsteps: [{set: {contact: x, value: 1}}]\nexpect: {event_counts: {converged: -1}}\n",
			want: "count must be non-negative",
		},
		{
			name: "unknown ordered event",
			src:  "name: a\nnetwork: n.cue\nsteps: [{set: {contact: x, value: 1}}]\nexpect: {event_order: [converged, nope]}\n",
			want: "expect.event_order[1]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
