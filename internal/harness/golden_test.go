package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bassline/internal/ir"
)

func TestRunWithGolden_PairTrace(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/pair_trace.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestTraceSnapshot_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/adder_sums.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := TraceSnapshot(s.Name, first)
	require.NoError(t, err)
	b, err := TraceSnapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	g := goldie.New(t, goldie.WithFixtureDir(t.TempDir()), goldie.WithNameSuffix(".golden"))
	require.NoError(t, g.Update(t, s.Name, a))
	g.Assert(t, s.Name, b)
}

func TestTraceSnapshot_Shape(t *testing.T) {
	result := NewResult()
	result.Trace = append(result.Trace, TraceEvent{Step: 2, Event: ir.Converged{Steps: 3}})

	data, err := TraceSnapshot("tiny", result)
	require.NoError(t, err)
	assert.Equal(t, `{"scenario":"tiny","trace":[{"event":{"steps":3,"type":"converged"},"step":2}]}`, string(data))
}
