package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/bassline/internal/ir"
)

// TraceSnapshot is the golden form of a run: the scenario name and every
// trace entry, serialized as canonical JSON.
func TraceSnapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.IRArray, len(result.Trace))
	for i, t := range result.Trace {
		trace[i] = t.ToIR()
	}
	return ir.MarshalCanonical(ir.IRObject{
		"scenario": ir.IRString(name),
		"trace":    trace,
	})
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := TraceSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
