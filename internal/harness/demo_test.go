package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDemoScenarios runs every scenario under testdata/scenarios. They
// double as reference examples of the scenario format.
func TestDemoScenarios(t *testing.T) {
	paths, err := Discover("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err, "failed to load scenario from %s", path)

		t.Run(s.Name, func(t *testing.T) {
			assert.NotEmpty(t, s.Description, "scenario should have description")

			var result *Result
			if s.Golden {
				result, err = RunWithGolden(t, s)
			} else {
				result, err = Run(s)
			}
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed: %v", result.Errors)
		})
	}
}
