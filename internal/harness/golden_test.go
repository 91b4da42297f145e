package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"falling_body", "algebraic_loop", "over_determined"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadScenario(t, name))
			require.NoError(t, err)
			require.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestAssertGolden_NoAnalysis(t *testing.T) {
	err := AssertGolden(t, "search_limit", NewResult())
	require.Error(t, err)
}
