package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CogniPilot/modelica-ir/internal/structure"
	"github.com/CogniPilot/modelica-ir/internal/testutil"
)

type analyzeResponse struct {
	Status  string        `json:"status"`
	Data    AnalyzeReport `json:"data"`
	Error   *CLIError     `json:"error"`
	TraceID string        `json:"trace_id"`
}

func decodeAnalyze(t *testing.T, stdout string) analyzeResponse {
	t.Helper()
	var resp analyzeResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	return resp
}

func TestAnalyze_TextWellPosed(t *testing.T) {
	stdout, _, err := execute(t, "analyze", "testdata/models/falling_body.yaml")
	require.NoError(t, err)

	assert.Equal(t, `✓ FallingBody is well-posed: 2 equation(s), 2 unknown(s), 2 block(s)
  1. continuous[1] -> der(h)
  2. continuous[2] -> der(v)
`, stdout)
}

func TestAnalyze_TextAlgebraicLoop(t *testing.T) {
	stdout, _, err := execute(t, "analyze", "testdata/models/loop_chain.yaml")
	require.NoError(t, err, "algebraic loops are warnings")

	assert.Contains(t, stdout, "✓ LoopChain is well-posed: 4 equation(s), 4 unknown(s), 3 block(s), 1 algebraic loop(s)")
	assert.Contains(t, stdout, "  1. head -> a\n")
	assert.Contains(t, stdout, "  2. loop {sum, ratio} -> {b, c}\n")
	assert.Contains(t, stdout, "  3. tail -> d\n")
	assert.Contains(t, stdout, "Diagnostics:\n  [W310] warning: algebraic loop of 2 equation(s) [sum, ratio] in unknown(s) [b, c]")
}

func TestAnalyze_JSON(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "analyze", "testdata/models/falling_body.yaml")
	require.NoError(t, err)

	resp := decodeAnalyze(t, stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "trace-0001", resp.TraceID)
	assert.Nil(t, resp.Error)
	require.NotNil(t, resp.Data.Result)
	assert.True(t, resp.Data.Result.IsWellPosed)
	assert.Len(t, resp.Data.Result.Blocks, 2)

	want, err := structure.Analyze(testutil.FallingBody())
	require.NoError(t, err)
	fp, err := want.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp, resp.Data.Fingerprint)
}

func TestAnalyze_IllPosed(t *testing.T) {
	stdout, _, err := execute(t, "analyze", "testdata/models/over_determined.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, stdout, "✗ OverDetermined is not well-posed: 2 equation(s), 1 unknown(s), 1 block(s)")
	assert.Contains(t, stdout, "unmatched equations: continuous[2]")
	assert.Contains(t, stdout, "[E302] error: over-determined system: 2 equation(s) for 1 unknown(s)")
	assert.Contains(t, stdout, "[E302] error: surplus equation continuous[2]")
}

func TestAnalyze_IllPosedJSON(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "analyze", "testdata/models/over_determined.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeAnalyze(t, stdout)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeIllPosed, resp.Error.Code)
	require.NotNil(t, resp.Data.Result)
	assert.False(t, resp.Data.Result.IsWellPosed)
	assert.Equal(t, []string{"continuous[2]"}, resp.Data.Result.UnmatchedEquations)
}

func TestAnalyze_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing file", []string{"analyze", "testdata/models/absent.yaml"}, "E005"},
		{"syntax error", []string{"analyze", "testdata/models/bad_syntax.yaml"}, "E004"},
		{"undeclared reference", []string{"analyze", "testdata/models/undeclared.yaml"}, ErrCodeReference},
		{"search limit", []string{"analyze", "--max-steps", "1", "testdata/models/loop_chain.yaml"}, ErrCodeAnalysis},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, stdout, "Error ["+tt.code+"]")
		})
	}
}

func TestAnalyze_ReferenceErrorDetails(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "analyze", "testdata/models/undeclared.yaml")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeReference, resp.Error.Code)
	assert.Equal(t, map[string]any{"equation": "continuous[1]", "symbol": "y"}, resp.Error.Details)
}

func TestAnalyze_NegativeFlag(t *testing.T) {
	_, stderr, err := execute(t, "analyze", "--parallelism", "-1", "testdata/models/falling_body.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, "must be >= 0")
}

func TestAnalyze_OutputFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "plan.json")
	_, _, err := execute(t, "analyze", "-o", out, "testdata/models/falling_body.yaml")
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	want, err := os.ReadFile("testdata/scenarios/golden/falling_body.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestAnalyze_OutputFileWriteFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing-dir", "plan.json")
	stdout, _, err := execute(t, "analyze", "-o", out, "testdata/models/falling_body.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E007]")
}

func TestAnalyze_Deterministic(t *testing.T) {
	first, _, err := execute(t, "--format", "json", "analyze", "--parallelism", "1", "testdata/models/loop_chain.yaml")
	require.NoError(t, err)
	second, _, err := execute(t, "--format", "json", "analyze", "--parallelism", "4", "testdata/models/loop_chain.yaml")
	require.NoError(t, err)

	assert.Equal(t, decodeAnalyze(t, first).Data, decodeAnalyze(t, second).Data)
}
