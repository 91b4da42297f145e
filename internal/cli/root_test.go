package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CogniPilot/modelica-ir/internal/testutil"
)

// execute runs the root command with args and fixed trace IDs.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	color.NoColor = true

	opts := &RootOptions{TraceIDs: testutil.NewFixedTraceIDs("")}
	cmd := newRootCommand(opts)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "daeblt", cmd.Use)
	assert.Contains(t, cmd.Long, "Block-Lower-Triangular")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"analyze", "validate", "incidence", "spy", "watch", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "", formatFlag.DefValue, "empty format defers to the config")

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("no-color"))
}

func TestAnalysisFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"analyze", "incidence", "spy", "watch"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.NotNil(t, sub.Flags().Lookup("parallelism"))
			assert.NotNil(t, sub.Flags().Lookup("max-steps"))
		})
	}

	analyze, _, err := cmd.Find([]string{"analyze"})
	require.NoError(t, err)
	outputFlag := analyze.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, stderr, err := execute(t, "--format", "xml", "analyze", "testdata/models/falling_body.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, `invalid format "xml"`)
}

func TestConfigFileSetsFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daeblt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: json\n"), 0o644))

	stdout, _, err := execute(t, "--config", path, "analyze", "testdata/models/falling_body.yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"status": "ok"`)
	assert.Contains(t, stdout, `"trace_id": "trace-0001"`)
}

func TestFormatFlagOverridesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daeblt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: json\n"), 0o644))

	stdout, _, err := execute(t, "--config", path, "--format", "text", "analyze", "testdata/models/falling_body.yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ FallingBody is well-posed")
}

func TestMissingConfigFile(t *testing.T) {
	_, stderr, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "analyze", "testdata/models/falling_body.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, "loading config")
}

func TestConfigAnalysisSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daeblt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_augment_steps: 1\n"), 0o644))

	stdout, _, err := execute(t, "--config", path, "analyze", "testdata/models/loop_chain.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E013]")

	// the flag wins over the config
	_, _, err = execute(t, "--config", path, "analyze", "--max-steps", "0", "testdata/models/loop_chain.yaml")
	require.NoError(t, err)
}

func TestVerboseLogsToStderr(t *testing.T) {
	stdout, stderr, err := execute(t, "-v", "analyze", "testdata/models/falling_body.yaml")
	require.NoError(t, err)
	assert.Contains(t, stderr, "analysis complete")
	assert.Contains(t, stderr, "Loaded FallingBody")
	assert.NotContains(t, stdout, "analysis complete")
}
