package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daeblt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, 0, cfg.Parallelism)
	assert.Equal(t, 0, cfg.MaxAugmentSteps)
	assert.True(t, cfg.Color)
	assert.Equal(t, 12.0, cfg.Spy.Width)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "format: json\nparallelism: 2\nspy:\n  width: 20\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, 2, cfg.Parallelism)
	assert.Equal(t, 20.0, cfg.Spy.Width)
	assert.Equal(t, 12.0, cfg.Spy.Height, "unset nested key keeps its default")
}

func TestLoad_ProjectFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte("max_augment_steps: 500\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MaxAugmentSteps)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "max_augment_steps: 10\n")
	t.Setenv("DAEBLT_MAX_AUGMENT_STEPS", "99")
	t.Setenv("DAEBLT_SPY__HEIGHT", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.MaxAugmentSteps)
	assert.Equal(t, 5.0, cfg.Spy.Height)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"format", "format: xml\n", "format"},
		{"parallelism", "parallelism: -1\n", "parallelism"},
		{"steps", "max_augment_steps: -5\n", "max_augment_steps"},
		{"spy", "spy:\n  width: 0\n", "spy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "max_augment_steps", envKey("DAEBLT_MAX_AUGMENT_STEPS"))
	assert.Equal(t, "spy.width", envKey("DAEBLT_SPY__WIDTH"))
}
