package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFile_CallsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: A\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, 10*time.Millisecond, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
	}()

	// The watcher may not be registered yet when the first write lands.
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte("name: B\n"), 0o644); err != nil {
			return false
		}
		select {
		case <-changes:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watchFile did not return after cancel")
	}
}

func TestWatchFile_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: A\n"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	calls := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644)
	}()

	require.NoError(t, watchFile(ctx, path, 10*time.Millisecond, func() { calls++ }))
	assert.Zero(t, calls)
}

func TestWatchFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "model.yaml")
	err := watchFile(context.Background(), path, time.Millisecond, func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watching")
}
