package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWatcher_ReportsWritesToWatchedFileOnly(t *testing.T) {
	// Given: a watched config file next to an unrelated file
	dir := t.TempDir()
	cfg := filepath.Join(dir, "dirpoll.yaml")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(cfg, []byte("interval: 1s\n"), 0o644))

	w, err := NewFileWatcher(30*time.Millisecond, cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// When: both files are written
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(cfg, []byte("interval: 2s\n"), 0o644))

	// Then: only the config file is reported
	select {
	case batch := <-w.Events():
		require.NotEmpty(t, batch)
		for _, e := range batch {
			assert.Equal(t, cfg, e.Path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for config change")
	}
}

func TestFileWatcher_RenameOverFile(t *testing.T) {
	// Given: a watched file
	dir := t.TempDir()
	cfg := filepath.Join(dir, "dirpoll.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("a"), 0o644))

	w, err := NewFileWatcher(30*time.Millisecond, cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// When: an editor saves by renaming a temp file over it
	tmp := filepath.Join(dir, ".dirpoll.yaml.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("b"), 0o644))
	require.NoError(t, os.Rename(tmp, cfg))

	// Then: the change is seen
	select {
	case batch := <-w.Events():
		require.Len(t, batch, 1)
		assert.Equal(t, cfg, batch[0].Path)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for config change")
	}
}

func TestFileWatcher_RunStopsWithContext(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "dirpoll.yaml")
	w, err := NewFileWatcher(10*time.Millisecond, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.NoError(t, w.Close())
}

func TestNewFileWatcher_Errors(t *testing.T) {
	_, err := NewFileWatcher(time.Millisecond)
	assert.Error(t, err)

	_, err = NewFileWatcher(time.Millisecond, filepath.Join(t.TempDir(), "missing", "dirpoll.yaml"))
	assert.Error(t, err)
}
