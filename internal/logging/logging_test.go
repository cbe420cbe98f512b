package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()

	assert.Equal(t, "dirpoll.log", filepath.Base(path))
	assert.Equal(t, DefaultLogDir(), filepath.Dir(path))
	assert.Contains(t, path, ".dirpoll")
}

func TestConfigs(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, "info", def.Level)
	assert.Empty(t, def.FilePath)
	assert.Equal(t, os.Stderr, def.Console)

	dbg := DebugConfig()
	assert.Equal(t, "debug", dbg.Level)
	assert.Equal(t, DefaultLogPath(), dbg.FilePath)
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in       string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"loud", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, LevelFromString(tt.in))
		})
	}
}

func TestSetup_ConsoleOnly(t *testing.T) {
	// Given: a non-terminal console
	var buf bytes.Buffer

	// When: logging below and at the configured level
	logger, cleanup, err := Setup(Config{Level: "warn", Console: &buf})
	require.NoError(t, err)
	defer cleanup()
	logger.Info("hidden")
	logger.Warn("shown", "dir", "/data")

	// Then: only the warning is written, as JSON
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "/data", rec["dir"])
}

func TestSetup_FileAndConsole(t *testing.T) {
	// Given: both a console and a log file
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "dirpoll.log")

	logger, cleanup, err := Setup(Config{Level: "debug", Console: &buf, FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	require.NoError(t, err)

	// When: logging through a derived logger
	logger.With("poller", "p").Debug("cycle", "n", 3)
	cleanup()

	// Then: both outputs carry the record and its attributes
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, out := range []string{buf.String(), string(data)} {
		assert.Contains(t, out, `"msg":"cycle"`)
		assert.Contains(t, out, `"poller":"p"`)
		assert.Contains(t, out, `"n":3`)
	}
}

func TestSetup_NothingConfigured(t *testing.T) {
	logger, cleanup, err := Setup(Config{})

	require.NoError(t, err)
	require.NotNil(t, logger)
	cleanup()
	logger.Error("discarded")
}

func TestIsTerminal_NonFile(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestRotatingWriter_Rotation(t *testing.T) {
	// Given: a 1 MB writer keeping two rotated files
	path := filepath.Join(t.TempDir(), "dirpoll.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	w.SetSync(false)

	chunk := bytes.Repeat([]byte("x"), 600*1024)

	// When: writing four chunks, each pair overflowing the limit
	for i := 0; i < 4; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	// Then: the current file holds the last chunk and only two backups exist
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chunk)), info.Size())
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
}

func TestRotatingWriter_NoBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirpoll.log")
	w, err := NewRotatingWriter(path, 1, 0)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	chunk := bytes.Repeat([]byte("y"), 700*1024)
	for i := 0; i < 2; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chunk)), info.Size())
	assert.NoFileExists(t, path+".1")
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirpoll.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "dirpoll.log"), 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))

	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, w.Sync())
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirpoll.log")
	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)
	w.SetSync(false)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = fmt.Fprintf(w, "g%d-%d\n", g, i)
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 400)
}
