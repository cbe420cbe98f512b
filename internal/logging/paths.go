package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.dirpoll/logs, or a temp directory fallback when
// the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".dirpoll", "logs")
	}
	return filepath.Join(home, ".dirpoll", "logs")
}

// DefaultLogPath returns the log file used by --debug.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "dirpoll.log")
}

// EnsureLogDir creates the parent directory of path.
func EnsureLogDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
