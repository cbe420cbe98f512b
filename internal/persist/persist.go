// Package persist stores poller baselines between runs.
//
// Three backends implement poller.Persister:
//   - sqlite: a single-file SQLite database (modernc.org/sqlite, no CGO)
//   - bolt: a bbolt key/value file with one JSON value per directory
//   - file: a human-readable YAML file guarded by a cross-process lock
//
// Every backend replaces the whole state on Write. The poller writes the
// watched directories plus restored baselines it did not claim, so a store
// shared by runs watching different directories keeps all of them.
package persist

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/poller"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendNone   Backend = "none"
	BackendSQLite Backend = "sqlite"
	BackendBolt   Backend = "bolt"
	BackendFile   Backend = "file"
)

// Store is a closable poller.Persister.
type Store interface {
	poller.Persister
	io.Closer
}

// ParseBackend validates a backend name. The empty string means none.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "", BackendNone:
		return BackendNone, nil
	case BackendSQLite, BackendBolt, BackendFile:
		return b, nil
	default:
		return "", apperrors.New(apperrors.ErrCodeConfigBackend,
			fmt.Sprintf("unknown state backend %q", s), nil).
			WithSuggestion("use one of: none, sqlite, bolt, file")
	}
}

// DefaultFileName returns the state file name used when no path is given.
func (b Backend) DefaultFileName() string {
	switch b {
	case BackendSQLite:
		return "state.db"
	case BackendBolt:
		return "state.bolt"
	case BackendFile:
		return "state.yaml"
	default:
		return ""
	}
}

// Open opens the store for backend at path, creating parent directories.
// BackendNone returns a nil Store and no error.
func Open(backend Backend, path string) (Store, error) {
	if backend == BackendNone || backend == "" {
		return nil, nil
	}
	if path == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigBackend, "state path must not be empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStateWrite,
			fmt.Sprintf("cannot create state directory for %s", path), err)
	}

	switch backend {
	case BackendSQLite:
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendBolt:
		s, err := OpenBolt(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendFile:
		return NewFileStore(path), nil
	default:
		_, err := ParseBackend(string(backend))
		return nil, err
	}
}
