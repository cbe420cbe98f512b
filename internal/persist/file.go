package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/poller"
)

const fileStateVersion = 1

// fileState is the on-disk YAML document.
type fileState struct {
	Version     int                             `yaml:"version"`
	Directories map[string][]poller.CachedEntry `yaml:"directories"`
}

// FileStore keeps baselines in a YAML file. Access is serialized across
// processes by an advisory lock on <path>.lock; a busy lock is retried with
// backoff before giving up with ERR_204_STATE_LOCKED.
type FileStore struct {
	path  string
	lock  *flock.Flock
	retry apperrors.RetryConfig
}

// NewFileStore returns a store for path. Nothing is created until Write.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:  path,
		lock:  flock.New(path + ".lock"),
		retry: apperrors.DefaultRetryConfig(),
	}
}

// Path returns the state file path.
func (s *FileStore) Path() string { return s.path }

// HasData reports whether the state file exists and lists any directory.
func (s *FileStore) HasData(ctx context.Context) (bool, error) {
	state, err := s.Read(ctx)
	if err != nil {
		return false, err
	}
	return len(state) > 0, nil
}

// Read loads the state file. A missing file is an empty state.
func (s *FileStore) Read(ctx context.Context) (map[string][]poller.CachedEntry, error) {
	var state map[string][]poller.CachedEntry
	err := s.withLock(ctx, s.lock.TryRLock, func() error {
		data, err := os.ReadFile(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return apperrors.New(apperrors.ErrCodeStateCorrupt, "failed to read state file", err).
				WithDetail("path", s.path)
		}

		var doc fileState
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return apperrors.New(apperrors.ErrCodeStateCorrupt, "failed to parse state file", err).
				WithDetail("path", s.path).
				WithSuggestion("delete the state file to start without a baseline")
		}
		if doc.Version > fileStateVersion {
			return apperrors.New(apperrors.ErrCodeStateCorrupt,
				fmt.Sprintf("state file version %d is newer than supported version %d", doc.Version, fileStateVersion), nil).
				WithDetail("path", s.path)
		}
		state = doc.Directories
		return nil
	})
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = map[string][]poller.CachedEntry{}
	}
	for k, v := range state {
		if v == nil {
			state[k] = []poller.CachedEntry{}
		}
	}
	return state, nil
}

// Write replaces the state file atomically.
func (s *FileStore) Write(ctx context.Context, state map[string][]poller.CachedEntry) error {
	return s.withLock(ctx, s.lock.TryLock, func() error {
		data, err := yaml.Marshal(fileState{Version: fileStateVersion, Directories: state})
		if err != nil {
			return apperrors.New(apperrors.ErrCodeStateWrite, "failed to encode state", err)
		}

		tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp*")
		if err != nil {
			return apperrors.New(apperrors.ErrCodeStateWrite, "failed to create temp file", err).
				WithDetail("path", s.path)
		}
		defer func() { _ = os.Remove(tmp.Name()) }()

		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			return apperrors.New(apperrors.ErrCodeStateWrite, "failed to write state file", err)
		}
		if err := tmp.Close(); err != nil {
			return apperrors.New(apperrors.ErrCodeStateWrite, "failed to write state file", err)
		}
		if err := os.Rename(tmp.Name(), s.path); err != nil {
			return apperrors.New(apperrors.ErrCodeStateWrite, "failed to replace state file", err).
				WithDetail("path", s.path)
		}
		return nil
	})
}

// Close implements io.Closer. The lock is only held during Read and Write.
func (s *FileStore) Close() error {
	return nil
}

// withLock acquires the lock with try, retrying while another process holds
// it, and runs fn while holding it.
func (s *FileStore) withLock(ctx context.Context, try func() (bool, error), fn func() error) error {
	err := apperrors.Retry(ctx, s.retry, func() error {
		acquired, err := try()
		if err != nil {
			return apperrors.New(apperrors.ErrCodeStateWrite, "failed to acquire state lock", err).
				WithDetail("lock", s.lock.Path())
		}
		if !acquired {
			return apperrors.New(apperrors.ErrCodeStateLocked, "state file is locked by another process", nil).
				WithDetail("lock", s.lock.Path())
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}
