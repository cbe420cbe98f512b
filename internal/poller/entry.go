package poller

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
)

// Entry is one item returned by a directory listing.
type Entry interface {
	// Name must be unique within one listing.
	Name() string

	// ModTime returns the last modification time. A zero value is treated
	// the same as an I/O error.
	ModTime() (int64, error)

	IsDir() bool
}

// Directory is a listable container of entries.
//
// List errors are classified as follows:
//   - ErrRetryLater in the chain: the cycle is skipped silently for this directory.
//   - an I/O error (see IsIOError): reported through IOErrorRaisedEvent.
//   - anything else, including panics: the poller stops.
type Directory interface {
	// Key identifies the directory. Directories with equal keys are the same
	// directory; keys are also used by persisters.
	Key() string

	List(ctx context.Context) ([]Entry, error)
}

// Filter decides whether an entry takes part in change detection.
type Filter interface {
	Accept(e Entry) bool
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(e Entry) bool

// Accept implements Filter.
func (f FilterFunc) Accept(e Entry) bool { return f(e) }

// AcceptAll is the default filter.
var AcceptAll Filter = FilterFunc(func(Entry) bool { return true })

// Persister stores per-directory baselines between runs.
// Read is called once during Start, Write once during termination.
type Persister interface {
	HasData(ctx context.Context) (bool, error)
	Read(ctx context.Context) (map[string][]CachedEntry, error)
	Write(ctx context.Context, state map[string][]CachedEntry) error
}

// Resolver turns a persisted directory key back into a Directory.
type Resolver func(key string) (Directory, error)

// CachedEntry is the observed state of an entry at listing time.
type CachedEntry struct {
	Name         string `json:"name" yaml:"name"`
	LastModified int64  `json:"last_modified" yaml:"last_modified"`
	IsDir        bool   `json:"is_dir" yaml:"is_dir"`
}

// AsEntry returns an Entry view of c, used where no live entry exists
// (for example entries restored from a persister).
func (c CachedEntry) AsEntry() Entry {
	return cachedEntry{c}
}

type cachedEntry struct {
	c CachedEntry
}

func (e cachedEntry) Name() string            { return e.c.Name }
func (e cachedEntry) ModTime() (int64, error) { return e.c.LastModified, nil }
func (e cachedEntry) IsDir() bool             { return e.c.IsDir }

var (
	// ErrRetryLater tells the poller to skip the directory this cycle without
	// raising an I/O error. It is shared and must not be modified; use
	// RetryLater for an error carrying details. Match is by error code.
	ErrRetryLater = apperrors.New(apperrors.ErrCodeRetryLater, "directory not ready, retrying next cycle", nil)

	// ErrCancelled may be returned by listeners to abort the current cycle.
	ErrCancelled = errors.New("poll cycle cancelled")
)

// RetryLater returns a new error matching ErrRetryLater for the directory
// with the given key.
func RetryLater(key, message string, cause error) *apperrors.DirpollError {
	return apperrors.New(apperrors.ErrCodeRetryLater, message, cause).
		WithDetail("directory", key)
}

// IsIOError reports whether err is a recoverable I/O failure.
func IsIOError(err error) bool {
	if err == nil {
		return false
	}
	if apperrors.GetCategory(err) == apperrors.CategoryIO {
		return true
	}
	var pathErr *fs.PathError
	var sysErr *os.SyscallError
	var linkErr *os.LinkError
	switch {
	case errors.As(err, &pathErr), errors.As(err, &sysErr), errors.As(err, &linkErr):
		return true
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return false
}

// IsCancellation reports whether err signals cancellation rather than failure.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrCancelled)
}

// listOutcome classifies a failed listing.
type listOutcome int

const (
	outcomeIOError listOutcome = iota
	outcomeRetryLater
	outcomeCancelled
	outcomeFatal
)

func classify(err error) listOutcome {
	switch {
	case IsCancellation(err):
		return outcomeCancelled
	case errors.Is(err, ErrRetryLater):
		return outcomeRetryLater
	case IsIOError(err):
		return outcomeIOError
	default:
		return outcomeFatal
	}
}
