package poller

import (
	"log/slog"
	"strconv"
	"time"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
)

// DefaultName is used when Options.Name is empty and no Factory is involved.
const DefaultName = "DirectoryPoller"

// Options configures a Poller.
type Options struct {
	// Interval is the time between the start of two cycles.
	// Default: 1s. Negative values are rejected.
	Interval time.Duration

	// Parallel polls directories concurrently within a cycle. Listeners must
	// then be safe for concurrent use.
	Parallel bool

	// MaxWorkers bounds concurrent directory polls in parallel mode.
	// 0 means one worker per directory.
	MaxWorkers int

	// InitialContentAdds emits an added event for every entry found in the
	// first cycle, before the initial content event.
	InitialContentAdds bool

	// Filter selects the entries that take part in change detection.
	// Default: AcceptAll.
	Filter Filter

	// Name identifies the poller in logs. Default: DefaultName.
	Name string

	// Directories to watch from the first cycle on. At least one is required.
	Directories []Directory

	// Listeners registered before Start.
	Listeners []Listener

	// Persister restores baselines on Start and stores them on termination.
	// Optional.
	Persister Persister

	// Resolver turns persisted keys that are not in Directories into watched
	// directories on Start. Without it such keys are ignored.
	Resolver Resolver

	// Logger receives poller diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the default poller options.
func DefaultOptions() Options {
	return Options{
		Interval: time.Second,
		Filter:   AcceptAll,
		Name:     DefaultName,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.Interval == 0 {
		o.Interval = defaults.Interval
	}
	if o.Filter == nil {
		o.Filter = defaults.Filter
	}
	if o.Name == "" {
		o.Name = defaults.Name
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Validate validates the options and returns an error if invalid.
func (o Options) Validate() error {
	if len(o.Directories) == 0 {
		return apperrors.New(apperrors.ErrCodeNoDirectories, "at least one directory is required", nil).
			WithSuggestion("pass a directory to watch")
	}
	for i, d := range o.Directories {
		if d == nil {
			return apperrors.ValidationError("directory must not be nil", nil).
				WithDetail("index", strconv.Itoa(i))
		}
	}
	if o.Interval < 0 {
		return apperrors.New(apperrors.ErrCodeInvalidInterval, "interval must not be negative", nil).
			WithDetail("interval", o.Interval.String())
	}
	if o.MaxWorkers < 0 {
		return apperrors.ValidationError("max workers must not be negative", nil).
			WithDetail("max_workers", strconv.Itoa(o.MaxWorkers))
	}
	for _, l := range o.Listeners {
		if err := validateListener(l); err != nil {
			return err
		}
	}
	return nil
}
