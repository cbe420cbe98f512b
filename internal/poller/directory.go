package poller

import (
	"context"
	"fmt"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
)

// directoryPoller holds the state of one watched directory between cycles.
// Only the goroutine polling the directory in the active cycle touches it.
type directoryPoller struct {
	dir      Directory
	previous *Snapshot

	firstCycle bool
	accessible bool
	seeded     bool
}

func newDirectoryPoller(dir Directory, baseline []CachedEntry) *directoryPoller {
	d := &directoryPoller{
		dir:        dir,
		previous:   emptySnapshot,
		firstCycle: true,
		accessible: true,
	}
	if len(baseline) > 0 {
		d.previous = SnapshotFromCached(baseline)
		d.seeded = true
	}
	return d
}

// pollEnv is what a directory poll needs from its scheduler.
type pollEnv struct {
	poller             *Poller
	notifier           *Notifier
	filter             Filter
	initialContentAdds bool
}

// poll runs one cycle for the directory. It returns a cancellation error, a
// fatal error, or nil; I/O and retry-later failures are absorbed here.
func (d *directoryPoller) poll(ctx context.Context, env pollEnv) error {
	current, err := d.list(ctx, env.filter)
	if err != nil {
		switch classify(err) {
		case outcomeCancelled:
			return err
		case outcomeRetryLater:
			return nil
		case outcomeIOError:
			if !d.accessible {
				return nil
			}
			d.accessible = false
			return env.notifier.Notify(ctx, &IOErrorRaisedEvent{Poller: env.poller, Directory: d.dir, Err: err})
		default:
			if apperrors.GetCode(err) == apperrors.ErrCodeAdapterCrash {
				return err
			}
			return apperrors.New(apperrors.ErrCodeAdapterCrash,
				fmt.Sprintf("listing %s failed", d.dir.Key()), err).
				WithDetail("directory", d.dir.Key())
		}
	}

	if !d.accessible {
		d.accessible = true
		if err := env.notifier.Notify(ctx, &IOErrorCeasedEvent{Poller: env.poller, Directory: d.dir}); err != nil {
			return err
		}
	}

	delta := Diff(d.previous, current)
	modified := Modified(d.previous, current)
	emit := delta.HasDiff && (!d.firstCycle || env.initialContentAdds || d.seeded)
	first := d.firstCycle

	// The listing is committed before dispatch so a cancelled cycle does not
	// report the same changes or initial content again.
	d.firstCycle = false
	if delta.HasDiff {
		d.previous = current
	}

	if emit {
		if err := d.emitDelta(ctx, env, delta, modified); err != nil {
			return err
		}
	}
	if first {
		return env.notifier.Notify(ctx, &InitialContentEvent{Poller: env.poller, Directory: d.dir, Snapshot: current})
	}
	return nil
}

func (d *directoryPoller) emitDelta(ctx context.Context, env pollEnv, delta Delta, modified []Item) error {
	for _, it := range delta.Removed.Items() {
		ev := &EntryRemovedEvent{Poller: env.poller, Directory: d.dir, Entry: it.Entry, Cached: it.Cached}
		if err := env.notifier.Notify(ctx, ev); err != nil {
			return err
		}
	}
	for _, it := range delta.Added.Items() {
		ev := &EntryAddedEvent{Poller: env.poller, Directory: d.dir, Entry: it.Entry, Cached: it.Cached}
		if err := env.notifier.Notify(ctx, ev); err != nil {
			return err
		}
	}
	for _, it := range modified {
		ev := &EntryModifiedEvent{Poller: env.poller, Directory: d.dir, Entry: it.Entry, Cached: it.Cached}
		if err := env.notifier.Notify(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// list reads the directory and builds the filtered snapshot. Adapter panics
// are converted into ErrCodeAdapterCrash errors.
func (d *directoryPoller) list(ctx context.Context, filter Filter) (snap *Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap = nil
			err = apperrors.New(apperrors.ErrCodeAdapterCrash,
				fmt.Sprintf("directory adapter panicked: %v", r), nil).
				WithDetail("directory", d.dir.Key())
		}
	}()

	entries, err := d.dir.List(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			return nil, apperrors.IOError("listing returned a nil entry", nil).
				WithDetail("directory", d.dir.Key())
		}
		if !filter.Accept(e) {
			continue
		}
		mtime, err := e.ModTime()
		if err != nil {
			return nil, err
		}
		if mtime == 0 {
			return nil, apperrors.New(apperrors.ErrCodeModTimeUnknown,
				fmt.Sprintf("modification time of %s is unknown", e.Name()), nil).
				WithDetail("directory", d.dir.Key())
		}
		items = append(items, Item{
			Entry:  e,
			Cached: CachedEntry{Name: e.Name(), LastModified: mtime, IsDir: e.IsDir()},
		})
	}
	return newSnapshot(items), nil
}
