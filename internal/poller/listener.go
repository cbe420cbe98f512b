package poller

import "context"

// Listener is any value implementing one or more of the capability interfaces
// below. Capabilities a listener does not implement are skipped.
//
// Returning context.Canceled, context.DeadlineExceeded or ErrCancelled aborts
// the current cycle. Any other error is logged and ignored.
type Listener any

// BeforeStartListener is notified once from Start, before the first cycle.
type BeforeStartListener interface {
	BeforeStart(ctx context.Context, e *BeforeStartEvent) error
}

// AfterStopListener is notified once after the poller has stopped.
type AfterStopListener interface {
	AfterStop(ctx context.Context, e *AfterStopEvent) error
}

// BeforeCycleListener is notified at the start of every poll cycle.
type BeforeCycleListener interface {
	BeforeCycle(ctx context.Context, e *BeforeCycleEvent) error
}

// AfterCycleListener is notified at the end of every poll cycle.
type AfterCycleListener interface {
	AfterCycle(ctx context.Context, e *AfterCycleEvent) error
}

// InitialContentListener receives the first listing of each directory.
type InitialContentListener interface {
	InitialContent(ctx context.Context, e *InitialContentEvent) error
}

// EntryAddedListener is notified for new entries.
type EntryAddedListener interface {
	EntryAdded(ctx context.Context, e *EntryAddedEvent) error
}

// EntryRemovedListener is notified for removed entries.
type EntryRemovedListener interface {
	EntryRemoved(ctx context.Context, e *EntryRemovedEvent) error
}

// EntryModifiedListener is notified for modified entries.
type EntryModifiedListener interface {
	EntryModified(ctx context.Context, e *EntryModifiedEvent) error
}

// IOErrorRaisedListener is notified when a directory becomes unreadable.
type IOErrorRaisedListener interface {
	IOErrorRaised(ctx context.Context, e *IOErrorRaisedEvent) error
}

// IOErrorCeasedListener is notified when a directory is readable again.
type IOErrorCeasedListener interface {
	IOErrorCeased(ctx context.Context, e *IOErrorCeasedEvent) error
}

// dispatch calls the capability of l matching ev. handled is false when l
// does not implement it.
func dispatch(ctx context.Context, l Listener, ev Event) (handled bool, err error) {
	switch e := ev.(type) {
	case *BeforeStartEvent:
		if x, ok := l.(BeforeStartListener); ok {
			return true, x.BeforeStart(ctx, e)
		}
	case *AfterStopEvent:
		if x, ok := l.(AfterStopListener); ok {
			return true, x.AfterStop(ctx, e)
		}
	case *BeforeCycleEvent:
		if x, ok := l.(BeforeCycleListener); ok {
			return true, x.BeforeCycle(ctx, e)
		}
	case *AfterCycleEvent:
		if x, ok := l.(AfterCycleListener); ok {
			return true, x.AfterCycle(ctx, e)
		}
	case *InitialContentEvent:
		if x, ok := l.(InitialContentListener); ok {
			return true, x.InitialContent(ctx, e)
		}
	case *EntryAddedEvent:
		if x, ok := l.(EntryAddedListener); ok {
			return true, x.EntryAdded(ctx, e)
		}
	case *EntryRemovedEvent:
		if x, ok := l.(EntryRemovedListener); ok {
			return true, x.EntryRemoved(ctx, e)
		}
	case *EntryModifiedEvent:
		if x, ok := l.(EntryModifiedListener); ok {
			return true, x.EntryModified(ctx, e)
		}
	case *IOErrorRaisedEvent:
		if x, ok := l.(IOErrorRaisedListener); ok {
			return true, x.IOErrorRaised(ctx, e)
		}
	case *IOErrorCeasedEvent:
		if x, ok := l.(IOErrorCeasedListener); ok {
			return true, x.IOErrorCeased(ctx, e)
		}
	}
	return false, nil
}
