package poller

// EventKind identifies an event type.
type EventKind int

const (
	// KindBeforeStart is emitted once, synchronously, from Start.
	KindBeforeStart EventKind = iota
	// KindAfterStop is emitted once when the poller terminates.
	KindAfterStop
	// KindBeforeCycle opens every poll cycle.
	KindBeforeCycle
	// KindAfterCycle closes every poll cycle that was not cancelled.
	KindAfterCycle
	// KindInitialContent is emitted after a directory's first successful listing.
	KindInitialContent
	// KindEntryAdded reports a new entry.
	KindEntryAdded
	// KindEntryRemoved reports a vanished entry.
	KindEntryRemoved
	// KindEntryModified reports a changed modification time.
	KindEntryModified
	// KindIOErrorRaised reports that listing a directory started failing.
	KindIOErrorRaised
	// KindIOErrorCeased reports that listing a directory works again.
	KindIOErrorCeased
)

// String returns a human-readable representation of the kind.
func (k EventKind) String() string {
	switch k {
	case KindBeforeStart:
		return "BEFORE_START"
	case KindAfterStop:
		return "AFTER_STOP"
	case KindBeforeCycle:
		return "BEFORE_CYCLE"
	case KindAfterCycle:
		return "AFTER_CYCLE"
	case KindInitialContent:
		return "INITIAL_CONTENT"
	case KindEntryAdded:
		return "ADDED"
	case KindEntryRemoved:
		return "REMOVED"
	case KindEntryModified:
		return "MODIFIED"
	case KindIOErrorRaised:
		return "IO_ERROR_RAISED"
	case KindIOErrorCeased:
		return "IO_ERROR_CEASED"
	default:
		return "UNKNOWN"
	}
}

// Event is implemented by every event delivered to listeners.
type Event interface {
	Kind() EventKind
}

// BeforeStartEvent is delivered before the first cycle.
type BeforeStartEvent struct {
	Poller *Poller
}

// AddDirectory registers dir before the first cycle, optionally seeded with a
// baseline from a previous run.
func (e *BeforeStartEvent) AddDirectory(dir Directory, baseline ...CachedEntry) error {
	return e.Poller.addDirectory(dir, baseline)
}

// AfterStopEvent is delivered once after the last cycle has finished.
type AfterStopEvent struct {
	Poller *Poller
	// State holds the last known entries of every watched directory, by key.
	State map[string][]CachedEntry
}

// BeforeCycleEvent opens a poll cycle.
type BeforeCycleEvent struct {
	Poller *Poller
	Cycle  uint64
}

// AfterCycleEvent closes a poll cycle.
type AfterCycleEvent struct {
	Poller *Poller
	Cycle  uint64
}

// InitialContentEvent carries the first successful listing of a directory.
type InitialContentEvent struct {
	Poller    *Poller
	Directory Directory
	Snapshot  *Snapshot
}

// Entries returns the initial entries of the directory.
func (e *InitialContentEvent) Entries() []Entry {
	return e.Snapshot.Entries()
}

// EntryAddedEvent reports an entry that appeared.
type EntryAddedEvent struct {
	Poller    *Poller
	Directory Directory
	Entry     Entry
	Cached    CachedEntry
}

// EntryRemovedEvent reports an entry that disappeared.
type EntryRemovedEvent struct {
	Poller    *Poller
	Directory Directory
	Entry     Entry
	Cached    CachedEntry
}

// EntryModifiedEvent reports an entry whose modification time changed.
type EntryModifiedEvent struct {
	Poller    *Poller
	Directory Directory
	Entry     Entry
	Cached    CachedEntry
}

// IOErrorRaisedEvent reports the first failed listing after a successful one.
type IOErrorRaisedEvent struct {
	Poller    *Poller
	Directory Directory
	Err       error
}

// IOErrorCeasedEvent reports the first successful listing after a failure.
type IOErrorCeasedEvent struct {
	Poller    *Poller
	Directory Directory
}

func (*BeforeStartEvent) Kind() EventKind    { return KindBeforeStart }
func (*AfterStopEvent) Kind() EventKind      { return KindAfterStop }
func (*BeforeCycleEvent) Kind() EventKind    { return KindBeforeCycle }
func (*AfterCycleEvent) Kind() EventKind     { return KindAfterCycle }
func (*InitialContentEvent) Kind() EventKind { return KindInitialContent }
func (*EntryAddedEvent) Kind() EventKind     { return KindEntryAdded }
func (*EntryRemovedEvent) Kind() EventKind   { return KindEntryRemoved }
func (*EntryModifiedEvent) Kind() EventKind  { return KindEntryModified }
func (*IOErrorRaisedEvent) Kind() EventKind  { return KindIOErrorRaised }
func (*IOErrorCeasedEvent) Kind() EventKind  { return KindIOErrorCeased }
