// Package poller detects changes in directories that can only be inspected by
// listing their contents periodically.
//
// Every poll cycle lists each watched directory, diffs the listing against the
// previous one and notifies listeners of removed, added and modified entries.
// Sustained listing failures are reported once when they start and once when
// they clear. Each directory also gets a single initial-content notification
// after its first successful listing.
//
// Listeners implement only the capability interfaces they care about:
//
//	type printer struct{}
//
//	func (printer) EntryAdded(ctx context.Context, e *poller.EntryAddedEvent) error {
//	    fmt.Println("added", e.Cached.Name)
//	    return nil
//	}
//
//	p, err := poller.New(poller.Options{
//	    Interval:    2 * time.Second,
//	    Directories: []poller.Directory{dir},
//	    Listeners:   []poller.Listener{&printer{}},
//	})
//	if err != nil {
//	    return err
//	}
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	defer p.Stop()
//
// Directories and listeners may be added or removed while the poller runs.
// Changes are queued and applied between cycles, so a cycle always sees one
// fixed set of both.
package poller
