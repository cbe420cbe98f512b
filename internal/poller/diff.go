package poller

// Delta is the result of comparing two snapshots.
type Delta struct {
	// Added holds entries present only in the current snapshot.
	Added *Snapshot
	// Removed holds entries present only in the previous snapshot.
	Removed *Snapshot
	// HasDiff is true when the snapshots are not structurally equal.
	HasDiff bool
}

// Diff compares previous against current.
// Added keeps the order of current, Removed the order of previous.
func Diff(previous, current *Snapshot) Delta {
	var added, removed []Item
	for _, it := range current.Items() {
		if _, ok := previous.Get(it.Cached.Name); !ok {
			added = append(added, it)
		}
	}
	for _, it := range previous.Items() {
		if _, ok := current.Get(it.Cached.Name); !ok {
			removed = append(removed, it)
		}
	}
	return Delta{
		Added:   newSnapshot(added),
		Removed: newSnapshot(removed),
		HasDiff: !previous.Equal(current),
	}
}

// Modified returns the items of current whose modification time differs from
// the same name in previous. Names missing from previous are additions, not
// modifications.
func Modified(previous, current *Snapshot) []Item {
	var out []Item
	for _, it := range current.Items() {
		prev, ok := previous.Get(it.Cached.Name)
		if ok && prev.Cached.LastModified != it.Cached.LastModified {
			out = append(out, it)
		}
	}
	return out
}
