package poller

// Item pairs a live entry with what was observed about it during listing.
type Item struct {
	Entry  Entry
	Cached CachedEntry
}

// Snapshot is an ordered, immutable name-to-item mapping for one directory.
// A nil *Snapshot behaves as an empty snapshot.
type Snapshot struct {
	names []string
	items map[string]Item
}

var emptySnapshot = &Snapshot{items: map[string]Item{}}

// EmptySnapshot returns the shared snapshot without entries.
func EmptySnapshot() *Snapshot { return emptySnapshot }

// newSnapshot builds a snapshot from items in listing order. When a name
// repeats, the later item replaces the earlier one but keeps its position.
func newSnapshot(items []Item) *Snapshot {
	s := &Snapshot{
		names: make([]string, 0, len(items)),
		items: make(map[string]Item, len(items)),
	}
	for _, it := range items {
		name := it.Cached.Name
		if _, dup := s.items[name]; !dup {
			s.names = append(s.names, name)
		}
		s.items[name] = it
	}
	return s
}

// SnapshotFromCached builds a snapshot from persisted entries.
func SnapshotFromCached(entries []CachedEntry) *Snapshot {
	items := make([]Item, 0, len(entries))
	for _, c := range entries {
		items = append(items, Item{Entry: c.AsEntry(), Cached: c})
	}
	return newSnapshot(items)
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Get returns the item stored under name.
func (s *Snapshot) Get(name string) (Item, bool) {
	if s == nil {
		return Item{}, false
	}
	it, ok := s.items[name]
	return it, ok
}

// Names returns entry names in listing order.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

// Items returns all items in listing order.
func (s *Snapshot) Items() []Item {
	if s == nil {
		return nil
	}
	out := make([]Item, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.items[n])
	}
	return out
}

// Entries returns the live entries in listing order.
func (s *Snapshot) Entries() []Entry {
	items := s.Items()
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		out = append(out, it.Entry)
	}
	return out
}

// Cached returns the cached entries in listing order.
func (s *Snapshot) Cached() []CachedEntry {
	items := s.Items()
	out := make([]CachedEntry, 0, len(items))
	for _, it := range items {
		out = append(out, it.Cached)
	}
	return out
}

// Equal reports whether both snapshots hold the same names with the same
// cached values. Listing order is ignored.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, n := range s.Names() {
		a, _ := s.Get(n)
		b, ok := other.Get(n)
		if !ok || a.Cached != b.Cached {
			return false
		}
	}
	return true
}
