package poller

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubEntry struct {
	name  string
	mtime int64
	dir   bool
	mtErr error
}

func (e *stubEntry) Name() string            { return e.name }
func (e *stubEntry) ModTime() (int64, error) { return e.mtime, e.mtErr }
func (e *stubEntry) IsDir() bool             { return e.dir }

// files builds entries from "name:mtime" pairs.
func files(pairs ...any) []Entry {
	out := make([]Entry, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, &stubEntry{name: pairs[i].(string), mtime: int64(pairs[i+1].(int))})
	}
	return out
}

type listing struct {
	entries []Entry
	err     error
}

// stubDir replays scripted listings; the last one repeats.
type stubDir struct {
	key string

	mu       sync.Mutex
	script   []listing
	calls    int
	listFunc func(ctx context.Context) ([]Entry, error)
}

func newStubDir(key string, script ...listing) *stubDir {
	return &stubDir{key: key, script: script}
}

func (d *stubDir) Key() string { return d.key }

func (d *stubDir) List(ctx context.Context) ([]Entry, error) {
	d.mu.Lock()
	fn := d.listFunc
	var l listing
	if len(d.script) > 0 {
		i := d.calls
		if i >= len(d.script) {
			i = len(d.script) - 1
		}
		l = d.script[i]
	}
	d.calls++
	d.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return l.entries, l.err
}

func (d *stubDir) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func listOf(entries ...Entry) listing { return listing{entries: entries} }
func okFiles(pairs ...any) listing  { return listing{entries: files(pairs...)} }
func failing(err error) listing     { return listing{err: err} }
func ioFailure() listing            { return failing(&fs.PathError{Op: "readdir", Path: "/x", Err: fs.ErrPermission}) }

// recorder implements every listener capability and records events as text.
type recorder struct {
	mu     sync.Mutex
	events []string
	stops  []*AfterStopEvent
	raised []error
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) BeforeStart(_ context.Context, _ *BeforeStartEvent) error {
	r.add("before-start")
	return nil
}

func (r *recorder) AfterStop(_ context.Context, e *AfterStopEvent) error {
	r.mu.Lock()
	r.stops = append(r.stops, e)
	r.mu.Unlock()
	r.add("after-stop")
	return nil
}

func (r *recorder) BeforeCycle(_ context.Context, _ *BeforeCycleEvent) error {
	r.add("before-cycle")
	return nil
}

func (r *recorder) AfterCycle(_ context.Context, _ *AfterCycleEvent) error {
	r.add("after-cycle")
	return nil
}

func (r *recorder) InitialContent(_ context.Context, e *InitialContentEvent) error {
	names := e.Snapshot.Names()
	sort.Strings(names)
	r.add(fmt.Sprintf("initial-content(%s)", strings.Join(names, ",")))
	return nil
}

func (r *recorder) EntryAdded(_ context.Context, e *EntryAddedEvent) error {
	r.add("added(" + e.Cached.Name + ")")
	return nil
}

func (r *recorder) EntryRemoved(_ context.Context, e *EntryRemovedEvent) error {
	r.add("removed(" + e.Cached.Name + ")")
	return nil
}

func (r *recorder) EntryModified(_ context.Context, e *EntryModifiedEvent) error {
	r.add("modified(" + e.Cached.Name + ")")
	return nil
}

func (r *recorder) IOErrorRaised(_ context.Context, e *IOErrorRaisedEvent) error {
	r.mu.Lock()
	r.raised = append(r.raised, e.Err)
	r.mu.Unlock()
	r.add("io-error-raised")
	return nil
}

func (r *recorder) IOErrorCeased(_ context.Context, _ *IOErrorCeasedEvent) error {
	r.add("io-error-ceased")
	return nil
}

// newTestPoller builds an unstarted poller with a recorder attached.
func newTestPoller(t *testing.T, opts Options) (*Poller, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts.Listeners = append([]Listener{rec}, opts.Listeners...)
	p, err := New(opts)
	require.NoError(t, err)
	return p, rec
}

// memPersister is an in-memory Persister.
type memPersister struct {
	mu      sync.Mutex
	data    map[string][]CachedEntry
	written map[string][]CachedEntry
	writes  int
}

func (m *memPersister) HasData(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data) > 0, nil
}

func (m *memPersister) Read(context.Context) (map[string][]CachedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memPersister) Write(_ context.Context, state map[string][]CachedEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = state
	m.writes++
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
