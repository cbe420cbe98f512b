package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/dirpoll/internal/fsdir"
	"github.com/Aman-CERP/dirpoll/internal/poller"
)

func newPoller(t *testing.T, name string, dirs ...poller.Directory) *poller.Poller {
	t.Helper()
	p, err := poller.New(poller.Options{Name: name, Directories: dirs})
	require.NoError(t, err)
	return p
}

func memDir(t *testing.T, fsys afero.Fs, path string) *fsdir.Directory {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(path, 0o755))
	d, err := fsdir.NewFs(fsys, path)
	require.NoError(t, err)
	return d
}

func TestRecorder_CountsCycles(t *testing.T) {
	// Given: a recorder with a controllable clock
	r := New()
	clock := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return clock }
	p := newPoller(t, "docs", memDir(t, afero.NewMemMapFs(), "/in"))
	ctx := context.Background()

	// When: two cycles complete, the second taking 250ms
	for i := uint64(1); i <= 2; i++ {
		require.NoError(t, r.BeforeCycle(ctx, &poller.BeforeCycleEvent{Poller: p, Cycle: i}))
		clock = clock.Add(250 * time.Millisecond)
		require.NoError(t, r.AfterCycle(ctx, &poller.AfterCycleEvent{Poller: p, Cycle: i}))
	}

	// Then: cycles and timing are recorded
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cycles.WithLabelValues("docs")))
	assert.InDelta(t, float64(clock.UnixMilli())/1000, testutil.ToFloat64(r.lastCycle.WithLabelValues("docs")), 0.001)
	assert.Equal(t, 1, testutil.CollectAndCount(r.cycleDuration))
	assert.Empty(t, r.started)
}

func TestRecorder_TracksEntriesAndErrors(t *testing.T) {
	d := memDir(t, afero.NewMemMapFs(), "/in")
	p := newPoller(t, "docs", d)
	ctx := context.Background()
	labels := []string{"docs", "/in"}

	// Given: an initial listing of two entries
	snap := poller.SnapshotFromCached([]poller.CachedEntry{
		{Name: "a", LastModified: 1},
		{Name: "b", LastModified: 2},
	})
	r := New()
	require.NoError(t, r.InitialContent(ctx, &poller.InitialContentEvent{Poller: p, Directory: d, Snapshot: snap}))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.entries.WithLabelValues(labels...)))

	// When: entries change and the directory fails then recovers
	require.NoError(t, r.EntryAdded(ctx, &poller.EntryAddedEvent{Poller: p, Directory: d}))
	require.NoError(t, r.EntryAdded(ctx, &poller.EntryAddedEvent{Poller: p, Directory: d}))
	require.NoError(t, r.EntryRemoved(ctx, &poller.EntryRemovedEvent{Poller: p, Directory: d}))
	require.NoError(t, r.EntryModified(ctx, &poller.EntryModifiedEvent{Poller: p, Directory: d}))
	require.NoError(t, r.IOErrorRaised(ctx, &poller.IOErrorRaisedEvent{Poller: p, Directory: d, Err: errors.New("boom")}))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.readable.WithLabelValues(labels...)))
	require.NoError(t, r.IOErrorCeased(ctx, &poller.IOErrorCeasedEvent{Poller: p, Directory: d}))

	// Then: gauges and counters follow
	assert.Equal(t, 3.0, testutil.ToFloat64(r.entries.WithLabelValues(labels...)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.events.WithLabelValues("docs", "/in", "added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.events.WithLabelValues("docs", "/in", "removed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.events.WithLabelValues("docs", "/in", "modified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ioErrors.WithLabelValues(labels...)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.readable.WithLabelValues(labels...)))

	// And: stopping the poller drops its directory gauges
	require.NoError(t, r.AfterStop(ctx, &poller.AfterStopEvent{Poller: p}))
	assert.Equal(t, 0, testutil.CollectAndCount(r.entries))
	assert.Equal(t, 0, testutil.CollectAndCount(r.readable))
}

func TestRecorder_WithPollerAndHandler(t *testing.T) {
	// Given: a running poller reporting into a recorder
	fsys := afero.NewMemMapFs()
	d := memDir(t, fsys, "/in")
	require.NoError(t, afero.WriteFile(fsys, "/in/a.txt", []byte("x"), 0o644))

	r := New()
	p, err := poller.New(poller.Options{
		Name:        "live",
		Directories: []poller.Directory{d},
		Listeners:   []poller.Listener{r},
		Interval:    10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	// When: a file is added and the endpoint is scraped
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(r.cycles.WithLabelValues("live")) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, afero.WriteFile(fsys, "/in/b.txt", []byte("y"), 0o644))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(r.events.WithLabelValues("live", "/in", "added")) == 1
	}, 2*time.Second, 5*time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	// Then: the exposition carries the poller metrics
	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(resp.Body)
	require.NoError(t, err)
	require.Contains(t, families, "dirpoll_directory_entries")
	assert.Equal(t, 2.0, families["dirpoll_directory_entries"].GetMetric()[0].GetGauge().GetValue())
	assert.Contains(t, families, "dirpoll_cycles_total")
	assert.Contains(t, families, "go_goroutines")
}

func TestServe_StopsWithContext(t *testing.T) {
	// Given: a metrics server on a random port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, New().Handler(), nil) }()

	// When: scraping then cancelling
	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		body, err = io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	// Then: the server answered and shuts down cleanly
	assert.Contains(t, string(body), "go_goroutines")
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_BadAddress(t *testing.T) {
	err := Serve(context.Background(), "256.0.0.1:bad", New().Handler(), nil)

	assert.Error(t, err)
}
