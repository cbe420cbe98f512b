// Package metrics exports poller activity as Prometheus metrics.
//
// A Recorder is a poller listener. Register it with one or more pollers and
// expose Handler over HTTP:
//
//	rec := metrics.New()
//	p, _ := poller.New(poller.Options{Listeners: []poller.Listener{rec}, ...})
//	go metrics.Serve(ctx, ":9090", rec.Handler(), logger)
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aman-CERP/dirpoll/internal/poller"
)

const namespace = "dirpoll"

// Recorder counts poll cycles, change events and I/O failures.
type Recorder struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	lastCycle     *prometheus.GaugeVec
	events        *prometheus.CounterVec
	ioErrors      *prometheus.CounterVec
	readable      *prometheus.GaugeVec
	entries       *prometheus.GaugeVec

	mu      sync.Mutex
	started map[*poller.Poller]time.Time
	now     func() time.Time
}

// New returns a Recorder with its own registry. Go runtime and process
// collectors are registered alongside the poller metrics.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed poll cycles.",
		}, []string{"poller"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of completed poll cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"poller"}),
		lastCycle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last poll cycle completed.",
		}, []string{"poller"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entry_events_total",
			Help:      "Entry change events by kind.",
		}, []string{"poller", "directory", "kind"}),
		ioErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "io_errors_total",
			Help:      "Transitions of a directory into the unreadable state.",
		}, []string{"poller", "directory"}),
		readable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "directory_readable",
			Help:      "1 while a directory lists successfully, 0 while it fails.",
		}, []string{"poller", "directory"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "directory_entries",
			Help:      "Entries currently known in a directory.",
		}, []string{"poller", "directory"}),
		started: make(map[*poller.Poller]time.Time),
		now:     time.Now,
	}
	r.registry.MustRegister(
		r.cycles, r.cycleDuration, r.lastCycle,
		r.events, r.ioErrors, r.readable, r.entries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry holding the metrics.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) BeforeCycle(_ context.Context, e *poller.BeforeCycleEvent) error {
	r.mu.Lock()
	r.started[e.Poller] = r.now()
	r.mu.Unlock()
	return nil
}

func (r *Recorder) AfterCycle(_ context.Context, e *poller.AfterCycleEvent) error {
	now := r.now()
	name := e.Poller.Name()

	r.mu.Lock()
	start, ok := r.started[e.Poller]
	delete(r.started, e.Poller)
	r.mu.Unlock()

	r.cycles.WithLabelValues(name).Inc()
	r.lastCycle.WithLabelValues(name).Set(float64(now.UnixMilli()) / 1000)
	if ok {
		r.cycleDuration.WithLabelValues(name).Observe(now.Sub(start).Seconds())
	}
	return nil
}

func (r *Recorder) InitialContent(_ context.Context, e *poller.InitialContentEvent) error {
	name, dir := e.Poller.Name(), e.Directory.Key()
	r.entries.WithLabelValues(name, dir).Set(float64(e.Snapshot.Len()))
	r.readable.WithLabelValues(name, dir).Set(1)
	return nil
}

func (r *Recorder) EntryAdded(_ context.Context, e *poller.EntryAddedEvent) error {
	name, dir := e.Poller.Name(), e.Directory.Key()
	r.events.WithLabelValues(name, dir, "added").Inc()
	r.entries.WithLabelValues(name, dir).Inc()
	return nil
}

func (r *Recorder) EntryRemoved(_ context.Context, e *poller.EntryRemovedEvent) error {
	name, dir := e.Poller.Name(), e.Directory.Key()
	r.events.WithLabelValues(name, dir, "removed").Inc()
	r.entries.WithLabelValues(name, dir).Dec()
	return nil
}

func (r *Recorder) EntryModified(_ context.Context, e *poller.EntryModifiedEvent) error {
	r.events.WithLabelValues(e.Poller.Name(), e.Directory.Key(), "modified").Inc()
	return nil
}

func (r *Recorder) IOErrorRaised(_ context.Context, e *poller.IOErrorRaisedEvent) error {
	name, dir := e.Poller.Name(), e.Directory.Key()
	r.ioErrors.WithLabelValues(name, dir).Inc()
	r.readable.WithLabelValues(name, dir).Set(0)
	return nil
}

func (r *Recorder) IOErrorCeased(_ context.Context, e *poller.IOErrorCeasedEvent) error {
	r.readable.WithLabelValues(e.Poller.Name(), e.Directory.Key()).Set(1)
	return nil
}

// AfterStop drops per-directory series of the stopped poller.
func (r *Recorder) AfterStop(_ context.Context, e *poller.AfterStopEvent) error {
	labels := prometheus.Labels{"poller": e.Poller.Name()}
	r.entries.DeletePartialMatch(labels)
	r.readable.DeletePartialMatch(labels)

	r.mu.Lock()
	delete(r.started, e.Poller)
	r.mu.Unlock()
	return nil
}

// Serve exposes handler on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, handler, logger)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("metrics endpoint listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
