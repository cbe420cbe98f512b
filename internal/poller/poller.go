package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
)

// State is the lifecycle state of a Poller.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// StopMode selects how an in-flight cycle is treated on stop.
type StopMode int

const (
	// StopGraceful lets the current cycle finish.
	StopGraceful StopMode = iota
	// StopForceful also cancels the context of the current cycle.
	StopForceful
)

// Poller periodically lists a set of directories and notifies listeners
// about the differences between consecutive listings.
type Poller struct {
	name               string
	interval           time.Duration
	parallel           bool
	maxWorkers         int
	initialContentAdds bool
	filter             Filter
	persister          Persister
	resolver           Resolver
	logger             *slog.Logger
	notifier           *Notifier

	cycles atomic.Uint64

	mu       sync.Mutex
	state    State
	dirs     []*directoryPoller
	pending  []change
	restored map[string][]CachedEntry
	cancel   context.CancelFunc
	err      error

	stopCh chan struct{}
	done   chan struct{}
}

// New creates a poller from opts. The poller does nothing until Start.
func New(opts Options) (*Poller, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	p := &Poller{
		name:               opts.Name,
		interval:           opts.Interval,
		parallel:           opts.Parallel,
		maxWorkers:         opts.MaxWorkers,
		initialContentAdds: opts.InitialContentAdds,
		filter:             opts.Filter,
		persister:          opts.Persister,
		resolver:           opts.Resolver,
		logger:             opts.Logger.With(slog.String("poller", opts.Name)),
		stopCh:             make(chan struct{}),
		done:               make(chan struct{}),
	}
	p.notifier = NewNotifier(p.logger)

	for _, d := range opts.Directories {
		if p.indexOfLocked(d.Key()) >= 0 {
			continue
		}
		p.dirs = append(p.dirs, newDirectoryPoller(d, nil))
	}
	for _, l := range opts.Listeners {
		if _, err := p.notifier.Add(l); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Factory creates pollers with distinct default names.
type Factory struct {
	counter atomic.Uint64
}

// New creates a poller. An empty opts.Name becomes "DirectoryPoller-N" where
// N counts the unnamed pollers created by this factory, starting at 0.
func (f *Factory) New(opts Options) (*Poller, error) {
	if opts.Name == "" {
		opts.Name = fmt.Sprintf("%s-%d", DefaultName, f.counter.Add(1)-1)
	}
	return New(opts)
}

// Start restores persisted baselines, notifies BeforeStart listeners and
// launches the polling goroutine, which runs the first cycle immediately.
//
// Cancelling ctx stops the poller as StopForceful would.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateCreated {
		state := p.state
		p.mu.Unlock()
		return apperrors.New(apperrors.ErrCodePollerState,
			fmt.Sprintf("cannot start poller in state %s", state), nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = StateRunning
	p.mu.Unlock()

	p.restore(runCtx)

	if err := p.notifier.Notify(runCtx, &BeforeStartEvent{Poller: p}); err != nil {
		p.logger.Info("start aborted", slog.String("error", err.Error()))
		p.terminate(runCtx)
		if p.stopRequested() {
			return nil
		}
		return err
	}

	p.logger.Info("poller started",
		slog.Duration("interval", p.interval),
		slog.Bool("parallel", p.parallel),
		slog.Int("directories", len(p.Directories())))

	go p.run(runCtx)
	return nil
}

// StopAsync requests termination and returns immediately. Repeated requests
// are ignored, except that StopForceful may follow StopGraceful.
// A poller that was never started is terminated without any event.
func (p *Poller) StopAsync(mode StopMode) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateCreated:
		p.state = StateTerminated
		close(p.stopCh)
		close(p.done)
	case StateRunning:
		p.state = StateStopping
		close(p.stopCh)
		if mode == StopForceful {
			p.cancel()
		}
	case StateStopping:
		if mode == StopForceful {
			p.cancel()
		}
	}
}

// Stop stops gracefully and waits for termination.
// Listeners must use StopAsync instead, since Stop waits for their return.
func (p *Poller) Stop() {
	p.StopAsync(StopGraceful)
	p.AwaitTermination()
}

// StopNow stops forcefully and waits for termination.
func (p *Poller) StopNow() {
	p.StopAsync(StopForceful)
	p.AwaitTermination()
}

// AwaitTermination blocks until the poller has terminated.
func (p *Poller) AwaitTermination() {
	<-p.done
}

// Done is closed once the poller has terminated.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Err returns the fatal error that stopped the poller, if any.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Name returns the poller name.
func (p *Poller) Name() string { return p.name }

// Interval returns the polling interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Directories returns the currently watched directories. Queued additions and
// removals are not reflected until the next cycle boundary.
func (p *Poller) Directories() []Directory {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Directory, 0, len(p.dirs))
	for _, d := range p.dirs {
		out = append(out, d.dir)
	}
	return out
}

// Listeners returns the registered listeners.
func (p *Poller) Listeners() []Listener {
	return p.notifier.Listeners()
}

func (p *Poller) String() string {
	dirs := p.Directories()
	keys := make([]string, 0, len(dirs))
	for _, d := range dirs {
		keys = append(keys, d.Key())
	}
	return fmt.Sprintf("%s: [%s] [polling every %s]", p.name, strings.Join(keys, ", "), p.interval)
}

// AddDirectory queues dir for watching from the next cycle boundary on.
// If a persisted baseline exists for its key it is used as warm start.
func (p *Poller) AddDirectory(dir Directory) error {
	return p.addDirectory(dir, nil)
}

// RemoveDirectory queues dir for removal at the next cycle boundary.
func (p *Poller) RemoveDirectory(dir Directory) error {
	if dir == nil {
		return apperrors.ValidationError("directory must not be nil", nil)
	}
	return p.enqueue(change{kind: changeRemoveDirectory, dir: dir})
}

// AddListener queues l for registration at the next cycle boundary.
func (p *Poller) AddListener(l Listener) error {
	if err := validateListener(l); err != nil {
		return err
	}
	return p.enqueue(change{kind: changeAddListener, listener: l})
}

// RemoveListener queues l for removal at the next cycle boundary.
func (p *Poller) RemoveListener(l Listener) error {
	if l == nil {
		return apperrors.ValidationError("listener must not be nil", nil)
	}
	return p.enqueue(change{kind: changeRemoveListener, listener: l})
}

func (p *Poller) addDirectory(dir Directory, baseline []CachedEntry) error {
	if dir == nil {
		return apperrors.ValidationError("directory must not be nil", nil)
	}
	return p.enqueue(change{kind: changeAddDirectory, dir: dir, baseline: baseline})
}

func (p *Poller) enqueue(c change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateTerminated {
		return apperrors.New(apperrors.ErrCodePollerState, "poller has terminated", nil)
	}
	p.pending = append(p.pending, c)
	return nil
}

func (p *Poller) stopRequested() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

// restore reads the persister and seeds known directories. Unknown keys are
// resolved into new directories when a Resolver is configured; otherwise they
// are kept for directories added later.
func (p *Poller) restore(ctx context.Context) {
	if p.persister == nil {
		return
	}
	has, err := p.persister.HasData(ctx)
	if err != nil {
		p.logger.Warn("failed to check persisted state", apperrors.FormatForLog(err)...)
		return
	}
	if !has {
		return
	}
	data, err := p.persister.Read(ctx)
	if err != nil {
		p.logger.Warn("failed to read persisted state", apperrors.FormatForLog(err)...)
		return
	}

	p.mu.Lock()
	p.restored = make(map[string][]CachedEntry, len(data))
	for k, v := range data {
		p.restored[k] = v
	}
	for i, d := range p.dirs {
		if baseline, ok := p.takeRestoredLocked(d.dir.Key()); ok {
			p.dirs[i] = newDirectoryPoller(d.dir, baseline)
		}
	}
	var keys []string
	if p.resolver != nil {
		keys = make([]string, 0, len(p.restored))
		for k := range p.restored {
			keys = append(keys, k)
		}
	}
	p.mu.Unlock()

	// Resolve without holding p.mu.
	sort.Strings(keys)
	for _, k := range keys {
		dir, err := p.resolver(k)
		if err != nil {
			p.logger.Warn("cannot resolve persisted directory",
				slog.String("directory", k), slog.String("error", err.Error()))
			continue
		}
		if dir == nil {
			continue
		}
		p.mu.Lock()
		if baseline, ok := p.takeRestoredLocked(k); ok && p.indexOfLocked(dir.Key()) < 0 {
			p.dirs = append(p.dirs, newDirectoryPoller(dir, baseline))
		}
		p.mu.Unlock()
	}
}

func (p *Poller) takeRestoredLocked(key string) ([]CachedEntry, bool) {
	baseline, ok := p.restored[key]
	if ok {
		delete(p.restored, key)
	}
	return baseline, ok
}

func (p *Poller) indexOfLocked(key string) int {
	for i, d := range p.dirs {
		if d.dir.Key() == key {
			return i
		}
	}
	return -1
}

// fail records a fatal directory error and stops the poller.
func (p *Poller) fail(dir Directory, err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()

	attrs := append([]any{slog.String("directory", dir.Key())}, apperrors.FormatForLog(err)...)
	p.logger.Error("directory poll failed, stopping poller", attrs...)
	p.StopAsync(StopGraceful)
}

// terminate runs once, on the goroutine that owns the poller at that point.
func (p *Poller) terminate(ctx context.Context) {
	p.mu.Lock()
	if p.state == StateRunning {
		p.state = StateStopping
	}
	p.mu.Unlock()

	p.applyPending()

	ctx = context.WithoutCancel(ctx)
	state := p.finalState()
	if err := p.notifier.Notify(ctx, &AfterStopEvent{Poller: p, State: state}); err != nil {
		p.logger.Warn("after stop notification aborted", slog.String("error", err.Error()))
	}
	if p.persister != nil {
		if err := p.persister.Write(ctx, p.persistedState(state)); err != nil {
			p.logger.Error("failed to persist state", apperrors.FormatForLog(err)...)
		}
	}

	p.mu.Lock()
	p.state = StateTerminated
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.logger.Info("poller terminated", slog.Uint64("cycles", p.cycles.Load()))
	close(p.done)
}

func (p *Poller) finalState() map[string][]CachedEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := make(map[string][]CachedEntry, len(p.dirs))
	for _, d := range p.dirs {
		state[d.dir.Key()] = d.previous.Cached()
	}
	return state
}

// persistedState is the watched state plus restored baselines no directory
// claimed during this run, so a store shared between runs keeps them.
func (p *Poller) persistedState(watched map[string][]CachedEntry) map[string][]CachedEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.restored) == 0 {
		return watched
	}
	state := make(map[string][]CachedEntry, len(watched)+len(p.restored))
	for k, v := range p.restored {
		state[k] = v
	}
	for k, v := range watched {
		state[k] = v
	}
	return state
}
