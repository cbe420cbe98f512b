package poller

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

type changeKind int

const (
	changeAddDirectory changeKind = iota
	changeRemoveDirectory
	changeAddListener
	changeRemoveListener
)

// change is a queued registration applied at a cycle boundary.
type change struct {
	kind     changeKind
	dir      Directory
	baseline []CachedEntry
	listener Listener
}

// run drives cycles until a stop request or cancellation of ctx.
func (p *Poller) run(ctx context.Context) {
	defer p.terminate(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if p.stopRequested() {
			return
		}

		if err := p.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Debug("cycle cancelled by listener", slog.String("error", err.Error()))
		}

		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runCycle polls every watched directory once. Only cancellation errors are
// returned; directory failures are handled by pollDirectory.
func (p *Poller) runCycle(ctx context.Context) error {
	p.applyPending()

	n := p.cycles.Add(1)
	if err := p.notifier.Notify(ctx, &BeforeCycleEvent{Poller: p, Cycle: n}); err != nil {
		return err
	}
	if err := p.pollAll(ctx); err != nil {
		return err
	}
	if err := p.notifier.Notify(ctx, &AfterCycleEvent{Poller: p, Cycle: n}); err != nil {
		return err
	}

	p.applyPending()
	return nil
}

func (p *Poller) pollAll(ctx context.Context) error {
	p.mu.Lock()
	dirs := append([]*directoryPoller(nil), p.dirs...)
	p.mu.Unlock()

	env := pollEnv{
		poller:             p,
		notifier:           p.notifier,
		filter:             p.filter,
		initialContentAdds: p.initialContentAdds,
	}

	if !p.parallel {
		for _, d := range dirs {
			if err := p.pollDirectory(ctx, d, env); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if p.maxWorkers > 0 {
		g.SetLimit(p.maxWorkers)
	}
	for _, d := range dirs {
		g.Go(func() error {
			return p.pollDirectory(gctx, d, env)
		})
	}
	return g.Wait()
}

func (p *Poller) pollDirectory(ctx context.Context, d *directoryPoller, env pollEnv) error {
	err := d.poll(ctx, env)
	if err == nil {
		return nil
	}
	if IsCancellation(err) {
		return err
	}
	p.fail(d.dir, err)
	return nil
}

// applyPending applies queued changes in submission order.
func (p *Poller) applyPending() {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, c := range pending {
		switch c.kind {
		case changeAddDirectory:
			p.mu.Lock()
			if p.indexOfLocked(c.dir.Key()) < 0 {
				baseline := c.baseline
				if restored, ok := p.takeRestoredLocked(c.dir.Key()); ok && len(baseline) == 0 {
					baseline = restored
				}
				p.dirs = append(p.dirs, newDirectoryPoller(c.dir, baseline))
				p.logger.Debug("directory added", slog.String("directory", c.dir.Key()))
			}
			p.mu.Unlock()
		case changeRemoveDirectory:
			p.mu.Lock()
			if i := p.indexOfLocked(c.dir.Key()); i >= 0 {
				p.dirs = append(p.dirs[:i:i], p.dirs[i+1:]...)
				p.logger.Debug("directory removed", slog.String("directory", c.dir.Key()))
			}
			p.mu.Unlock()
		case changeAddListener:
			if _, err := p.notifier.Add(c.listener); err != nil {
				p.logger.Warn("listener rejected", slog.String("error", err.Error()))
			}
		case changeRemoveListener:
			p.notifier.Remove(c.listener)
		}
	}
}
