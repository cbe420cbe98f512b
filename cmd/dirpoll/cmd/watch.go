package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dirpoll/internal/config"
	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/filter"
	"github.com/Aman-CERP/dirpoll/internal/logging"
	"github.com/Aman-CERP/dirpoll/internal/metrics"
	"github.com/Aman-CERP/dirpoll/internal/persist"
	"github.com/Aman-CERP/dirpoll/internal/poller"
	"github.com/Aman-CERP/dirpoll/internal/watcher"
)

// configReloadWindow is the quiet period before a changed config is reloaded.
const configReloadWindow = 250 * time.Millisecond

type watchOptions struct {
	interval     time.Duration
	parallel     bool
	maxWorkers   int
	initialAdds  bool
	listInitial  bool
	regex        string
	patterns     []string
	filesOnly    bool
	stateBackend string
	statePath    string
	name         string
	noColor      bool
	noReload     bool
	restoreAll   bool
	blobRPS      float64
	metricsAddr  string
}

func newWatchCmd(global *globalOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [dir...]",
		Short: "Poll directories and print changes",
		Long: `Poll the given directories, plus those listed in the config file, and
print one line per added, removed or modified entry.

A directory may also be a bucket URL (s3://, gs://, azblob://, file://,
mem://); the objects directly under its path are polled like files.

Interrupt (Ctrl-C) stops after the current cycle; a second interrupt stops
immediately. With a state backend the last listing of every directory is
saved on exit and used as baseline on the next run, so changes made while
dirpoll was not running are reported too.`,
		Example: `  dirpoll watch /data/in
  dirpoll watch --interval 500ms --regex '.*\.xml' /data/in /data/out
  dirpoll watch --state-backend sqlite /mnt/share
  dirpoll watch --blob-rps 2 --metrics-addr :9464 s3://reports/incoming/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg, args); err != nil {
				return err
			}
			return runWatch(cmd, cfg, opts, args, config.Locate(global.configPath))
		},
	}

	f := cmd.Flags()
	f.DurationVarP(&opts.interval, "interval", "i", 0, "Polling interval (default from config, 1s)")
	f.BoolVar(&opts.parallel, "parallel", false, "Poll directories concurrently")
	f.IntVar(&opts.maxWorkers, "max-workers", 0, "Concurrent directory limit in parallel mode (0 = one per directory)")
	f.BoolVar(&opts.initialAdds, "initial-adds", false, "Report the initial content of each directory as additions")
	f.BoolVar(&opts.listInitial, "list-initial", false, "Print every entry of the initial content")
	f.StringVar(&opts.regex, "regex", "", "Only watch entries whose whole name matches this expression")
	f.StringSliceVar(&opts.patterns, "exclude", nil, "Gitignore-style pattern of entries to ignore (repeatable)")
	f.BoolVar(&opts.filesOnly, "files-only", false, "Ignore subdirectories")
	f.StringVar(&opts.stateBackend, "state-backend", "", "Baseline persistence: none, sqlite, bolt, file")
	f.StringVar(&opts.statePath, "state-path", "", "State file path (default ~/.dirpoll/state/<backend file>)")
	f.StringVar(&opts.name, "name", "", "Poller name used in logs")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	f.BoolVar(&opts.restoreAll, "restore-all", false, "Also watch directories found in the state store but not configured")
	f.BoolVar(&opts.noReload, "no-reload", false, "Do not watch the config file for directory changes")
	f.Float64Var(&opts.blobRPS, "blob-rps", 0, "Maximum bucket listings per second (0 = unlimited)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")

	return cmd
}

// apply overlays explicitly set flags onto cfg.
func (o *watchOptions) apply(cmd *cobra.Command, cfg *config.Config, args []string) error {
	f := cmd.Flags()
	if f.Changed("interval") {
		cfg.Interval = o.interval.String()
	}
	if f.Changed("parallel") {
		cfg.Parallel = o.parallel
	}
	if f.Changed("max-workers") {
		cfg.MaxWorkers = o.maxWorkers
	}
	if f.Changed("initial-adds") {
		cfg.InitialContentAdds = o.initialAdds
	}
	if f.Changed("regex") {
		cfg.Filter.Regex = o.regex
	}
	if f.Changed("exclude") {
		cfg.Filter.Patterns = append(cfg.Filter.Patterns, o.patterns...)
	}
	if f.Changed("files-only") {
		cfg.Filter.FilesOnly = o.filesOnly
	}
	if f.Changed("state-backend") {
		cfg.State.Backend = o.stateBackend
	}
	if f.Changed("state-path") {
		cfg.State.Path = o.statePath
	}
	if f.Changed("name") {
		cfg.Name = o.name
	}
	if f.Changed("blob-rps") {
		cfg.Blob.RPS = o.blobRPS
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Addr = o.metricsAddr
	}
	cfg.Directories = append(cfg.Directories, args...)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.Directories) == 0 {
		return apperrors.New(apperrors.ErrCodeNoDirectories, "no directories to watch", nil).
			WithSuggestion("pass directories as arguments or list them under 'directories' in dirpoll.yaml")
	}
	return nil
}

func runWatch(cmd *cobra.Command, cfg *config.Config, opts *watchOptions, args []string, configFile string) error {
	logger := slog.Default()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	interval, err := cfg.IntervalDuration()
	if err != nil {
		return err
	}
	flt, err := buildFilter(cfg.Filter)
	if err != nil {
		return err
	}
	opener := newDirectoryOpener(ctx, cfg.Blob)
	defer func() {
		if err := opener.Close(); err != nil {
			logger.Warn("closing buckets failed", slog.String("error", err.Error()))
		}
	}()
	dirs, err := opener.openAll(cfg.Directories)
	if err != nil {
		return err
	}

	backend, err := cfg.Backend()
	if err != nil {
		return err
	}
	store, err := persist.Open(backend, cfg.StatePath())
	if err != nil {
		return err
	}
	var persister poller.Persister
	if store != nil {
		defer func() { _ = store.Close() }()
		persister = store
		logger.Debug("state backend opened",
			slog.String("backend", string(backend)),
			slog.String("path", cfg.StatePath()))
	}

	var resolver poller.Resolver
	if opts.restoreAll {
		resolver = opener.resolve
	}

	out := cmd.OutOrStdout()
	color := !opts.noColor && logging.IsTerminal(out)
	listeners := []poller.Listener{newPrinter(out, color, opts.listInitial)}

	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()
	if cfg.Metrics.Addr != "" {
		rec := metrics.New()
		listeners = append(listeners, rec)
		go func() {
			if err := metrics.Serve(serveCtx, cfg.Metrics.Addr, rec.Handler(), logger); err != nil {
				logger.Error("metrics endpoint failed", slog.String("error", err.Error()))
			}
		}()
	}

	p, err := poller.New(poller.Options{
		Interval:           interval,
		Parallel:           cfg.Parallel,
		MaxWorkers:         cfg.MaxWorkers,
		InitialContentAdds: cfg.InitialContentAdds,
		Filter:             flt,
		Name:               cfg.Name,
		Directories:        dirs,
		Listeners:          listeners,
		Persister:          persister,
		Resolver:           resolver,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := p.Start(ctx); err != nil {
		return err
	}
	logger.Info("watching", slog.String("poller", p.String()))

	reloadCtx, stopReload := context.WithCancel(ctx)
	defer stopReload()
	if configFile != "" && !opts.noReload {
		startConfigReload(reloadCtx, p, opener, configFile, args, logger)
	}

	for {
		select {
		case sig := <-sigCh:
			if p.State() == poller.StateRunning {
				logger.Info("stopping after current cycle", slog.String("signal", sig.String()))
				p.StopAsync(poller.StopGraceful)
			} else {
				logger.Warn("stopping now", slog.String("signal", sig.String()))
				p.StopAsync(poller.StopForceful)
			}
		case <-p.Done():
			return p.Err()
		}
	}
}

// buildFilter combines the configured filters into one.
func buildFilter(fc config.FilterConfig) (poller.Filter, error) {
	var filters []poller.Filter
	if fc.Regex != "" {
		re, err := filter.Regex(fc.Regex)
		if err != nil {
			return nil, err
		}
		filters = append(filters, re)
	}
	if len(fc.Patterns) > 0 {
		pf, err := filter.Patterns(fc.Patterns...)
		if err != nil {
			return nil, err
		}
		filters = append(filters, pf)
	}
	if fc.FilesOnly {
		filters = append(filters, filter.FilesOnly())
	}
	if len(filters) == 0 {
		return filter.All(), nil
	}
	return filter.And(filters...), nil
}

// startConfigReload watches configFile and applies changes to its directory
// list to p. Directories given on the command line are always kept.
func startConfigReload(ctx context.Context, p *poller.Poller, opener *directoryOpener, configFile string, pinned []string, logger *slog.Logger) {
	w, err := watcher.NewFileWatcher(configReloadWindow, configFile)
	if err != nil {
		logger.Warn("config reload disabled", slog.String("error", err.Error()))
		return
	}
	go func() { _ = w.Run(ctx) }()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				logger.Warn("config watcher error", slog.String("error", err.Error()))
			case _, ok := <-w.Events():
				if !ok {
					return
				}
				if err := reloadDirectories(p, opener, configFile, pinned, logger); err != nil {
					logger.Warn("config reload failed", apperrors.FormatForLog(err)...)
				}
			}
		}
	}()
}

// reloadDirectories queues additions and removals so that p watches the
// directories of configFile plus pinned. Only new directories are opened.
func reloadDirectories(p *poller.Poller, opener *directoryOpener, configFile string, pinned []string, logger *slog.Logger) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	entries := append(append([]string(nil), cfg.Directories...), pinned...)
	keys := make([]string, len(entries))
	for i, entry := range entries {
		if keys[i], err = opener.key(entry); err != nil {
			return err
		}
	}

	current := make(map[string]poller.Directory)
	for _, d := range p.Directories() {
		current[d.Key()] = d
	}
	wanted := make(map[string]struct{}, len(entries))
	for i, entry := range entries {
		key := keys[i]
		if _, ok := wanted[key]; ok {
			continue
		}
		wanted[key] = struct{}{}
		if _, ok := current[key]; ok {
			continue
		}
		d, err := opener.open(entry)
		if err != nil {
			return err
		}
		if err := p.AddDirectory(d); err != nil {
			return err
		}
		logger.Info("directory added from config", slog.String("directory", key))
	}
	for key, d := range current {
		if _, ok := wanted[key]; !ok {
			if err := p.RemoveDirectory(d); err != nil {
				return err
			}
			logger.Info("directory removed from config", slog.String("directory", key))
		}
	}
	return nil
}
