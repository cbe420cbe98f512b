// Package cmd provides the CLI commands for dirpoll.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/dirpoll/internal/config"
	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/logging"
	"github.com/Aman-CERP/dirpoll/internal/profiling"
	"github.com/Aman-CERP/dirpoll/pkg/version"
)

// globalOptions holds the persistent flags shared by all commands.
type globalOptions struct {
	debug      bool
	configPath string
	profile    profiling.Options

	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the dirpoll CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&globalOptions{})
}

func newRootCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dirpoll",
		Short: "Poll directories and report added, removed and modified entries",
		Long: `dirpoll lists a set of directories at a fixed interval, compares each
listing with the previous one and reports what changed.

It works on any file system that can be listed, including network
mounts where change notifications are unavailable.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.startProfiling()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			opts.finish()
		},
	}
	cmd.SetVersionTemplate("dirpoll version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.dirpoll/logs/")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default ./dirpoll.yaml or the user config)")
	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file on exit")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Goroutine, "profile-goroutine", "", "Write goroutine stacks to file on exit")

	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newStateCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints a failure on stderr.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	opts := &globalOptions{}
	err := newRootCmd(opts).ExecuteContext(ctx)
	opts.finish()
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, apperrors.FormatForCLI(err))
	}
	return err
}

// loadConfig loads the configuration and installs the logger it describes.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{
		Level:     cfg.Log.Level,
		FilePath:  cfg.Log.File,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		MaxFiles:  cfg.Log.MaxFiles,
		Console:   cmd.ErrOrStderr(),
	}
	if o.debug {
		logCfg.Level = "debug"
		if logCfg.FilePath == "" {
			logCfg.FilePath = logging.DefaultLogPath()
		}
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	o.closeLogging()
	o.loggingCleanup = cleanup
	if o.debug {
		slog.Debug("debug logging enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}
	return cfg, nil
}

func (o *globalOptions) startProfiling() error {
	if !o.profile.Enabled() || o.profiler != nil {
		return nil
	}
	s, err := profiling.Start(o.profile)
	if err != nil {
		return err
	}
	o.profiler = s
	return nil
}

// finish stops profiling and closes the log file. It runs after the command
// whether or not it failed.
func (o *globalOptions) finish() {
	if o.profiler != nil {
		if err := o.profiler.Stop(); err != nil {
			slog.Warn("failed to write profiles", slog.String("error", err.Error()))
		}
		o.profiler = nil
	}
	o.closeLogging()
}

func (o *globalOptions) closeLogging() {
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}
