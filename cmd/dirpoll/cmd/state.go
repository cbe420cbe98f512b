package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/persist"
	"github.com/Aman-CERP/dirpoll/internal/poller"
)

type stateOptions struct {
	backend    string
	path       string
	jsonOutput bool
	entries    bool
}

// stateDirectory is the JSON form of one persisted directory.
type stateDirectory struct {
	Key     string               `json:"key"`
	Count   int                  `json:"count"`
	Entries []poller.CachedEntry `json:"entries,omitempty"`
}

func newStateCmd(global *globalOptions) *cobra.Command {
	opts := &stateOptions{}

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the persisted baselines",
		Long: `Show the directory listings saved by 'dirpoll watch' with a state backend.
These listings are the baselines the next run compares against.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("state-backend") {
				cfg.State.Backend = opts.backend
			}
			if cmd.Flags().Changed("state-path") {
				cfg.State.Path = opts.path
			}
			backend, err := cfg.Backend()
			if err != nil {
				return err
			}
			if backend == persist.BackendNone {
				return apperrors.New(apperrors.ErrCodeConfigBackend, "no state backend configured", nil).
					WithSuggestion("pass --state-backend sqlite|bolt|file or set state.backend in dirpoll.yaml")
			}
			return runState(cmd, backend, cfg.StatePath(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "state-backend", "", "State backend: sqlite, bolt, file")
	cmd.Flags().StringVar(&opts.path, "state-path", "", "State file path")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&opts.entries, "entries", "e", false, "List every entry")

	return cmd
}

func runState(cmd *cobra.Command, backend persist.Backend, path string, opts *stateOptions) error {
	store, err := persist.Open(backend, path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	state, err := store.Read(cmd.Context())
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		dirs := make([]stateDirectory, 0, len(keys))
		for _, k := range keys {
			d := stateDirectory{Key: k, Count: len(state[k])}
			if opts.entries {
				d.Entries = state[k]
			}
			dirs = append(dirs, d)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dirs)
	}

	if len(keys) == 0 {
		_, err := fmt.Fprintf(out, "No saved state in %s\n", path)
		return err
	}
	_, _ = fmt.Fprintf(out, "State: %s (%s)\n", path, backend)
	for _, k := range keys {
		_, _ = fmt.Fprintf(out, "\n%s  %d entries\n", k, len(state[k]))
		if !opts.entries {
			continue
		}
		for _, e := range state[k] {
			kind := "file"
			if e.IsDir {
				kind = "dir"
			}
			_, _ = fmt.Fprintf(out, "  %-4s %s  %s\n", kind,
				time.UnixMilli(e.LastModified).UTC().Format(time.RFC3339), e.Name)
		}
	}
	return nil
}
