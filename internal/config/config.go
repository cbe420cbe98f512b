package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/persist"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "dirpoll.yaml"

// Config represents the complete dirpoll configuration.
type Config struct {
	Version int `yaml:"version" json:"version"`

	// Interval is a Go duration string such as "500ms" or "2s".
	Interval string `yaml:"interval" json:"interval"`

	Parallel           bool   `yaml:"parallel" json:"parallel"`
	MaxWorkers         int    `yaml:"max_workers" json:"max_workers"`
	InitialContentAdds bool   `yaml:"initial_content_adds" json:"initial_content_adds"`
	Name               string `yaml:"name" json:"name"`

	Directories []string `yaml:"directories" json:"directories"`

	Filter  FilterConfig  `yaml:"filter" json:"filter"`
	State   StateConfig   `yaml:"state" json:"state"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Blob    BlobConfig    `yaml:"blob" json:"blob"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// FilterConfig selects entries taking part in change detection.
type FilterConfig struct {
	// Regex must match the whole entry name.
	Regex string `yaml:"regex" json:"regex"`

	// Patterns are gitignore-style exclusions.
	Patterns []string `yaml:"patterns" json:"patterns"`

	// FilesOnly ignores subdirectories.
	FilesOnly bool `yaml:"files_only" json:"files_only"`
}

// StateConfig configures baseline persistence between runs.
type StateConfig struct {
	// Backend is one of none, sqlite, bolt, file.
	Backend string `yaml:"backend" json:"backend"`

	// Path of the state file. Empty means ~/.dirpoll/state/<default name>.
	Path string `yaml:"path" json:"path"`
}

// LogConfig configures file logging.
type LogConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// BlobConfig throttles listings of bucket directories.
type BlobConfig struct {
	// RPS caps List calls per second across all buckets. 0 means unlimited.
	RPS   float64 `yaml:"rps" json:"rps"`
	Burst int     `yaml:"burst" json:"burst"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address, e.g. ":9090". Empty disables the endpoint.
	Addr string `yaml:"addr" json:"addr"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Version:  1,
		Interval: "1s",
		State: StateConfig{
			Backend: string(persist.BackendNone),
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Blob: BlobConfig{
			Burst: 1,
		},
	}
}

// UserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/dirpoll/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/dirpoll/config.yaml (default)
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dirpoll", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "dirpoll", "config.yaml")
	}
	return filepath.Join(home, ".config", "dirpoll", "config.yaml")
}

// DefaultStateDir returns ~/.dirpoll/state.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".dirpoll", "state")
	}
	return filepath.Join(home, ".dirpoll", "state")
}

// Locate returns the file Load reads for path: path itself when set,
// otherwise ./dirpoll.yaml or the user config file, whichever exists first.
// It returns "" when no file would be read.
func Locate(path string) string {
	if path != "" {
		return path
	}
	for _, candidate := range []string{FileName, UserConfigPath()} {
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

// Load builds the configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. The file chosen by Locate
//  3. Environment variables (DIRPOLL_*)
//
// An explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.New(apperrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %s not found", path), err)
		}
	}
	if file := Locate(path); file != "" {
		if err := cfg.loadYAML(file); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML overlays the file at path onto c. Keys absent from the file keep
// their current values.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies DIRPOLL_* environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("DIRPOLL_INTERVAL"); v != "" {
		c.Interval = v
	}
	if v := os.Getenv("DIRPOLL_PARALLEL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.ConfigError("DIRPOLL_PARALLEL must be a boolean", err).
				WithDetail("value", v)
		}
		c.Parallel = b
	}
	if v := os.Getenv("DIRPOLL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DIRPOLL_STATE_BACKEND"); v != "" {
		c.State.Backend = v
	}
	if v := os.Getenv("DIRPOLL_STATE_PATH"); v != "" {
		c.State.Path = v
	}
	if v := os.Getenv("DIRPOLL_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	return nil
}

// IntervalDuration returns the parsed polling interval.
func (c *Config) IntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(c.Interval))
	if err != nil {
		return 0, apperrors.ConfigError(fmt.Sprintf("interval %q is not a duration", c.Interval), err).
			WithSuggestion(`use a Go duration such as "500ms" or "2s"`)
	}
	return d, nil
}

// Backend returns the parsed state backend.
func (c *Config) Backend() (persist.Backend, error) {
	return persist.ParseBackend(c.State.Backend)
}

// StatePath returns the state file path, defaulting into DefaultStateDir.
func (c *Config) StatePath() string {
	if c.State.Path != "" {
		return c.State.Path
	}
	b, err := c.Backend()
	if err != nil || b == persist.BackendNone {
		return ""
	}
	return filepath.Join(DefaultStateDir(), b.DefaultFileName())
}

// Validate validates the configuration and returns an error if invalid.
// Directories may be empty here; they can also come from the command line.
func (c *Config) Validate() error {
	d, err := c.IntervalDuration()
	if err != nil {
		return err
	}
	if d < 0 {
		return apperrors.ConfigError(fmt.Sprintf("interval must not be negative, got %s", c.Interval), nil)
	}
	if c.MaxWorkers < 0 {
		return apperrors.ConfigError(fmt.Sprintf("max_workers must be non-negative, got %d", c.MaxWorkers), nil)
	}
	if _, err := c.Backend(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return apperrors.ConfigError(
			fmt.Sprintf("log.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Log.Level), nil)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxFiles < 0 {
		return apperrors.ConfigError("log.max_size_mb and log.max_files must be non-negative", nil)
	}
	if c.Blob.RPS < 0 || c.Blob.Burst < 0 {
		return apperrors.ConfigError("blob.rps and blob.burst must be non-negative", nil)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
