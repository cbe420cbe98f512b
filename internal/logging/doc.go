// Package logging configures the process-wide slog logger for dirpoll.
//
// Console output goes to stderr: a human-readable text format when stderr is
// a terminal, JSON otherwise. With a log file configured, JSON records are
// also written to a size-rotated file (default ~/.dirpoll/logs/dirpoll.log).
package logging
