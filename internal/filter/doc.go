// Package filter provides entry filters for the directory poller.
//
// Filters decide which entries of a listing take part in change detection.
// Rejected entries are invisible to the poller: they never produce events
// and never show up in initial content or persisted state.
//
// Available filters:
//   - Regex: accepts names fully matching a regular expression
//   - Patterns: gitignore-style exclusion patterns (*.tmp, !keep.tmp, cache/)
//   - FilesOnly: rejects directories
//   - And, Not: combinators
//
// Usage:
//
//	f, err := filter.Patterns("*.tmp", "!keep.tmp", ".git/")
//	if err != nil {
//	    return err
//	}
//	p, err := poller.New(poller.Options{Directories: dirs, Filter: f})
package filter
