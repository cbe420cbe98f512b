package filter

import (
	"fmt"
	"regexp"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/poller"
)

// All accepts every entry.
func All() poller.Filter {
	return poller.AcceptAll
}

// FilesOnly rejects directories.
func FilesOnly() poller.Filter {
	return poller.FilterFunc(func(e poller.Entry) bool { return !e.IsDir() })
}

// And accepts an entry only if every filter accepts it. Nil filters are
// skipped; And() accepts everything.
func And(filters ...poller.Filter) poller.Filter {
	return poller.FilterFunc(func(e poller.Entry) bool {
		for _, f := range filters {
			if f != nil && !f.Accept(e) {
				return false
			}
		}
		return true
	})
}

// Not inverts f.
func Not(f poller.Filter) poller.Filter {
	return poller.FilterFunc(func(e poller.Entry) bool { return !f.Accept(e) })
}

// RegexFilter accepts entries whose whole name matches an expression.
type RegexFilter struct {
	re *regexp.Regexp
}

// Regex compiles expr into a filter. The expression must match the entire
// name, so "a.*" accepts "abc" but "b" does not.
func Regex(expr string) (*RegexFilter, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidPattern,
			fmt.Sprintf("invalid file name expression %q", expr), err)
	}
	return &RegexFilter{re: re}, nil
}

// Accept implements poller.Filter.
func (f *RegexFilter) Accept(e poller.Entry) bool {
	return f.re.MatchString(e.Name())
}

func (f *RegexFilter) String() string {
	return f.re.String()
}
