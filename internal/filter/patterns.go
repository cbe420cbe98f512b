package filter

import (
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/poller"
)

// DefaultDecisionCacheSize bounds the number of remembered decisions.
const DefaultDecisionCacheSize = 4096

// PatternFilter excludes entries matching gitignore-style patterns.
// It is safe for concurrent use.
type PatternFilter struct {
	rules []rule
	cache *lru.Cache[decisionKey, bool]
}

type rule struct {
	pattern  string
	regex    *regexp.Regexp
	negation bool
	dirOnly  bool
}

type decisionKey struct {
	name  string
	isDir bool
}

// Patterns builds a filter from exclusion patterns. An entry is accepted
// unless the last pattern matching it excludes it; "!pattern" re-includes.
// Blank lines and "#" comments are ignored, so the lines of an ignore file
// can be passed as is.
func Patterns(patterns ...string) (*PatternFilter, error) {
	cache, err := lru.New[decisionKey, bool](DefaultDecisionCacheSize)
	if err != nil {
		return nil, apperrors.InternalError("failed to create decision cache", err)
	}
	f := &PatternFilter{cache: cache}
	for _, p := range patterns {
		if err := f.add(p); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *PatternFilter) add(pattern string) error {
	// "\ " at the end keeps a trailing space
	hasEscapedTrailingSpace := strings.HasSuffix(pattern, `\ `)
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || (strings.HasPrefix(pattern, "#") && !strings.HasPrefix(pattern, `\#`)) {
		return nil
	}

	r := rule{pattern: pattern}
	switch {
	case strings.HasPrefix(pattern, `\#`), strings.HasPrefix(pattern, `\!`):
		pattern = pattern[1:]
	case strings.HasPrefix(pattern, "!"):
		r.negation = true
		pattern = pattern[1:]
	}
	if hasEscapedTrailingSpace && strings.HasSuffix(pattern, `\`) {
		pattern = strings.TrimSuffix(pattern, `\`) + " "
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	// Entries are single names, so a root anchor changes nothing.
	pattern = strings.TrimPrefix(pattern, "/")
	if pattern == "" || strings.Contains(strings.ReplaceAll(pattern, "**/", ""), "/") {
		return apperrors.New(apperrors.ErrCodeInvalidPattern,
			fmt.Sprintf("pattern %q cannot match a single entry name", r.pattern), nil)
	}

	re, err := regexp.Compile("^" + patternToRegex(pattern) + "$")
	if err != nil {
		return apperrors.New(apperrors.ErrCodeInvalidPattern,
			fmt.Sprintf("invalid pattern %q", r.pattern), err)
	}
	r.regex = re
	f.rules = append(f.rules, r)
	return nil
}

// Accept implements poller.Filter.
func (f *PatternFilter) Accept(e poller.Entry) bool {
	key := decisionKey{name: e.Name(), isDir: e.IsDir()}
	if accepted, ok := f.cache.Get(key); ok {
		return accepted
	}
	accepted := !f.excluded(key.name, key.isDir)
	f.cache.Add(key, accepted)
	return accepted
}

// Len returns the number of active patterns.
func (f *PatternFilter) Len() int {
	return len(f.rules)
}

func (f *PatternFilter) excluded(name string, isDir bool) bool {
	excluded := false
	for _, r := range f.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if r.regex.MatchString(name) {
			excluded = !r.negation
		}
	}
	return excluded
}

// patternToRegex converts a glob to a regex body.
func patternToRegex(pattern string) string {
	var result strings.Builder

	i := 0
	for i < len(pattern) {
		c := pattern[i]

		switch c {
		case '*':
			if strings.HasPrefix(pattern[i:], "**/") {
				// **/ matches zero directories for a bare name
				i += 3
				continue
			}
			result.WriteString("[^/]*")
			if strings.HasPrefix(pattern[i:], "**") {
				i += 2
				continue
			}
			i++

		case '?':
			result.WriteString("[^/]")
			i++

		case '[':
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				class := pattern[i+1 : j]
				if strings.HasPrefix(class, "!") {
					class = "^" + class[1:]
				}
				result.WriteString("[" + class + "]")
				i = j + 1
			} else {
				result.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}

		case '\\':
			if i+1 < len(pattern) {
				writeLiteral(&result, pattern[i+1])
				i += 2
			} else {
				writeLiteral(&result, c)
				i++
			}

		default:
			writeLiteral(&result, c)
			i++
		}
	}

	return result.String()
}

// writeLiteral writes one byte of the pattern. Bytes of multi-byte UTF-8
// sequences pass through untouched.
func writeLiteral(b *strings.Builder, c byte) {
	if strings.IndexByte(`\.+*?()|[]{}^$`, c) >= 0 {
		b.WriteByte('\\')
	}
	b.WriteByte(c)
}
