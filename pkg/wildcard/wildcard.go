// Package wildcard compiles simple glob patterns ("*" as the only
// metacharacter) into anchored-substring regular expressions, with an
// optional separator class so "*" can be restricted to stop at a
// delimiter (used by pkg/pkgindex to keep "name@repo" patterns from
// letting a wildcard in one half bleed into the other).
package wildcard

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher is a compiled wildcard pattern.
type Matcher struct {
	re *regexp.Regexp
}

// Compile compiles pattern p into a Matcher. When sep is non-empty,
// each "*" expands to "one or more characters not in sep"; otherwise it
// expands to "one or more of any character".
func Compile(p string, sep string) (*Matcher, error) {
	parts := strings.Split(p, "*")
	segments := make([]string, len(parts))
	for i, part := range parts {
		segments[i] = regexp.QuoteMeta(part)
	}

	star := ".+"
	if sep != "" {
		star = "[^" + regexp.QuoteMeta(sep) + "]+"
	}

	pattern := strings.Join(segments, star)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("wildcard: compile %q: %w", p, err)
	}
	return &Matcher{re: re}, nil
}

// MustCompile is like Compile but panics on error. Useful for patterns
// known to be valid at compile time (e.g. literals with no "*").
func MustCompile(p string, sep string) *Matcher {
	m, err := Compile(p, sep)
	if err != nil {
		panic(err)
	}
	return m
}

// Matches reports whether s contains a substring matching the compiled
// pattern. Callers anchor the pattern themselves (e.g. "name@*").
func (m *Matcher) Matches(s string) bool {
	return m.re.MatchString(s)
}
