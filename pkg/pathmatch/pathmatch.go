// Package pathmatch matches repository-relative paths against contract
// patterns. A pattern containing wildcard characters is compiled as a glob;
// anything else matches exactly or as a directory prefix. Both the allowed-paths
// and forbidden-outputs constraints share this one matching contract.
package pathmatch

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Normalize converts a path to the canonical repo-relative form used for
// matching: forward slashes only, without leading "./" or "/" segments.
func Normalize(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	return strings.TrimLeft(p, "./")
}

func isGlobPattern(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

type rule struct {
	raw string
	// compiled is non-nil for wildcard patterns; prefix rules leave it nil
	// and match against dir instead.
	compiled glob.Glob
	dir      string
}

// Matcher holds a compiled pattern list.
type Matcher struct {
	rules []rule
}

// New compiles the given patterns. Wildcard patterns ("*", "?", "[") compile
// as globs where "*" crosses directory separators; all other patterns match
// a path exactly or as a directory prefix.
func New(patterns []string) (*Matcher, error) {
	m := &Matcher{rules: make([]rule, 0, len(patterns))}
	for _, pattern := range patterns {
		norm := Normalize(pattern)
		if isGlobPattern(norm) {
			g, err := glob.Compile(norm)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
			m.rules = append(m.rules, rule{raw: pattern, compiled: g})
			continue
		}
		m.rules = append(m.rules, rule{raw: pattern, dir: strings.TrimRight(norm, "/")})
	}
	return m, nil
}

// Empty reports whether the matcher has no patterns.
func (m *Matcher) Empty() bool {
	return len(m.rules) == 0
}

// Matches reports whether the path matches at least one pattern.
func (m *Matcher) Matches(path string) bool {
	p := Normalize(path)
	for _, r := range m.rules {
		if r.compiled != nil {
			if r.compiled.Match(p) {
				return true
			}
			continue
		}
		if p == r.dir || strings.HasPrefix(p, r.dir+"/") {
			return true
		}
	}
	return false
}

// Outside returns the subset of paths that match no pattern, preserving
// input order. Used for allowed-paths evaluation, where every changed path
// must fall inside the pattern list.
func (m *Matcher) Outside(paths []string) []string {
	var bad []string
	for _, p := range paths {
		if !m.Matches(p) {
			bad = append(bad, p)
		}
	}
	return bad
}

// Hits returns the normalized, sorted-input subset of paths that match at
// least one pattern. Used for forbidden-outputs evaluation.
func (m *Matcher) Hits(paths []string) []string {
	var hit []string
	for _, p := range paths {
		if m.Matches(p) {
			hit = append(hit, Normalize(p))
		}
	}
	return hit
}
