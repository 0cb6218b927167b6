package attachment

import (
	"path/filepath"
	"strings"
)

// DefaultAllowPatterns are used when the config names none.
var DefaultAllowPatterns = []string{"*.jpg", "*.jpeg", "*.png", "*.pdf"}

type allowPattern struct {
	pattern   string
	matchPath bool // true = match against the cleaned path; false = basename only
}

// AllowMatcher checks file paths against a set of allow patterns.
// Patterns without '/' match against the file's basename only, case-insensitively.
// Patterns with '/' match against the full cleaned path.
type AllowMatcher struct {
	patterns []allowPattern
}

// NewAllowMatcher creates an AllowMatcher from raw pattern strings.
// Blank entries and entries starting with '#' are skipped.
func NewAllowMatcher(rawPatterns []string) *AllowMatcher {
	var patterns []allowPattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, allowPattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &AllowMatcher{patterns: patterns}
}

// Match reports whether path may be uploaded. A matcher with no patterns
// allows nothing.
func (m *AllowMatcher) Match(path string) bool {
	normalized := filepath.ToSlash(filepath.Clean(path))
	basename := strings.ToLower(filepath.Base(path))

	for _, p := range m.patterns {
		var matched bool
		var err error
		if p.matchPath {
			matched, err = filepath.Match(p.pattern, normalized)
		} else {
			matched, err = filepath.Match(strings.ToLower(p.pattern), basename)
		}
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// Patterns returns the effective patterns in order.
func (m *AllowMatcher) Patterns() []string {
	out := make([]string, len(m.patterns))
	for i, p := range m.patterns {
		out[i] = p.pattern
	}
	return out
}
