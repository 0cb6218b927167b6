package attachment

import (
	"path/filepath"
	"testing"
)

func TestNewAllowMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewAllowMatcher([]string{"", "  ", "# comment", "*.png"})
		if len(m.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(m.patterns))
		}
		if m.patterns[0].pattern != "*.png" {
			t.Errorf("expected *.png, got %s", m.patterns[0].pattern)
		}
	})

	t.Run("classifies path vs basename patterns", func(t *testing.T) {
		t.Parallel()
		m := NewAllowMatcher([]string{"*.png", "/srv/uploads/*"})
		if m.patterns[0].matchPath {
			t.Error("*.png should not be a path pattern")
		}
		if !m.patterns[1].matchPath {
			t.Error("/srv/uploads/* should be a path pattern")
		}
	})
}

func TestAllowMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{name: "extension match", patterns: []string{"*.png"}, path: "/tmp/photo.png", want: true},
		{name: "extension match is case-insensitive", patterns: []string{"*.jpg"}, path: "/tmp/IMG_01.JPG", want: true},
		{name: "different extension", patterns: []string{"*.png"}, path: "/tmp/notes.txt", want: false},
		{name: "one of several", patterns: []string{"*.png", "*.pdf"}, path: "ktp.pdf", want: true},
		{name: "path pattern match", patterns: []string{"/srv/uploads/*"}, path: "/srv/uploads/a.bin", want: true},
		{name: "path pattern miss", patterns: []string{"/srv/uploads/*"}, path: "/home/a.bin", want: false},
		{name: "path is cleaned", patterns: []string{"/srv/uploads/*"}, path: "/srv/x/../uploads/a.bin", want: true},
		{name: "no patterns allows nothing", patterns: nil, path: "a.png", want: false},
		{name: "bad pattern skipped", patterns: []string{"[", "*.png"}, path: "a.png", want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewAllowMatcher(tt.patterns)
			if got := m.Match(filepath.FromSlash(tt.path)); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
