package attachment

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gv-go/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return p
}

func TestResolver_Resolve(t *testing.T) {
	dir := t.TempDir()
	png := writeFile(t, dir, "poster.png", "png-bytes")
	txt := writeFile(t, dir, "notes.txt", "text")
	big := writeFile(t, dir, "big.pdf", strings.Repeat("x", 64))
	link := filepath.Join(dir, "link.png")
	if err := os.Symlink(png, link); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}

	r := NewResolver(config.AttachmentsConfig{MaxSize: 32})

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "regular allowed file", path: png},
		{name: "disallowed extension", path: txt, wantErr: "not allowed"},
		{name: "too large", path: big, wantErr: "too large"},
		{name: "symlink", path: link, wantErr: "symlinks"},
		{name: "directory", path: dir, wantErr: "directory"},
		{name: "missing", path: filepath.Join(dir, "nope.png"), wantErr: "stat path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := r.Resolve("image", tt.path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want error containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if f.FieldName() != "image" {
				t.Errorf("FieldName() = %q, want %q", f.FieldName(), "image")
			}
			if f.FileName() != "poster.png" {
				t.Errorf("FileName() = %q, want %q", f.FileName(), "poster.png")
			}
			if f.Size() != int64(len("png-bytes")) {
				t.Errorf("Size() = %d, want %d", f.Size(), len("png-bytes"))
			}
		})
	}
}

func TestFile_OpenTwice(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "doc.pdf", "pdf-content")

	f, err := NewResolver(config.AttachmentsConfig{}).Resolve("document", p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if string(data) != "pdf-content" {
			t.Errorf("Open() #%d read %q, want %q", i+1, data, "pdf-content")
		}
	}
}

func TestNewResolver_Defaults(t *testing.T) {
	r := NewResolver(config.AttachmentsConfig{})
	if r.maxSize != DefaultMaxSize {
		t.Errorf("maxSize = %d, want %d", r.maxSize, DefaultMaxSize)
	}
	if got := r.allow.Patterns(); len(got) != len(DefaultAllowPatterns) {
		t.Errorf("Patterns() = %v, want %v", got, DefaultAllowPatterns)
	}
}
