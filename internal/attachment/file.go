package attachment

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gv-go/internal/config"
	"gv-go/internal/gv"
)

// DefaultMaxSize caps a single upload when the config sets no limit.
const DefaultMaxSize int64 = 5 << 20

// File is a local file sent as one multipart form field.
type File struct {
	field string
	path  string
	size  int64
}

var _ gv.Attachment = (*File)(nil)

func (f *File) FieldName() string { return f.field }

func (f *File) FileName() string { return filepath.Base(f.path) }

// Path returns the absolute path of the file.
func (f *File) Path() string { return f.path }

// Size returns the file size observed when it was resolved.
func (f *File) Size() int64 { return f.size }

// Open opens the file for reading. Each call returns a fresh reader.
func (f *File) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// Resolver turns user-supplied paths into attachments, rejecting anything
// that is not a regular, allowed, reasonably sized file.
type Resolver struct {
	allow   *AllowMatcher
	maxSize int64
}

// NewResolver creates a Resolver from the attachments config.
func NewResolver(cfg config.AttachmentsConfig) *Resolver {
	patterns := cfg.Allow
	if len(patterns) == 0 {
		patterns = DefaultAllowPatterns
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Resolver{allow: NewAllowMatcher(patterns), maxSize: maxSize}
}

// Resolve validates rawPath and returns it as an attachment sent under field.
func (r *Resolver) Resolve(field, rawPath string) (*File, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	// Lstat so a symlink is reported as one instead of followed.
	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return nil, fmt.Errorf("symlinks not supported: %s", absPath)
	case mode.IsDir():
		return nil, fmt.Errorf("cannot attach a directory: %s", absPath)
	case mode&os.ModeDevice != 0:
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	case mode&os.ModeNamedPipe != 0:
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	case mode&os.ModeSocket != 0:
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	if !r.allow.Match(absPath) {
		return nil, fmt.Errorf("file type not allowed: %s (allowed: %v)", filepath.Base(absPath), r.allow.Patterns())
	}
	if info.Size() > r.maxSize {
		return nil, fmt.Errorf("file too large: %s is %d bytes, limit is %d", filepath.Base(absPath), info.Size(), r.maxSize)
	}

	return &File{field: field, path: absPath, size: info.Size()}, nil
}
