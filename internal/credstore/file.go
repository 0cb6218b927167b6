package credstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gv-go/internal/gv"
)

// FileStore keeps the session in a single encrypted file. The JSON-encoded
// credentials are passed through the configured gv.Encryptor before they
// touch disk, and the file is only readable by its owner.
type FileStore struct {
	path      string
	encryptor gv.Encryptor
}

// NewFileStore creates a file-backed credential store at path.
func NewFileStore(path string, encryptor gv.Encryptor) (*FileStore, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("file credential store requires an encryptor")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{path: path, encryptor: encryptor}, nil
}

// Load decrypts and decodes the session file. A missing file is not an error.
func (s *FileStore) Load() (*gv.Credentials, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	var plain bytes.Buffer
	if err := s.encryptor.Decrypt(f, &plain); err != nil {
		return nil, fmt.Errorf("decrypting session: %w", err)
	}

	var c gv.Credentials
	if err := json.Unmarshal(plain.Bytes(), &c); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &c, nil
}

// Save encrypts and writes the session using an atomic write (temp file + rename).
func (s *FileStore) Save(c *gv.Credentials) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(s.path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to restrict temp file: %w", err)
	}

	if err := s.encryptor.Encrypt(bytes.NewReader(data), tmpFile); err != nil {
		tmpFile.Close()
		return fmt.Errorf("encrypting session: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Clear deletes the session file. A missing file is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Compile-time check that FileStore implements gv.CredentialStore interface
var _ gv.CredentialStore = (*FileStore)(nil)
