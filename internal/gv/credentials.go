package gv

import (
	"io"
	"time"
)

// Credentials is the persisted session: a bearer token and the account it belongs to.
type Credentials struct {
	Token    string    `json:"token"`
	User     User      `json:"user"`
	IssuedAt time.Time `json:"issued_at"`
}

// CredentialStore persists the session between process runs.
type CredentialStore interface {
	// Load returns the stored credentials, or nil and no error if none are stored.
	Load() (*Credentials, error)

	// Save replaces the stored credentials.
	Save(c *Credentials) error

	// Clear removes the stored credentials. Clearing an empty store is not an error.
	Clear() error
}

// Encryptor protects persisted credentials at rest.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `gv config init`.
	Setup() error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error

	// IsConfigured returns true if the key material exists.
	IsConfigured() bool
}
