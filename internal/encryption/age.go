package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"filippo.io/age"

	"gv-go/internal/config"
	"gv-go/internal/gv"
)

// ageHeader starts every age file, including a passphrase-protected key.
const ageHeader = "age-encryption.org/v1"

// ErrPassphrase is returned when the private key is passphrase-protected and
// no passphrase, or the wrong one, was supplied.
var ErrPassphrase = errors.New("private key passphrase required")

// PassphraseFunc supplies the passphrase protecting the private key.
type PassphraseFunc func() (string, error)

// AgeOption customizes an AgeEncryptor.
type AgeOption func(*AgeEncryptor)

// WithPassphrase sets where the key passphrase comes from. Setup uses it to
// protect a new key; Decrypt calls it at most once per encryptor, and only
// when the key on disk is protected.
func WithPassphrase(fn PassphraseFunc) AgeOption {
	return func(e *AgeEncryptor) { e.passphrase = fn }
}

// AgeEncryptor implements gv.Encryptor using filippo.io/age with X25519 keys.
// The public key is stored in plaintext. The private key is either wrapped
// with age's scrypt passphrase encryption, or, when no passphrase is given,
// written with owner-only permissions like an SSH key. An unprotected key
// only guards the session file against accidental disclosure (backups,
// copies); anyone who can read the key directory can decrypt it.
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string
	passphrase     PassphraseFunc

	mu       sync.Mutex
	identity age.Identity
}

var _ gv.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates a new AgeEncryptor from configuration.
func NewAgeEncryptor(cfg config.EncryptionConfig, opts ...AgeOption) *AgeEncryptor {
	e := &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
	for _, fn := range opts {
		fn(e)
	}
	return e
}

// Setup generates a new X25519 key pair and writes both halves. The private
// key is passphrase-protected if a non-empty passphrase is supplied.
func (e *AgeEncryptor) Setup() error {
	e.mu.Lock()
	e.identity = nil
	e.mu.Unlock()

	var passphrase string
	if e.passphrase != nil {
		p, err := e.passphrase()
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		passphrase = p
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(e.publicKeyPath), 0700); err != nil {
		return fmt.Errorf("creating public key directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(e.privateKeyPath), 0700); err != nil {
		return fmt.Errorf("creating private key directory: %w", err)
	}

	if err := os.WriteFile(e.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	if passphrase == "" {
		if err := os.WriteFile(e.privateKeyPath, []byte(identity.String()+"\n"), 0600); err != nil {
			return fmt.Errorf("writing private key: %w", err)
		}
		return nil
	}

	privFile, err := os.OpenFile(e.privateKeyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating private key file: %w", err)
	}
	defer privFile.Close()

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	w, err := age.Encrypt(privFile, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing encrypted private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted private key: %w", err)
	}
	return nil
}

// IsProtected reports whether the private key on disk is passphrase-protected.
func (e *AgeEncryptor) IsProtected() bool {
	f, err := os.Open(e.privateKeyPath)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, len(ageHeader))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return string(head) == ageHeader
}

// Encrypt reads plaintext from r and writes age-encrypted ciphertext to w
// using the stored public key.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.loadRecipient()
	if err != nil {
		return fmt.Errorf("loading public key: %w", err)
	}

	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}

	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}

	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}

	return nil
}

// Decrypt reads age-encrypted ciphertext from r and writes plaintext to w.
func (e *AgeEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	identity, err := e.loadIdentity()
	if err != nil {
		return fmt.Errorf("loading private key: %w", err)
	}

	decReader, err := age.Decrypt(r, identity)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}

	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}

	return nil
}

// IsConfigured returns true if both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	if _, err := os.Stat(e.publicKeyPath); err != nil {
		return false
	}
	if _, err := os.Stat(e.privateKeyPath); err != nil {
		return false
	}
	return true
}

// loadRecipient reads the public key from disk and parses it.
func (e *AgeEncryptor) loadRecipient() (age.Recipient, error) {
	pubData, err := os.ReadFile(e.publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(pubData))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}

	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients found in public key file")
	}

	return recipients[0], nil
}

// loadIdentity reads the private key from disk, unlocking it first if it is
// passphrase-protected. The parsed identity is kept for later calls.
func (e *AgeEncryptor) loadIdentity() (age.Identity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.identity != nil {
		return e.identity, nil
	}

	privData, err := os.ReadFile(e.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}

	if bytes.HasPrefix(privData, []byte(ageHeader)) {
		privData, err = e.unlock(privData)
		if err != nil {
			return nil, err
		}
	}

	identities, err := age.ParseIdentities(bytes.NewReader(privData))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in private key")
	}

	e.identity = identities[0]
	return e.identity, nil
}

func (e *AgeEncryptor) unlock(sealed []byte) ([]byte, error) {
	if e.passphrase == nil {
		return nil, ErrPassphrase
	}
	passphrase, err := e.passphrase()
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	if passphrase == "" {
		return nil, ErrPassphrase
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(sealed), identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPassphrase, err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}
	return plain, nil
}
