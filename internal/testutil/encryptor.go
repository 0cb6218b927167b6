package testutil

import (
	"gv-go/internal/encryption"
	"gv-go/internal/gv"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() gv.Encryptor {
	return encryption.NewTestEncryptor()
}
