package encryption

import (
	"fmt"

	"gv-go/internal/config"
	"gv-go/internal/gv"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// opts apply to the age encryptor only.
func NewEncryptorFromConfig(cfg config.EncryptionConfig, opts ...AgeOption) (gv.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg, opts...), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
