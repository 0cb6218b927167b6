package credstore

import (
	"fmt"

	"gv-go/internal/config"
	"gv-go/internal/gv"
)

// NewCredentialStoreFromConfig creates a CredentialStore based on the session config type.
func NewCredentialStoreFromConfig(cfg config.SessionConfig, encryptor gv.Encryptor) (gv.CredentialStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "file", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file session store requires path to be set")
		}
		return NewFileStore(cfg.Path, encryptor)
	default:
		return nil, fmt.Errorf("unknown session type: %s", cfg.Type)
	}
}
