package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gv-go/internal/config"
)

// NewDatabaseFromConfig creates the snapshot cache based on the cache config
// type and migrates it to the latest schema. The cache holds only data that
// can be refetched, so migrating on open is safe.
func NewDatabaseFromConfig(cfg config.CacheConfig) (*SQLiteDatabase, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite cache")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		path = filepath.Join(cfg.DataDir, "cache.db")
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating cache: %w", err)
	}
	return db, nil
}
