package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gv-go/internal/database/migrations"
	"gv-go/internal/gv"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements gv.Cache using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ gv.Cache = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// SaveSnapshot replaces the snapshot stored under s.Key in one transaction,
// so a reader never observes half of an old and half of a new listing.
func (s *SQLiteDatabase) SaveSnapshot(snap *gv.Snapshot) error {
	if snap.Key == "" {
		return fmt.Errorf("snapshot key is required")
	}
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, snap.Key); err != nil {
		return fmt.Errorf("deleting previous snapshot %q: %w", snap.Key, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (key, current_page, last_page, per_page, total, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.Key, snap.Cursor.CurrentPage, snap.Cursor.LastPage, snap.Cursor.PerPage, snap.Cursor.Total,
		snap.SavedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting snapshot %q: %w", snap.Key, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_entities (snapshot_key, position, entity_id, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing entity insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range snap.Entities {
		if _, err := stmt.ExecContext(ctx, snap.Key, i, e.ID, e.Payload); err != nil {
			return fmt.Errorf("inserting entity %d of snapshot %q: %w", e.ID, snap.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot %q: %w", snap.Key, err)
	}
	return nil
}

// LoadSnapshot returns the snapshot stored under key, or nil if there is none.
func (s *SQLiteDatabase) LoadSnapshot(key string) (*gv.Snapshot, error) {
	ctx := context.Background()

	snap := &gv.Snapshot{Key: key}
	var savedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT current_page, last_page, per_page, total, saved_at FROM snapshots WHERE key = ?`, key).
		Scan(&snap.Cursor.CurrentPage, &snap.Cursor.LastPage, &snap.Cursor.PerPage, &snap.Cursor.Total, &savedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("loading snapshot %q: %w", key, err)
	}
	snap.SavedAt = savedAt.UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, payload FROM snapshot_entities WHERE snapshot_key = ? ORDER BY position`, key)
	if err != nil {
		return nil, fmt.Errorf("loading entities of snapshot %q: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e gv.SnapshotEntity
		if err := rows.Scan(&e.ID, &e.Payload); err != nil {
			return nil, fmt.Errorf("scanning entity of snapshot %q: %w", key, err)
		}
		snap.Entities = append(snap.Entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading entities of snapshot %q: %w", key, err)
	}

	return snap, nil
}

// DeleteSnapshot removes the snapshot stored under key. Entities follow via
// ON DELETE CASCADE.
func (s *SQLiteDatabase) DeleteSnapshot(key string) error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting snapshot %q: %w", key, err)
	}
	return nil
}

// Clear removes every snapshot. Called on logout.
func (s *SQLiteDatabase) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("clearing snapshots: %w", err)
	}
	return nil
}

// SnapshotKeys lists the stored snapshot keys in order.
func (s *SQLiteDatabase) SnapshotKeys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM snapshots ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning snapshot key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Path returns the database file path.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate brings the schema to the latest version.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
