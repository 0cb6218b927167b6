package database

import (
	"fmt"
	"testing"
	"time"

	"gv-go/internal/gv"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if _, err := db.db.Exec(Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func testSnapshot(key string, ids ...int64) *gv.Snapshot {
	s := &gv.Snapshot{
		Key:     key,
		Cursor:  gv.Cursor{CurrentPage: 1, LastPage: 3, PerPage: len(ids), Total: 3 * len(ids)},
		SavedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	for _, id := range ids {
		s.Entities = append(s.Entities, gv.SnapshotEntity{
			ID:      id,
			Payload: []byte(fmt.Sprintf(`{"id":%d}`, id)),
		})
	}
	return s
}

func TestSQLiteDatabase_LoadSnapshot(t *testing.T) {
	t.Run("returns nil when snapshot not found", func(t *testing.T) {
		db := newTestDB(t)

		got, err := db.LoadSnapshot("donations?page=1")
		if err != nil {
			t.Fatalf("LoadSnapshot() error = %v", err)
		}
		if got != nil {
			t.Errorf("LoadSnapshot() = %+v, want nil", got)
		}
	})

	t.Run("round-trips a saved snapshot in order", func(t *testing.T) {
		db := newTestDB(t)
		want := testSnapshot("donations?page=1", 30, 10, 20)

		if err := db.SaveSnapshot(want); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}

		got, err := db.LoadSnapshot(want.Key)
		if err != nil {
			t.Fatalf("LoadSnapshot() error = %v", err)
		}
		if got == nil {
			t.Fatal("LoadSnapshot() = nil, want snapshot")
		}
		if got.Cursor != want.Cursor {
			t.Errorf("Cursor = %+v, want %+v", got.Cursor, want.Cursor)
		}
		if !got.SavedAt.Equal(want.SavedAt) {
			t.Errorf("SavedAt = %v, want %v", got.SavedAt, want.SavedAt)
		}
		if len(got.Entities) != 3 {
			t.Fatalf("len(Entities) = %d, want 3", len(got.Entities))
		}
		for i, id := range []int64{30, 10, 20} {
			if got.Entities[i].ID != id {
				t.Errorf("Entities[%d].ID = %d, want %d", i, got.Entities[i].ID, id)
			}
			if string(got.Entities[i].Payload) != fmt.Sprintf(`{"id":%d}`, id) {
				t.Errorf("Entities[%d].Payload = %s", i, got.Entities[i].Payload)
			}
		}
	})

	t.Run("empty snapshot", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.SaveSnapshot(testSnapshot("posts?page=1")); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}

		got, err := db.LoadSnapshot("posts?page=1")
		if err != nil {
			t.Fatalf("LoadSnapshot() error = %v", err)
		}
		if got == nil || len(got.Entities) != 0 {
			t.Errorf("LoadSnapshot() = %+v, want empty snapshot", got)
		}
	})
}

func TestSQLiteDatabase_SaveSnapshot(t *testing.T) {
	t.Run("replaces previous snapshot", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.SaveSnapshot(testSnapshot("feed", 1, 2, 3)); err != nil {
			t.Fatalf("first SaveSnapshot() error = %v", err)
		}
		if err := db.SaveSnapshot(testSnapshot("feed", 4)); err != nil {
			t.Fatalf("second SaveSnapshot() error = %v", err)
		}

		got, err := db.LoadSnapshot("feed")
		if err != nil {
			t.Fatalf("LoadSnapshot() error = %v", err)
		}
		if len(got.Entities) != 1 || got.Entities[0].ID != 4 {
			t.Errorf("Entities = %+v, want only id 4", got.Entities)
		}

		var n int
		if err := db.db.QueryRow(`SELECT COUNT(*) FROM snapshot_entities`).Scan(&n); err != nil {
			t.Fatalf("count query error = %v", err)
		}
		if n != 1 {
			t.Errorf("snapshot_entities rows = %d, want 1", n)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.SaveSnapshot(testSnapshot("donations?page=1", 1)); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}
		if err := db.SaveSnapshot(testSnapshot("donations?page=2", 2)); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}

		keys, err := db.SnapshotKeys()
		if err != nil {
			t.Fatalf("SnapshotKeys() error = %v", err)
		}
		if len(keys) != 2 || keys[0] != "donations?page=1" || keys[1] != "donations?page=2" {
			t.Errorf("SnapshotKeys() = %v", keys)
		}
	})

	t.Run("rejects empty key", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.SaveSnapshot(testSnapshot("", 1)); err == nil {
			t.Error("SaveSnapshot() expected error for empty key")
		}
	})
}

func TestSQLiteDatabase_DeleteSnapshot(t *testing.T) {
	db := newTestDB(t)

	if err := db.SaveSnapshot(testSnapshot("feed", 1, 2)); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if err := db.DeleteSnapshot("feed"); err != nil {
		t.Fatalf("DeleteSnapshot() error = %v", err)
	}

	got, err := db.LoadSnapshot("feed")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if got != nil {
		t.Errorf("LoadSnapshot() after delete = %+v, want nil", got)
	}

	var n int
	if err := db.db.QueryRow(`SELECT COUNT(*) FROM snapshot_entities`).Scan(&n); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if n != 0 {
		t.Errorf("snapshot_entities rows = %d, want 0 (cascade)", n)
	}

	if err := db.DeleteSnapshot("missing"); err != nil {
		t.Errorf("DeleteSnapshot() of missing key error = %v", err)
	}
}

func TestSQLiteDatabase_Clear(t *testing.T) {
	db := newTestDB(t)

	for _, key := range []string{"feed", "donations?page=1", "notifications?page=1"} {
		if err := db.SaveSnapshot(testSnapshot(key, 1)); err != nil {
			t.Fatalf("SaveSnapshot(%q) error = %v", key, err)
		}
	}

	if err := db.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	keys, err := db.SnapshotKeys()
	if err != nil {
		t.Fatalf("SnapshotKeys() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("SnapshotKeys() after Clear = %v, want none", keys)
	}
}

func TestSchema_MatchesMigrations(t *testing.T) {
	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	want := newTestDB(t)
	for _, table := range []string{"snapshots", "snapshot_entities"} {
		var migrated, embedded string
		q := `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`
		if err := db.db.QueryRow(q, table).Scan(&migrated); err != nil {
			t.Fatalf("migrated table %s: %v", table, err)
		}
		if err := want.db.QueryRow(q, table).Scan(&embedded); err != nil {
			t.Fatalf("embedded table %s: %v", table, err)
		}
		if migrated != embedded {
			t.Errorf("table %s differs between migrations and schema.sql:\n%s\n---\n%s", table, migrated, embedded)
		}
	}
}
