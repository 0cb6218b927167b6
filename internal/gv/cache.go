package gv

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// Snapshot is the last successful list of a resource, persisted so a later
// failure can fall back to it.
type Snapshot struct {
	Key      string
	Cursor   Cursor
	Entities []SnapshotEntity
	SavedAt  time.Time
}

// SnapshotEntity is one encoded entity of a snapshot, in list order.
type SnapshotEntity struct {
	ID      int64
	Payload []byte
}

// Cache persists snapshots between process runs.
type Cache interface {
	// SaveSnapshot replaces the snapshot stored under s.Key.
	SaveSnapshot(s *Snapshot) error

	// LoadSnapshot returns the snapshot for key, or nil and no error if none exists.
	LoadSnapshot(key string) (*Snapshot, error)

	// DeleteSnapshot removes the snapshot for key.
	DeleteSnapshot(key string) error

	// Clear removes every snapshot.
	Clear() error
}

// SnapshotKey names the snapshot of resource listed with q.
func SnapshotKey(resource string, q ListQuery) string {
	v := url.Values{}
	page := q.Page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, q.Filters[k])
	}
	return resource + "?" + v.Encode()
}

func encodeSnapshot[T Entity](key string, cursor Cursor, items []T, savedAt time.Time) (*Snapshot, error) {
	s := &Snapshot{Key: key, Cursor: cursor, SavedAt: savedAt, Entities: make([]SnapshotEntity, 0, len(items))}
	for _, e := range items {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encoding entity %d: %w", e.EntityID(), err)
		}
		s.Entities = append(s.Entities, SnapshotEntity{ID: e.EntityID(), Payload: b})
	}
	return s, nil
}

func decodeSnapshot[T Entity](s *Snapshot) ([]T, error) {
	items := make([]T, 0, len(s.Entities))
	for _, se := range s.Entities {
		var e T
		if err := json.Unmarshal(se.Payload, &e); err != nil {
			return nil, fmt.Errorf("decoding cached entity %d: %w", se.ID, err)
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("cached entity %d: %w", se.ID, err)
		}
		items = append(items, e)
	}
	return items, nil
}
