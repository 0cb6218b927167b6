package gv

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Source tells whether a listing came from the server or the snapshot cache.
type Source int

const (
	SourceLive Source = iota
	SourceCache
)

func (s Source) String() string {
	if s == SourceCache {
		return "cache"
	}
	return "live"
}

// Listing is the result of a list call. A SourceCache listing is degraded:
// Err holds the remote failure that triggered the fallback and SavedAt the
// time the snapshot was taken.
type Listing[T Entity] struct {
	Items   []T
	Cursor  Cursor
	Source  Source
	SavedAt time.Time
	Err     error
}

// Degraded reports whether the listing was served from cache.
func (l *Listing[T]) Degraded() bool { return l.Source == SourceCache }

// Collection couples a remote resource with its local store and snapshot cache.
type Collection[T Entity] struct {
	name    string
	api     Resource[T]
	store   *Store[T]
	cache   Cache
	clock   Clock
	logger  Logger
	overlay func(T) T
}

// NewCollection creates a collection named name. cache may be nil, in which
// case list failures are never answered from cache.
func NewCollection[T Entity](name string, api Resource[T], store *Store[T], cache Cache, clock Clock, logger Logger) *Collection[T] {
	if store == nil {
		store = NewStore[T]()
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Collection[T]{name: name, api: api, store: store, cache: cache, clock: clock, logger: logger}
}

// Name returns the resource name.
func (c *Collection[T]) Name() string { return c.name }

// Store returns the local store.
func (c *Collection[T]) Store() *Store[T] { return c.store }

// SetOverlay installs fn to rewrite fetched entities before they are stored.
func (c *Collection[T]) SetOverlay(fn func(T) T) { c.overlay = fn }

func (c *Collection[T]) apply(e T) T {
	if c.overlay == nil {
		return e
	}
	return c.overlay(e)
}

// List fetches a page and replaces the store with it. When the remote fails
// with a network error or not-found and a snapshot exists, the snapshot is
// returned flagged as SourceCache. Other failures are returned as is.
func (c *Collection[T]) List(ctx context.Context, q ListQuery) (*Listing[T], error) {
	if q.Page < 1 {
		q.Page = 1
	}
	key := SnapshotKey(c.name, q)

	page, err := c.api.List(ctx, q)
	if err == nil {
		err = page.Cursor.Validate()
		if err != nil {
			err = Malformed(err)
		}
	}
	if err != nil {
		if !IsFallbackable(err) {
			return nil, fmt.Errorf("listing %s: %w", c.name, err)
		}
		listing, cerr := c.fromCache(key, err)
		if cerr != nil {
			c.logger.Warn("cache fallback unavailable", "resource", c.name, "error", cerr)
			return nil, fmt.Errorf("listing %s: %w", c.name, err)
		}
		if listing == nil {
			return nil, fmt.Errorf("listing %s: %w", c.name, err)
		}
		c.logger.Warn("serving cached list", "resource", c.name, "saved_at", listing.SavedAt, "error", err)
		return listing, nil
	}

	items := make([]T, len(page.Items))
	for i, e := range page.Items {
		items[i] = c.apply(e)
	}
	if err := c.store.ReplaceAll(items); err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.name, err)
	}
	c.save(key, page.Cursor, items)

	return &Listing[T]{Items: c.store.All(), Cursor: page.Cursor, Source: SourceLive}, nil
}

func (c *Collection[T]) fromCache(key string, cause error) (*Listing[T], error) {
	if c.cache == nil {
		return nil, nil
	}
	snap, err := c.cache.LoadSnapshot(key)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	if snap == nil {
		return nil, nil
	}
	items, err := decodeSnapshot[T](snap)
	if err != nil {
		return nil, err
	}
	if err := c.store.ReplaceAll(items); err != nil {
		return nil, err
	}
	return &Listing[T]{
		Items:   c.store.All(),
		Cursor:  snap.Cursor,
		Source:  SourceCache,
		SavedAt: snap.SavedAt,
		Err:     cause,
	}, nil
}

func (c *Collection[T]) save(key string, cursor Cursor, items []T) {
	if c.cache == nil {
		return
	}
	snap, err := encodeSnapshot(key, cursor, items, c.clock.Now())
	if err == nil {
		err = c.cache.SaveSnapshot(snap)
	}
	if err != nil {
		c.logger.Warn("saving snapshot failed", "resource", c.name, "error", err)
	}
}

// Get fetches one entity. An absent entity yields (nil, nil) and is dropped
// from the store.
func (c *Collection[T]) Get(ctx context.Context, id int64) (*T, error) {
	e, err := c.api.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting %s %d: %w", c.name, id, err)
	}
	if e == nil {
		c.store.Remove(id)
		return nil, nil
	}
	v := c.apply(*e)
	if err := c.store.Upsert(v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Create sends p and stores the server's entity.
func (c *Collection[T]) Create(ctx context.Context, p Payload) (*T, error) {
	e, err := c.api.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", c.name, err)
	}
	if err := c.store.Upsert(*e); err != nil {
		return nil, err
	}
	c.logger.Info("entity created", "resource", c.name, "id", (*e).EntityID())
	return e, nil
}

// Update sends p for id and stores the server's entity.
func (c *Collection[T]) Update(ctx context.Context, id int64, p Payload) (*T, error) {
	e, err := c.api.Update(ctx, id, p)
	if err != nil {
		return nil, fmt.Errorf("updating %s %d: %w", c.name, id, err)
	}
	v := c.apply(*e)
	if err := c.store.Upsert(v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Delete removes id on the server, then locally. A server not-found still
// removes the local copy.
func (c *Collection[T]) Delete(ctx context.Context, id int64) error {
	err := c.api.Delete(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("deleting %s %d: %w", c.name, id, err)
	}
	c.store.Remove(id)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", c.name, id, err)
	}
	c.logger.Info("entity deleted", "resource", c.name, "id", id)
	return nil
}
