package gv

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// PageFetcher retrieves one page of a collection.
type PageFetcher[T Entity] func(ctx context.Context, page int) (Page[T], error)

// FeedUpdate describes the outcome of a page load.
type FeedUpdate struct {
	Added     int
	Exhausted bool
	Cursor    Cursor
}

// Feed is an incremental "load more" view over a paginated collection.
// Pages are merged into the store de-duplicated by id in first-seen order.
// Concurrent loads of the same kind share one in-flight request.
type Feed[T Entity] struct {
	store   *Store[T]
	fetch   PageFetcher[T]
	overlay func(T) T
	logger  Logger

	mu         sync.Mutex
	cursor     Cursor
	loaded     bool
	generation uint64

	group singleflight.Group
}

// NewFeed creates a feed that fills store with pages from fetch.
func NewFeed[T Entity](store *Store[T], fetch PageFetcher[T], logger Logger) *Feed[T] {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Feed[T]{store: store, fetch: fetch, logger: logger}
}

// SetOverlay installs fn to rewrite fetched entities before they reach the
// store. The optimistic layer uses it to keep pending local state.
func (f *Feed[T]) SetOverlay(fn func(T) T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overlay = fn
}

// Store returns the backing store.
func (f *Feed[T]) Store() *Store[T] { return f.store }

// Cursor returns the current position and whether a page has been loaded.
func (f *Feed[T]) Cursor() (Cursor, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor, f.loaded
}

// LoadFirstPage resets the cursor to page 1 and replaces the local list.
func (f *Feed[T]) LoadFirstPage(ctx context.Context) (FeedUpdate, error) {
	v, err, _ := f.group.Do("first", func() (any, error) {
		return f.loadFirst(ctx)
	})
	if err != nil {
		return FeedUpdate{}, err
	}
	return v.(FeedUpdate), nil
}

func (f *Feed[T]) loadFirst(ctx context.Context) (FeedUpdate, error) {
	page, err := f.fetchPage(ctx, 1)
	if err != nil {
		return FeedUpdate{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.applyOverlay(page.Items)
	if err := f.store.ReplaceAll(items); err != nil {
		return FeedUpdate{}, err
	}
	f.cursor = page.Cursor
	f.loaded = true
	f.generation++

	f.logger.Debug("feed first page loaded", "count", len(items), "last_page", page.Cursor.LastPage)
	return FeedUpdate{Added: f.store.Len(), Exhausted: f.cursor.Exhausted(), Cursor: f.cursor}, nil
}

// LoadNextPage fetches the page after the cursor and appends its new
// entities. When the cursor is on the last page it returns immediately with
// Exhausted set and changes nothing. Before any page is loaded it behaves
// as LoadFirstPage.
func (f *Feed[T]) LoadNextPage(ctx context.Context) (FeedUpdate, error) {
	f.mu.Lock()
	loaded, cursor := f.loaded, f.cursor
	f.mu.Unlock()

	if !loaded {
		return f.LoadFirstPage(ctx)
	}
	if cursor.Exhausted() {
		return FeedUpdate{Exhausted: true, Cursor: cursor}, nil
	}

	v, err, _ := f.group.Do("next", func() (any, error) {
		return f.loadNext(ctx)
	})
	if err != nil {
		return FeedUpdate{}, err
	}
	return v.(FeedUpdate), nil
}

func (f *Feed[T]) loadNext(ctx context.Context) (FeedUpdate, error) {
	f.mu.Lock()
	gen := f.generation
	cursor := f.cursor
	f.mu.Unlock()

	if cursor.Exhausted() {
		return FeedUpdate{Exhausted: true, Cursor: cursor}, nil
	}

	next := cursor.CurrentPage + 1
	page, err := f.fetchPage(ctx, next)
	if err != nil {
		return FeedUpdate{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.generation != gen {
		// The list was reset while this page was in flight.
		f.logger.Debug("feed page discarded after reset", "page", next)
		return FeedUpdate{Exhausted: f.cursor.Exhausted(), Cursor: f.cursor}, nil
	}

	added, err := f.store.Append(f.applyOverlay(page.Items))
	if err != nil {
		return FeedUpdate{}, err
	}
	f.cursor = page.Cursor

	f.logger.Debug("feed page appended", "page", page.Cursor.CurrentPage, "added", added)
	return FeedUpdate{Added: added, Exhausted: f.cursor.Exhausted(), Cursor: f.cursor}, nil
}

func (f *Feed[T]) fetchPage(ctx context.Context, n int) (Page[T], error) {
	page, err := f.fetch(ctx, n)
	if err != nil {
		return Page[T]{}, fmt.Errorf("fetching page %d: %w", n, err)
	}
	if err := page.Cursor.Validate(); err != nil {
		return Page[T]{}, Malformed(err)
	}
	return page, nil
}

// applyOverlay must be called with mu held.
func (f *Feed[T]) applyOverlay(items []T) []T {
	if f.overlay == nil {
		return items
	}
	out := make([]T, len(items))
	for i, e := range items {
		out[i] = f.overlay(e)
	}
	return out
}

// Inject inserts an entity created elsewhere at the head of the feed. It is
// skipped if the id is already present and leaves the cursor untouched.
func (f *Feed[T]) Inject(e T) (bool, error) {
	return f.store.Prepend(e)
}

// Restore reinstates a previously saved feed, e.g. from the snapshot cache.
func (f *Feed[T]) Restore(cursor Cursor, items []T) error {
	if err := cursor.Validate(); err != nil {
		return Malformed(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.store.ReplaceAll(items); err != nil {
		return err
	}
	f.cursor = cursor
	f.loaded = true
	f.generation++
	return nil
}

// Reset forgets the cursor and empties the store.
func (f *Feed[T]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.store.Clear()
	f.cursor = Cursor{}
	f.loaded = false
	f.generation++
}
