package gv_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"gv-go/internal/gv"
)

func post(id int64) gv.Post {
	return gv.Post{ID: id, Content: "post"}
}

// pagedPosts serves ids in pages of perPage, reading the current ids on
// every call so tests can mutate the server between loads.
type pagedPosts struct {
	mu      sync.Mutex
	ids     []int64
	perPage int
	calls   atomic.Int32
	err     error
	block   chan struct{}
}

func (p *pagedPosts) fetch(ctx context.Context, page int) (gv.Page[gv.Post], error) {
	p.calls.Add(1)
	if p.block != nil {
		<-p.block
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return gv.Page[gv.Post]{}, p.err
	}
	last := (len(p.ids) + p.perPage - 1) / p.perPage
	if last < 1 {
		last = 1
	}
	start := (page - 1) * p.perPage
	end := min(start+p.perPage, len(p.ids))
	var items []gv.Post
	if start < len(p.ids) {
		for _, id := range p.ids[start:end] {
			items = append(items, post(id))
		}
	}
	return gv.Page[gv.Post]{
		Items:  items,
		Cursor: gv.Cursor{CurrentPage: page, LastPage: last, PerPage: p.perPage, Total: len(p.ids)},
	}, nil
}

func seq(from, to int64) []int64 {
	var out []int64
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestFeed_Pagination(t *testing.T) {
	ctx := context.Background()
	src := &pagedPosts{ids: seq(1, 25), perPage: 10}
	feed := gv.NewFeed(gv.NewStore[gv.Post](), src.fetch, nil)

	u, err := feed.LoadFirstPage(ctx)
	if err != nil {
		t.Fatalf("LoadFirstPage() error = %v", err)
	}
	if u.Added != 10 || u.Exhausted {
		t.Errorf("LoadFirstPage() = %+v, want 10 added and not exhausted", u)
	}

	for _, wantLen := range []int{20, 25} {
		if _, err := feed.LoadNextPage(ctx); err != nil {
			t.Fatalf("LoadNextPage() error = %v", err)
		}
		if got := feed.Store().Len(); got != wantLen {
			t.Errorf("Len() = %d, want %d", got, wantLen)
		}
	}

	if got, want := feed.Store().IDs(), seq(1, 25); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}

	t.Run("exhausted feed makes no request", func(t *testing.T) {
		before := src.calls.Load()
		u, err := feed.LoadNextPage(ctx)
		if err != nil {
			t.Fatalf("LoadNextPage() error = %v", err)
		}
		if !u.Exhausted || u.Added != 0 {
			t.Errorf("LoadNextPage() = %+v, want exhausted with nothing added", u)
		}
		if src.calls.Load() != before {
			t.Errorf("fetch called after exhaustion")
		}
		if feed.Store().Len() != 25 {
			t.Errorf("Len() = %d, want 25", feed.Store().Len())
		}
	})
}

func TestFeed_DeduplicatesShiftedPages(t *testing.T) {
	ctx := context.Background()
	src := &pagedPosts{ids: seq(1, 20), perPage: 10}
	feed := gv.NewFeed(gv.NewStore[gv.Post](), src.fetch, nil)

	if _, err := feed.LoadFirstPage(ctx); err != nil {
		t.Fatalf("LoadFirstPage() error = %v", err)
	}

	// A new post at the head pushes 10 onto page 2.
	src.mu.Lock()
	src.ids = append([]int64{100}, src.ids...)
	src.mu.Unlock()

	u, err := feed.LoadNextPage(ctx)
	if err != nil {
		t.Fatalf("LoadNextPage() error = %v", err)
	}
	if u.Added != 9 {
		t.Errorf("Added = %d, want 9", u.Added)
	}
	if got, want := feed.Store().IDs(), seq(1, 19); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
}

func TestFeed_FirstPageReplaces(t *testing.T) {
	ctx := context.Background()
	src := &pagedPosts{ids: seq(1, 15), perPage: 10}
	feed := gv.NewFeed(gv.NewStore[gv.Post](), src.fetch, nil)

	feed.LoadFirstPage(ctx)
	feed.LoadNextPage(ctx)

	src.mu.Lock()
	src.ids = seq(50, 52)
	src.mu.Unlock()

	u, err := feed.LoadFirstPage(ctx)
	if err != nil {
		t.Fatalf("LoadFirstPage() error = %v", err)
	}
	if !u.Exhausted {
		t.Error("Exhausted = false, want true")
	}
	if got, want := feed.Store().IDs(), seq(50, 52); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
}

func TestFeed_NextBeforeFirst(t *testing.T) {
	src := &pagedPosts{ids: seq(1, 5), perPage: 10}
	feed := gv.NewFeed(gv.NewStore[gv.Post](), src.fetch, nil)

	if _, err := feed.LoadNextPage(context.Background()); err != nil {
		t.Fatalf("LoadNextPage() error = %v", err)
	}
	cursor, loaded := feed.Cursor()
	if !loaded || cursor.CurrentPage != 1 {
		t.Errorf("Cursor() = %+v, %v, want page 1 loaded", cursor, loaded)
	}
}

func TestFeed_FailureKeepsState(t *testing.T) {
	ctx := context.Background()
	src := &pagedPosts{ids: seq(1, 25), perPage: 10}
	feed := gv.NewFeed(gv.NewStore[gv.Post](), src.fetch, nil)
	feed.LoadFirstPage(ctx)

	src.err = gv.NewError(gv.KindServer, 500, "boom")
	if _, err := feed.LoadNextPage(ctx); !errors.Is(err, gv.ErrServer) {
		t.Fatalf("LoadNextPage() error = %v, want ErrServer", err)
	}

	cursor, _ := feed.Cursor()
	if cursor.CurrentPage != 1 {
		t.Errorf("CurrentPage = %d, want 1", cursor.CurrentPage)
	}
	if feed.Store().Len() != 10 {
		t.Errorf("Len() = %d, want 10", feed.Store().Len())
	}

	src.err = nil
	if _, err := feed.LoadNextPage(ctx); err != nil {
		t.Fatalf("retry LoadNextPage() error = %v", err)
	}
	if feed.Store().Len() != 20 {
		t.Errorf("Len() after retry = %d, want 20", feed.Store().Len())
	}
}

func TestFeed_MalformedCursor(t *testing.T) {
	fetch := func(ctx context.Context, page int) (gv.Page[gv.Post], error) {
		return gv.Page[gv.Post]{Items: []gv.Post{post(1)}, Cursor: gv.Cursor{CurrentPage: 0, LastPage: 1, PerPage: 10}}, nil
	}
	feed := gv.NewFeed(gv.NewStore[gv.Post](), fetch, nil)

	if _, err := feed.LoadFirstPage(context.Background()); !errors.Is(err, gv.ErrMalformedResponse) {
		t.Fatalf("LoadFirstPage() error = %v, want ErrMalformedResponse", err)
	}
	if feed.Store().Len() != 0 {
		t.Errorf("Len() = %d, want 0", feed.Store().Len())
	}
}

func TestFeed_ConcurrentLoadsShareRequest(t *testing.T) {
	ctx := context.Background()
	src := &pagedPosts{ids: seq(1, 30), perPage: 10}
	feed := gv.NewFeed(gv.NewStore[gv.Post](), src.fetch, nil)
	feed.LoadFirstPage(ctx)

	src.block = make(chan struct{})
	before := src.calls.Load()

	var wg sync.WaitGroup
	results := make([]gv.FeedUpdate, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = feed.LoadNextPage(ctx)
		}(i)
	}

	// Wait for the first fetch to start before letting it finish.
	for src.calls.Load() == before {
	}
	close(src.block)
	wg.Wait()

	if got := src.calls.Load() - before; got > 2 {
		t.Errorf("fetch called %d times, want at most 2", got)
	}
	if feed.Store().Len() > 30 {
		t.Errorf("Len() = %d, want at most 30", feed.Store().Len())
	}
	if got, want := feed.Store().IDs()[:20], seq(1, 20); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs()[:20] = %v, want %v", got, want)
	}
}

func TestFeed_Inject(t *testing.T) {
	ctx := context.Background()
	src := &pagedPosts{ids: seq(1, 15), perPage: 10}
	feed := gv.NewFeed(gv.NewStore[gv.Post](), src.fetch, nil)
	feed.LoadFirstPage(ctx)
	before, _ := feed.Cursor()

	inserted, err := feed.Inject(post(99))
	if err != nil || !inserted {
		t.Fatalf("Inject() = %v, %v, want true, nil", inserted, err)
	}
	inserted, _ = feed.Inject(post(3))
	if inserted {
		t.Error("Inject() of an existing id = true, want false")
	}

	if ids := feed.Store().IDs(); ids[0] != 99 || len(ids) != 11 {
		t.Errorf("IDs() = %v, want 99 first and 11 entries", ids)
	}
	if after, _ := feed.Cursor(); after != before {
		t.Errorf("Cursor() changed: %+v -> %+v", before, after)
	}
}

func TestFeed_Overlay(t *testing.T) {
	src := &pagedPosts{ids: seq(1, 3), perPage: 10}
	feed := gv.NewFeed(gv.NewStore[gv.Post](), src.fetch, nil)
	feed.SetOverlay(func(p gv.Post) gv.Post {
		if p.ID == 2 {
			p.UserVote = gv.VoteUp
			p.Upvotes = 1
		}
		return p
	})

	feed.LoadFirstPage(context.Background())
	p, _ := feed.Store().Get(2)
	if p.UserVote != gv.VoteUp || p.Upvotes != 1 {
		t.Errorf("overlay not applied: %v", p.VoteState())
	}
}

func TestFeed_RestoreAndReset(t *testing.T) {
	feed := gv.NewFeed(gv.NewStore[gv.Post](), (&pagedPosts{perPage: 10}).fetch, nil)

	cursor := gv.Cursor{CurrentPage: 2, LastPage: 3, PerPage: 10, Total: 25}
	if err := feed.Restore(cursor, []gv.Post{post(1), post(2)}); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got, loaded := feed.Cursor(); !loaded || got != cursor {
		t.Errorf("Cursor() = %+v, %v, want %+v", got, loaded, cursor)
	}

	feed.Reset()
	if _, loaded := feed.Cursor(); loaded {
		t.Error("Cursor() loaded after Reset")
	}
	if feed.Store().Len() != 0 {
		t.Errorf("Len() = %d, want 0", feed.Store().Len())
	}
}
