package testutil

import (
	"fmt"
	"sync"
	"time"

	"gv-go/internal/gv"
)

// StubClock is a gv.Clock that only moves when a test moves it.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

var _ gv.Clock = (*StubClock)(nil)

// NewStubClock starts a clock at t.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock starts at 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance ages every snapshot saved so far by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator issues "<Prefix>-1", "<Prefix>-2", ... for request IDs
// and comment client refs. An empty Prefix means "id".
type StubIDGenerator struct {
	Prefix string

	mu   sync.Mutex
	n    int
	last string
}

var _ gv.IDGenerator = (*StubIDGenerator)(nil)

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	prefix := g.Prefix
	if prefix == "" {
		prefix = "id"
	}
	g.n++
	g.last = fmt.Sprintf("%s-%d", prefix, g.n)
	return g.last
}

// Last returns the most recently issued ID, or "" before the first call.
func (g *StubIDGenerator) Last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
