package testutil

import (
	"fmt"
	"sync"
	"time"
)

// TermStart is the instant FixedClock starts at: the first lecture of a fall term.
var TermStart = time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

// StubClock is a manually driven av.Clock.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock at TermStart.
func FixedClock() *StubClock {
	return NewStubClock(TermStart)
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward, e.g. past a session TTL.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator hands out "<prefix>-1", "<prefix>-2", ... The default
// prefix is "id".
type StubIDGenerator struct {
	Prefix string

	mu   sync.Mutex
	next int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{Prefix: "id"}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%d", g.Prefix, g.next)
}
