package testutil

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"rentcat/internal/rentcat"
)

var (
	_ rentcat.Clock       = (*StubClock)(nil)
	_ rentcat.IDGenerator = (*StubIDGenerator)(nil)
)

// fixtureTime is the instant backup names and stamps in tests are derived
// from: catalog-20250314-092653.json.
var fixtureTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// StubClock only moves when a test moves it.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewStubClock(t time.Time) *StubClock { return &StubClock{now: t} }

// FixedClock starts at 2025-03-14 09:26:53 UTC.
func FixedClock() *StubClock { return NewStubClock(fixtureTime) }

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *StubClock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

func (c *StubClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// StubIDGenerator hands out run-1, run-2, ... in call order.
type StubIDGenerator struct {
	n atomic.Int64
}

func NewStubIDGenerator() *StubIDGenerator { return &StubIDGenerator{} }

func (g *StubIDGenerator) New() string {
	return "run-" + strconv.FormatInt(g.n.Add(1), 10)
}
