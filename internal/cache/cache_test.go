package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGetPut(t *testing.T) {
	c := New[string](time.Hour)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	// Replacement keeps a single entry.
	c.Put("k", "v2")
	got, ok = c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", got)
	assert.Equal(t, 1, c.Len())
}

func TestTTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Hour, WithClock[string](clock.Now))

	c.Put("k", "v")

	// Still present just before the TTL boundary.
	clock.Advance(59 * time.Minute)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	// Gone after it.
	clock.Advance(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestPutRestartsTTL(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Hour, WithClock[string](clock.Now))

	c.Put("k", "v")
	clock.Advance(45 * time.Minute)
	c.Put("k", "v")
	clock.Advance(45 * time.Minute)

	_, ok := c.Get("k")
	assert.True(t, ok, "re-put should restart the TTL")
}

func TestInvalidate(t *testing.T) {
	c := New[string](time.Hour)
	c.Put("a", "1")
	c.Put("b", "2")

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.InvalidateAll()
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Hour, WithClock[string](clock.Now))

	c.Put("old1", "v")
	c.Put("old2", "v")
	clock.Advance(30 * time.Minute)
	c.Put("fresh", "v")
	clock.Advance(31 * time.Minute)

	removed := c.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int](time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Put("shared", n)
				c.Get("shared")
				c.Sweep()
			}
		}(i)
	}
	wg.Wait()

	_, ok := c.Get("shared")
	assert.True(t, ok)
}
