package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLRUEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestTTLExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute, WithClock(clock.Now))
	c.Set("k", "v")

	clock.Advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected k before expiry")
	}
	clock.Advance(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected k to expire")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry not removed on access")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := NewLRUCache[int](10, 0, WithClock(clock.Now))
	c.Set("k", 1)
	clock.Advance(1000 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("zero ttl entry expired")
	}
}

func TestTakeIsExclusive(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("k", 7)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, ok := c.Take("k"); ok && v == 7 {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one Take to win, got %d", wins.Load())
	}
	if _, ok := c.Get("k"); ok {
		t.Fatalf("key survived Take")
	}
}

func TestCleanExpiredAndManager(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := NewLRUCache[int](10, time.Minute, WithClock(clock.Now))
	c.Set("a", 1)
	c.Set("b", 2)
	clock.Advance(30 * time.Second)
	c.Set("c", 3)
	clock.Advance(45 * time.Second)

	m := NewManager(nil)
	m.Register("test", c)
	if n := m.Sweep(); n != 2 {
		t.Fatalf("swept %d entries, want 2", n)
	}
	if c.Size() != 1 {
		t.Fatalf("size = %d", c.Size())
	}

	m.StartCleanup(context.Background(), time.Millisecond)
	m.Stop()
	m.Stop() // second stop is a no-op after the goroutine exits
}
