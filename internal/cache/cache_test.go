package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache() (*InMemoryCache, *fakeClock) {
	c := NewInMemoryCache()
	clock := newFakeClock()
	c.now = clock.Now
	return c, clock
}

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves
// them with a zero age immediately after the write.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()

	if err := c.Set(ctx, "k", 42, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, age, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got != 42 {
		t.Errorf("Get() = %v, want 42", got)
	}
	if age != 0 {
		t.Errorf("Get() age = %v, want 0", age)
	}
}

// TestInMemoryCache_Get_Miss verifies that a never-set key is a miss.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()

	_, _, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_TTLExpiry verifies set-then-expire semantics: a 1-minute
// entry is a hit before 60s and a miss at 61s, indistinguishable from a key
// that was never set.
func TestInMemoryCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()

	if err := c.Set(ctx, "a", 42, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(59 * time.Second)
	got, age, ok, _ := c.Get(ctx, "a")
	if !ok {
		t.Fatal("Get() before expiry ok = false, want true")
	}
	if got != 42 {
		t.Errorf("Get() = %v, want 42", got)
	}
	if age != 59*time.Second {
		t.Errorf("Get() age = %v, want 59s", age)
	}

	clock.Advance(2 * time.Second)
	_, _, ok, _ = c.Get(ctx, "a")
	if ok {
		t.Error("Get() after expiry ok = true, want miss")
	}

	// Expired entry was evicted; it stays a miss.
	_, _, ok, _ = c.Get(ctx, "a")
	if ok {
		t.Error("expired entry should remain a miss")
	}
}

// TestInMemoryCache_ExpiryBoundary verifies now >= expiresAt is a miss, not
// a hit: an entry is gone exactly when its TTL elapses.
func TestInMemoryCache_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()

	_ = c.Set(ctx, "edge", "v", time.Minute)
	clock.Advance(time.Minute)

	_, _, ok, _ := c.Get(ctx, "edge")
	if ok {
		t.Error("Get() at exact expiry ok = true, want miss")
	}
}

// TestInMemoryCache_Overwrite verifies Set replaces the whole entry including
// its expiry.
func TestInMemoryCache_Overwrite(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()

	_ = c.Set(ctx, "k", "old", time.Minute)
	clock.Advance(50 * time.Second)
	_ = c.Set(ctx, "k", "new", time.Minute)
	clock.Advance(30 * time.Second)

	got, age, ok, _ := c.Get(ctx, "k")
	if !ok {
		t.Fatal("Get() ok = false, want true after overwrite refreshed TTL")
	}
	if got != "new" {
		t.Errorf("Get() = %v, want \"new\"", got)
	}
	if age != 30*time.Second {
		t.Errorf("Get() age = %v, want 30s (age of the overwrite)", age)
	}
}

// TestInMemoryCache_Clear verifies Clear unconditionally empties the store.
func TestInMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()

	_ = c.Set(ctx, "a", 1, time.Hour)
	_ = c.Set(ctx, "b", 2, time.Hour)

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	for _, k := range []string{"a", "b"} {
		if _, _, ok, _ := c.Get(ctx, k); ok {
			t.Errorf("Get(%q) ok = true after Clear, want miss", k)
		}
	}
}

// TestInMemoryCache_Stats verifies live-entry counting and oldest/newest
// creation timestamps, excluding expired entries.
func TestInMemoryCache_Stats(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()

	t0 := clock.Now()
	_ = c.Set(ctx, "short", 1, 10*time.Second)
	clock.Advance(30 * time.Second)
	t1 := clock.Now()
	_ = c.Set(ctx, "long", 2, time.Hour)

	s, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if s.Entries != 1 {
		t.Errorf("Entries = %d, want 1 (expired entry excluded)", s.Entries)
	}
	if !s.OldestCreatedAt.Equal(t1) || !s.NewestCreatedAt.Equal(t1) {
		t.Errorf("Stats timestamps = %v/%v, want both %v", s.OldestCreatedAt, s.NewestCreatedAt, t1)
	}

	// Re-set the short key live alongside the long one.
	_ = c.Set(ctx, "short", 1, time.Hour)
	clock.Advance(time.Second)
	s, _ = c.Stats(ctx)
	if s.Entries != 2 {
		t.Errorf("Entries = %d, want 2", s.Entries)
	}
	if s.OldestCreatedAt.Equal(s.NewestCreatedAt) {
		t.Error("oldest and newest should differ for entries created at different times")
	}
	_ = t0
}

// TestInMemoryCache_ConcurrentSet verifies concurrent writers leave the cache
// consistent (last writer wins, no torn entries).
func TestInMemoryCache_ConcurrentSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Set(ctx, "shared", i, time.Minute)
		}()
	}
	wg.Wait()

	got, _, ok, err := c.Get(ctx, "shared")
	if err != nil || !ok {
		t.Fatalf("Get() = ok=%v err=%v, want hit", ok, err)
	}
	if v, isInt := got.(int); !isInt || v < 0 || v >= 50 {
		t.Errorf("Get() = %v, want one of the written values", got)
	}
}
