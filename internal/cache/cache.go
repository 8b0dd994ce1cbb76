package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is the TTL store shared by every source chain. Get returns the value
// and its age on a live hit; an expired entry is indistinguishable from one
// that was never set, so callers treat both as "must refetch". Clear empties
// the store unconditionally (user-initiated force refresh). Stats is for
// diagnostics only and never drives cache behavior.
type Cache interface {
	Get(ctx context.Context, key string) (value any, age time.Duration, ok bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Stats describes the live contents of the cache.
type Stats struct {
	Entries         int       `json:"entries"`
	OldestCreatedAt time.Time `json:"oldestCreatedAt"`
	NewestCreatedAt time.Time `json:"newestCreatedAt"`
}

// cacheEntry stores one cached payload with creation and expiry timestamps.
// Entries are overwritten whole on Set, never partially updated.
type cacheEntry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
}

// InMemoryCache implements Cache with a mutex-guarded map. Expired entries are
// evicted lazily on access; there is no background sweep.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

// NewInMemoryCache creates an empty in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

// Get retrieves the cached value and its age if present and not expired.
// Returns ok=false on a miss or for a logically expired entry, which is also
// removed from the map.
func (c *InMemoryCache) Get(ctx context.Context, key string) (any, time.Duration, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, 0, false, nil
	}

	now := c.now()
	if !now.Before(entry.expiresAt) {
		delete(c.data, key)
		return nil, 0, false, nil
	}

	return entry.value, now.Sub(entry.createdAt), true, nil
}

// Set stores value under key with an absolute expiry of now + ttl, overwriting
// any existing entry. Concurrent sets for the same key leave the last writer's
// value.
func (c *InMemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.data[key] = cacheEntry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Clear unconditionally empties the store.
func (c *InMemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]cacheEntry)
	return nil
}

// Stats returns the count of live entries and the oldest/newest creation
// timestamps. Expired-but-unevicted entries are excluded.
func (c *InMemoryCache) Stats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Stats
	now := c.now()
	for _, entry := range c.data {
		if !now.Before(entry.expiresAt) {
			continue
		}
		s.Entries++
		if s.OldestCreatedAt.IsZero() || entry.createdAt.Before(s.OldestCreatedAt) {
			s.OldestCreatedAt = entry.createdAt
		}
		if entry.createdAt.After(s.NewestCreatedAt) {
			s.NewestCreatedAt = entry.createdAt
		}
	}
	return s, nil
}
