package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "envmon:"

// RegisterPayloadType registers a concrete payload type for the memcached
// backend's gob envelope. Call once per cached payload type before the first
// Set (main does this at wiring time). The in-memory backend does not need it.
func RegisterPayloadType(v any) {
	gob.Register(v)
}

// envelope is the wire form of one memcached entry. CreatedAt travels with the
// value so Get can report the entry's age.
type envelope struct {
	Value     any
	CreatedAt time.Time
}

// MemcachedCache implements Cache on memcached. Expiry is enforced by the
// server; Stats is approximated from keys written by this process, which is
// acceptable because stats are diagnostics only.
type MemcachedCache struct {
	client *memcache.Client

	mu      sync.Mutex
	written map[string]writtenEntry
}

type writtenEntry struct {
	createdAt time.Time
	expiresAt time.Time
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client, written: make(map[string]writtenEntry)}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedCache) key(k string) string {
	return keyPrefix + k
}

// Get implements Cache.Get. A server-side expiry shows up as a plain miss.
func (c *MemcachedCache) Get(ctx context.Context, key string) (any, time.Duration, bool, error) {
	if ctx.Err() != nil {
		return nil, 0, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return nil, 0, false, nil
		}
		return nil, 0, false, err
	}
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(item.Value)).Decode(&env); err != nil {
		return nil, 0, false, err
	}
	return env.Value, time.Since(env.CreatedAt), true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	now := time.Now()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{Value: value, CreatedAt: now}); err != nil {
		return err
	}
	expSec := int32(ttl.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 3600 // fallback 1h if invalid
	}
	if err := c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      buf.Bytes(),
		Expiration: expSec,
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.written[key] = writtenEntry{createdAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Clear implements Cache.Clear by flushing all entries on the server.
func (c *MemcachedCache) Clear(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := c.client.FlushAll(); err != nil {
		return err
	}
	c.mu.Lock()
	c.written = make(map[string]writtenEntry)
	c.mu.Unlock()
	return nil
}

// Stats implements Cache.Stats from the local write index. Entries written by
// other processes sharing the server are not counted.
func (c *MemcachedCache) Stats(ctx context.Context) (Stats, error) {
	if ctx.Err() != nil {
		return Stats{}, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Stats
	now := time.Now()
	for key, w := range c.written {
		if !now.Before(w.expiresAt) {
			delete(c.written, key)
			continue
		}
		s.Entries++
		if s.OldestCreatedAt.IsZero() || w.createdAt.Before(s.OldestCreatedAt) {
			s.OldestCreatedAt = w.createdAt
		}
		if w.createdAt.After(s.NewestCreatedAt) {
			s.NewestCreatedAt = w.createdAt
		}
	}
	return s, nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
