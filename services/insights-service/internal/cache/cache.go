// Package cache is a short-TTL memo table for report computations. It is an
// explicitly constructed object wired through handlers, not a package-level
// singleton, so tests can build isolated instances with their own clocks.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type entry struct {
	value    any
	expireAt time.Time // zero means never expires
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewWithClock exists for tests that need to control expiry.
func NewWithClock(now func() time.Time) *Cache {
	c := New()
	if now != nil {
		c.now = now
	}
	return c
}

// Key builds a cache key from a prefix and a parameter map. encoding/json
// writes map keys in sorted order, so two parameter maps with the same
// contents always produce the same key regardless of insertion order.
func Key(prefix string, params map[string]any) string {
	if len(params) == 0 {
		return prefix
	}
	b, err := json.Marshal(params)
	if err != nil {
		return prefix
	}
	return prefix + ":" + string(b)
}

func (c *Cache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expireAt.IsZero() && !c.now().Before(e.expireAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) set(key string, value any, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expireAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Invalidate drops a single key, used when ingestion knows a report is stale.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports live entries, counting expired ones until they are purged.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Wrap returns the cached value for key when present and fresh; otherwise it
// invokes produce, stores the result for ttl (forever when ttl <= 0), and
// returns it. A produce error is returned as-is and never cached. Concurrent
// misses on the same key may each invoke produce; last write wins.
func Wrap[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, produce func(context.Context) (T, error)) (T, error) {
	if c != nil {
		if v, ok := c.get(key); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
	}

	value, err := produce(ctx)
	if err != nil {
		return value, err
	}
	if c != nil {
		c.set(key, value, ttl)
	}
	return value, nil
}
