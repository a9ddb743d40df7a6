package cache

import (
	"context"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v2"
)

type memoryEntry struct {
	value    []byte
	storedAt time.Time
}

type memoryCache struct {
	ttl      time.Duration
	capacity int
	entries  *xsync.MapOf[string, memoryEntry]

	generations *xsync.MapOf[string, *xsync.Counter]

	now func() time.Time
}

// NewMemoryCache keeps entries in process. A non-positive capacity means
// unbounded, otherwise the oldest entry is evicted when full.
func NewMemoryCache(ttl time.Duration, capacity int) *memoryCache {
	return &memoryCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  xsync.NewMapOf[memoryEntry](),
		now:      time.Now,

		generations: xsync.NewMapOf[*xsync.Counter](),
	}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	entry, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.entries.Delete(key)
		return nil, false
	}

	return entry.value, true
}

func (c *memoryCache) Put(_ context.Context, key string, value []byte) {
	now := c.now()
	if c.capacity > 0 {
		if _, exists := c.entries.Load(key); !exists && c.entries.Size() >= c.capacity {
			c.evict(now)
		}
	}

	c.entries.Store(key, memoryEntry{value: value, storedAt: now})
}

func (c *memoryCache) Invalidate(_ context.Context, prefix string) {
	counter, _ := c.generations.LoadOrStore(prefix, xsync.NewCounter())
	counter.Inc()

	c.entries.Range(func(key string, _ memoryEntry) bool {
		if strings.HasPrefix(key, prefix) {
			c.entries.Delete(key)
		}
		return true
	})
}

func (c *memoryCache) Generation(_ context.Context, prefix string) (int64, bool) {
	counter, ok := c.generations.Load(prefix)
	if !ok {
		return 0, true
	}

	return counter.Value(), true
}

// evict drops expired entries, or the oldest one if none has expired.
func (c *memoryCache) evict(now time.Time) {
	oldestKey := ""
	var oldest time.Time
	expired := false

	c.entries.Range(func(key string, entry memoryEntry) bool {
		if now.Sub(entry.storedAt) >= c.ttl {
			c.entries.Delete(key)
			expired = true
			return true
		}

		if oldestKey == "" || entry.storedAt.Before(oldest) {
			oldestKey, oldest = key, entry.storedAt
		}
		return true
	})

	if !expired && oldestKey != "" {
		c.entries.Delete(oldestKey)
	}
}
