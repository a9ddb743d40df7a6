package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMemoryCache(capacity int) (*memoryCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(30*time.Second, capacity)
	c.now = clock.Now
	return c, clock
}

func Test_memoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemoryCache(0)

	c.Put(ctx, "lottery:scai:current", []byte("v1"))

	clock.Advance(29 * time.Second)
	v, ok := c.Get(ctx, "lottery:scai:current")
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	clock.Advance(time.Second)
	_, ok = c.Get(ctx, "lottery:scai:current")
	require.False(t, ok)
}

func Test_memoryCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(0)

	c.Put(ctx, "lottery:scai:current", []byte("a"))
	c.Put(ctx, "lottery:scai:purchased", []byte("b"))
	c.Put(ctx, "lottery:scai2:current", []byte("c"))

	c.Invalidate(ctx, "lottery:scai:")

	_, ok := c.Get(ctx, "lottery:scai:current")
	require.False(t, ok)
	_, ok = c.Get(ctx, "lottery:scai:purchased")
	require.False(t, ok)
	_, ok = c.Get(ctx, "lottery:scai2:current")
	require.True(t, ok)
}

func Test_memoryCache_Capacity(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemoryCache(2)

	c.Put(ctx, "a", []byte("1"))
	clock.Advance(time.Second)
	c.Put(ctx, "b", []byte("2"))
	clock.Advance(time.Second)

	// Overwriting an existing key never evicts.
	c.Put(ctx, "b", []byte("3"))
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)

	c.Put(ctx, "c", []byte("4"))
	_, ok = c.Get(ctx, "a")
	require.False(t, ok)

	v, ok := c.Get(ctx, "b")
	require.True(t, ok)
	require.Equal(t, []byte("3"), v)
	_, ok = c.Get(ctx, "c")
	require.True(t, ok)
}

func Test_GetObj(t *testing.T) {
	type view struct {
		Count int `json:"count"`
	}

	ctx := context.Background()
	c, _ := newTestMemoryCache(0)

	_, ok := GetObj[view](ctx, c, "k")
	require.False(t, ok)

	PutObj(ctx, c, "k", view{Count: 4})
	got, ok := GetObj[view](ctx, c, "k")
	require.True(t, ok)
	require.Equal(t, 4, got.Count)

	c.Put(ctx, "broken", []byte("{"))
	_, ok = GetObj[view](ctx, c, "broken")
	require.False(t, ok)
}

func Test_memoryCache_Generation(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(0)

	gen, ok := c.Generation(ctx, "lottery:scai:")
	require.True(t, ok)
	require.Equal(t, int64(0), gen)

	c.Invalidate(ctx, "lottery:scai:")
	c.Invalidate(ctx, "lottery:scai:")

	gen, ok = c.Generation(ctx, "lottery:scai:")
	require.True(t, ok)
	require.Equal(t, int64(2), gen)

	gen, _ = c.Generation(ctx, "lottery:other:")
	require.Equal(t, int64(0), gen)
}

// invalidatingCache invalidates prefix right after the first Put, like a
// purchase landing while a view is being stored.
type invalidatingCache struct {
	*memoryCache
	prefix string
	done   bool
}

func (c *invalidatingCache) Put(ctx context.Context, key string, value []byte) {
	c.memoryCache.Put(ctx, key, value)
	if !c.done {
		c.done = true
		c.memoryCache.Invalidate(ctx, c.prefix)
	}
}

func Test_PutObjIfCurrent(t *testing.T) {
	ctx := context.Background()
	prefix := "lottery:scai:"
	key := prefix + "current"

	t.Run("unchanged generation", func(t *testing.T) {
		c, _ := newTestMemoryCache(0)
		gen, _ := c.Generation(ctx, prefix)

		require.True(t, PutObjIfCurrent(ctx, c, prefix, gen, key, 1))
		_, ok := c.Get(ctx, key)
		require.True(t, ok)
	})

	t.Run("invalidated before put", func(t *testing.T) {
		c, _ := newTestMemoryCache(0)
		gen, _ := c.Generation(ctx, prefix)
		c.Invalidate(ctx, prefix)

		require.False(t, PutObjIfCurrent(ctx, c, prefix, gen, key, 1))
		_, ok := c.Get(ctx, key)
		require.False(t, ok)
	})

	t.Run("invalidated during put", func(t *testing.T) {
		mem, _ := newTestMemoryCache(0)
		c := &invalidatingCache{memoryCache: mem, prefix: prefix}
		gen, _ := c.Generation(ctx, prefix)

		require.False(t, PutObjIfCurrent(ctx, c, prefix, gen, key, 1))
		_, ok := c.Get(ctx, key)
		require.False(t, ok)
	})
}
