package cache

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/scailotto/backend/pkg/xcontext"
)

// Cache holds serialized views for a bounded time. Misses are never errors,
// a broken backend behaves like an empty cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, value []byte)

	// Invalidate drops every key starting with prefix and bumps the
	// generation of prefix before doing so.
	Invalidate(ctx context.Context, prefix string)

	// Generation returns how many times prefix has been invalidated. ok is
	// false when the backend cannot tell, values must not be cached then.
	Generation(ctx context.Context, prefix string) (gen int64, ok bool)
}

func GetObj[T any](ctx context.Context, c Cache, key string) (*T, bool) {
	b, ok := c.Get(ctx, key)
	if !ok {
		return nil, false
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		xcontext.Logger(ctx).Warnf("Cannot decode cached value of %s: %v", key, err)
		return nil, false
	}

	return &v, true
}

func PutObj(ctx context.Context, c Cache, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Cannot encode value of %s: %v", key, err)
		return
	}

	c.Put(ctx, key, b)
}

// PutObjIfCurrent stores v under key unless prefix was invalidated after gen
// was read. A value written concurrently with an invalidation is dropped
// again, so that a view loaded before a write never outlives it.
func PutObjIfCurrent(ctx context.Context, c Cache, prefix string, gen int64, key string, v any) bool {
	if current, ok := c.Generation(ctx, prefix); !ok || current != gen {
		return false
	}

	PutObj(ctx, c, key, v)

	if current, ok := c.Generation(ctx, prefix); !ok || current != gen {
		c.Invalidate(ctx, key)
		return false
	}

	return true
}
