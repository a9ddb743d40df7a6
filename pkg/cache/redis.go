package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/scailotto/backend/pkg/xcontext"
	"github.com/scailotto/backend/pkg/xredis"
)

const scanBatch = 100

type redisCache struct {
	client xredis.Client
	ttl    time.Duration
}

// NewRedisCache shares cached views between replicas. Expiry is delegated to
// redis.
func NewRedisCache(client xredis.Client, ttl time.Duration) *redisCache {
	return &redisCache{client: client, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, xredis.ErrNil) {
			xcontext.Logger(ctx).Warnf("Cannot get %s from redis: %v", key, err)
		}
		return nil, false
	}

	return []byte(value), true
}

func (c *redisCache) Put(ctx context.Context, key string, value []byte) {
	if err := c.client.SetEx(ctx, key, value, c.ttl); err != nil {
		xcontext.Logger(ctx).Warnf("Cannot set %s to redis: %v", key, err)
	}
}

func (c *redisCache) Invalidate(ctx context.Context, prefix string) {
	if _, err := c.client.Incr(ctx, generationKey(prefix)); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot bump generation of %s: %v", prefix, err)
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, prefix+"*", cursor, scanBatch)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot scan redis keys of %s: %v", prefix, err)
			return
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...); err != nil {
				xcontext.Logger(ctx).Errorf("Cannot delete redis keys of %s: %v", prefix, err)
			}
		}

		if next == 0 {
			return
		}
		cursor = next
	}
}

func (c *redisCache) Generation(ctx context.Context, prefix string) (int64, bool) {
	value, err := c.client.Get(ctx, generationKey(prefix))
	if err != nil {
		if errors.Is(err, xredis.ErrNil) {
			return 0, true
		}

		xcontext.Logger(ctx).Warnf("Cannot get generation of %s from redis: %v", prefix, err)
		return 0, false
	}

	gen, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Invalid generation of %s: %v", prefix, err)
		return 0, false
	}

	return gen, true
}

// generationKey lives outside of prefix so that Invalidate never deletes it.
func generationKey(prefix string) string {
	return "gen:" + prefix
}
