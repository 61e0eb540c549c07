package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bookwise/backend/internal/domain"
)

// RedisCache is a BusyCache backed by Redis, for deployments where several
// instances share one busy-time view. TTL is enforced natively by Redis.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) redisKey(key Key) string {
	return fmt.Sprintf("busy_times:%s:%s", key.UserID, key.ConnectionID)
}

func (c *RedisCache) Get(ctx context.Context, key Key) ([]domain.BusyInterval, bool, error) {
	raw, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var intervals []domain.BusyInterval
	if err := json.Unmarshal(raw, &intervals); err != nil {
		// Treat a corrupt entry as a miss; the next sync rewrites it.
		_ = c.rdb.Del(ctx, c.redisKey(key)).Err()
		return nil, false, nil
	}
	return intervals, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key Key, intervals []domain.BusyInterval, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultBusyTTL
	}
	raw, err := json.Marshal(intervals)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.redisKey(key), raw, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, key Key) error {
	return c.rdb.Del(ctx, c.redisKey(key)).Err()
}

func (c *RedisCache) InvalidateUser(ctx context.Context, userID string) error {
	pattern := fmt.Sprintf("busy_times:%s:*", userID)
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
