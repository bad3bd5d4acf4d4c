package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"cashrecon/internal/log"
)

// RedisCache shares computed results between server instances. Values are
// stored as JSON. Redis errors degrade to cache misses and are logged.
type RedisCache[T any] struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
	logger    *log.Logger
}

var _ Cache[int] = (*RedisCache[int])(nil)

func NewRedisCache[T any](client redis.UniversalClient, namespace string, ttl time.Duration, logger *log.Logger) *RedisCache[T] {
	if logger == nil {
		logger = log.Nop()
	}
	return &RedisCache[T]{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger.WithComponent(log.ComponentCache),
	}
}

func (c *RedisCache[T]) key(k string) string {
	return c.namespace + ":" + k
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Redis cache read failed", "key", key, log.FieldError, err)
		}
		return zero, false
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.WarnContext(ctx, "Dropping undecodable cache entry", "key", key, log.FieldError, err)
		c.Delete(ctx, key)
		return zero, false
	}
	return out, true
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.WarnContext(ctx, "Cache value not encodable", "key", key, log.FieldError, err)
		return
	}
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache write failed", "key", key, log.FieldError, err)
	}
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache delete failed", "key", key, log.FieldError, err)
	}
}

// DeletePrefix scans the namespace for matching keys and deletes them in
// batches.
func (c *RedisCache[T]) DeletePrefix(ctx context.Context, prefix string) int {
	iter := c.client.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	var batch []string
	removed := 0
	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			c.logger.WarnContext(ctx, "Redis cache delete failed", "prefix", prefix, log.FieldError, err)
		}
		removed += int(n)
		batch = batch[:0]
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			flush()
		}
	}
	flush()
	if err := iter.Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache scan failed", "prefix", prefix, log.FieldError, err)
	}
	return removed
}
