// Package lock serializes writes to one store's day across server instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"cashrecon/internal/core"
	"cashrecon/internal/log"
)

// ErrNotObtained is returned when another writer holds the day.
var ErrNotObtained = errors.New("lock not obtained")

// Release gives a held lock back.
type Release func(ctx context.Context) error

// Locker guards the report of a (store, date).
type Locker interface {
	Acquire(ctx context.Context, storeID string, date core.Date) (Release, error)
}

// DayKey is the lock key of a store's day.
func DayKey(storeID string, date core.Date) string {
	return fmt.Sprintf("report:%s:%s", storeID, date.String())
}

// Nop grants every request. Used when no Redis is configured; the storage
// unique constraint and conditional updates still hold.
type Nop struct{}

func (Nop) Acquire(context.Context, string, core.Date) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// RedisLocker obtains per-day locks with bsm/redislock.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	logger *log.Logger
}

func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration, logger *log.Logger) *RedisLocker {
	if logger == nil {
		logger = log.Nop()
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		wait:   2 * time.Second,
		logger: logger.WithComponent(log.ComponentLock),
	}
}

// Acquire retries briefly before giving up with ErrNotObtained.
func (l *RedisLocker) Acquire(ctx context.Context, storeID string, date core.Date) (Release, error) {
	key := DayKey(storeID, date)
	obtainCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lk, err := l.client.Obtain(obtainCtx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), int(l.wait/(100*time.Millisecond))),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		l.logger.WarnContext(ctx, "Could not obtain day lock", "key", key)
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		if err := lk.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.WarnContext(ctx, "Failed to release day lock", "key", key, log.FieldError, err)
			return err
		}
		return nil
	}, nil
}
