package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/pkg/logger"
)

// RedisLocker is a Locker backed by redislock, for deployments where more
// than one process mutates the same inventory.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// RedisLockerConfig tunes lock lifetime and acquisition retry.
type RedisLockerConfig struct {
	// TTL bounds how long a crashed holder can block others. Must exceed the
	// longest mutating operation.
	TTL time.Duration

	// RetryInterval between acquisition attempts.
	RetryInterval time.Duration
}

// DefaultRedisLockerConfig returns production defaults.
func DefaultRedisLockerConfig() RedisLockerConfig {
	return RedisLockerConfig{
		TTL:           30 * time.Second,
		RetryInterval: 50 * time.Millisecond,
	}
}

// NewRedisLocker creates a Locker on top of an existing redis client.
func NewRedisLocker(rdb redis.UniversalClient, cfg RedisLockerConfig) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    cfg.TTL,
		retry:  redislock.LinearBackoff(cfg.RetryInterval),
	}
}

// Acquire implements Locker. It blocks (bounded by ctx) until the product
// lock is obtained.
func (l *RedisLocker) Acquire(ctx context.Context, productID id.ID) (func(), error) {
	key := fmt.Sprintf("lock:product:%s", productID)

	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(l.retry, 200),
	})
	if err == redislock.ErrNotObtained {
		return nil, fmt.Errorf("obtain product lock %s: %w", productID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain product lock %s: %w", productID, err)
	}

	release := func() {
		// Release on background context so the lock is freed even when the
		// request context was cancelled.
		if err := lock.Release(context.Background()); err != nil && err != redislock.ErrLockNotHeld {
			logger.Warn(ctx, "release product lock failed", "product_id", productID, "error", err)
		}
	}
	return release, nil
}

var _ Locker = (*RedisLocker)(nil)
