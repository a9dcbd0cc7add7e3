package locker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLocker implements DistributedLocker with Redsync (Redlock).
// Keys are stored under a namespace so several services can share Redis.
type RedisLocker struct {
	rs        *redsync.Redsync
	namespace string
	logger    *zap.Logger
	mutexes   map[string]*redsync.Mutex
	mu        sync.Mutex
}

// NewRedisLocker creates a Redis-based locker. namespace prefixes every key.
func NewRedisLocker(client *redis.Client, namespace string, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		rs:        redsync.New(goredis.NewPool(client)),
		namespace: namespace,
		logger:    logger,
		mutexes:   make(map[string]*redsync.Mutex),
	}
}

func (r *RedisLocker) name(key string) string {
	if r.namespace == "" {
		return key
	}
	return r.namespace + ":" + key
}

// Acquire makes a single, non-blocking attempt to take key.
func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	name := r.name(key)
	mutex := r.rs.NewMutex(
		name,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		// Contention surfaces as ErrFailed or as a wrapped "lock already taken".
		if errors.Is(err, redsync.ErrFailed) || strings.Contains(err.Error(), "lock already taken") {
			r.logger.Debug("lock already held by another instance",
				zap.String("key", name),
			)
			return false, nil
		}
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	r.mu.Lock()
	r.mutexes[key] = mutex
	r.mu.Unlock()

	r.logger.Debug("lock acquired",
		zap.String("key", name),
		zap.Duration("ttl", ttl),
	)

	return true, nil
}

// Release frees key if this instance holds it. Redsync checks the lock
// token, so an expired or foreign lock is left alone.
func (r *RedisLocker) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	mutex, exists := r.mutexes[key]
	if exists {
		delete(r.mutexes, key)
	}
	r.mu.Unlock()

	if !exists {
		return nil
	}

	ok, err := mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", r.name(key), err)
	}

	r.logger.Debug("lock release",
		zap.String("key", r.name(key)),
		zap.Bool("owned", ok),
	)

	return nil
}
