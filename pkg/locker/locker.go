// Package locker coordinates periodic jobs across service instances.
package locker

import (
	"context"
	"sync"
	"time"
)

// DistributedLocker hands out named, expiring locks.
// Implementations must be safe for concurrent use.
type DistributedLocker interface {
	// Acquire takes the lock named key for ttl. It returns false, without
	// an error, when the lock is held elsewhere.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees key if this instance holds it and is a no-op otherwise.
	Release(ctx context.Context, key string) error
}

// LocalLocker is an in-process DistributedLocker for single-instance
// deployments that run without Redis.
type LocalLocker struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Acquire implements DistributedLocker.
func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, held := l.expires[key]; held && now.Before(until) {
		return false, nil
	}
	l.expires[key] = now.Add(ttl)
	return true, nil
}

// Release implements DistributedLocker.
func (l *LocalLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.expires, key)
	l.mu.Unlock()
	return nil
}
