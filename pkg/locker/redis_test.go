package locker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testLockKey = "ingest:lock"

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedisLocker_AcquireAndContention(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	locker1 := NewRedisLocker(client, "docquery", zap.NewNop())
	locker2 := NewRedisLocker(client, "docquery", zap.NewNop())

	acquired, err := locker1.Acquire(ctx, testLockKey, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, _ = locker2.Acquire(ctx, testLockKey, 5*time.Second)
	assert.False(t, acquired, "lock held by another instance")
}

func TestRedisLocker_Namespace(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	acquired, err := NewRedisLocker(client, "docquery", zap.NewNop()).Acquire(ctx, testLockKey, 5*time.Second)
	require.NoError(t, err)
	require.True(t, acquired)
	assert.True(t, mr.Exists("docquery:"+testLockKey))

	acquired, err = NewRedisLocker(client, "other", zap.NewNop()).Acquire(ctx, testLockKey, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired, "namespaces do not collide")
}

func TestRedisLocker_Release(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	owner := NewRedisLocker(client, "docquery", zap.NewNop())
	other := NewRedisLocker(client, "docquery", zap.NewNop())

	acquired, err := owner.Acquire(ctx, testLockKey, 5*time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, other.Release(ctx, testLockKey), "releasing a foreign lock is a no-op")
	acquired, _ = other.Acquire(ctx, testLockKey, 5*time.Second)
	assert.False(t, acquired)

	require.NoError(t, owner.Release(ctx, testLockKey))
	acquired, err = other.Acquire(ctx, testLockKey, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired, "free after release")
}

func TestRedisLocker_Expiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	acquired, err := NewRedisLocker(client, "docquery", zap.NewNop()).Acquire(ctx, testLockKey, 2*time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	mr.FastForward(3 * time.Second)

	acquired, err = NewRedisLocker(client, "docquery", zap.NewNop()).Acquire(ctx, testLockKey, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired, "expired lock can be taken")
}

func TestRedisLocker_ConcurrentAcquisition(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	const numInstances = 5
	results := make(chan bool, numInstances)

	for i := 0; i < numInstances; i++ {
		go func() {
			acquired, _ := NewRedisLocker(client, "docquery", zap.NewNop()).Acquire(ctx, testLockKey, 2*time.Second)
			results <- acquired
		}()
	}

	successCount := 0
	for i := 0; i < numInstances; i++ {
		if <-results {
			successCount++
		}
	}

	assert.Equal(t, 1, successCount, "exactly one instance acquires the lock")
}

func TestRedisLocker_ContextCancellation(t *testing.T) {
	_, client := setupTestRedis(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acquired, err := NewRedisLocker(client, "docquery", zap.NewNop()).Acquire(ctx, testLockKey, 5*time.Second)
	assert.Error(t, err)
	assert.False(t, acquired)
}
