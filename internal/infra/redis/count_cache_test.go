package redis

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

func setupCache(t *testing.T) (*CountCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCountCache(client, zap.NewNop(), "docquery", time.Minute), mr
}

func TestCountCache_GetSet(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	_, ok, err := cache.GetCount(ctx, "parcels", "{}")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetCount(ctx, "parcels", "{}", 42))

	n, ok, err := cache.GetCount(ctx, "parcels", "{}")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok, err = cache.GetCount(ctx, "customers", "{}")
	require.NoError(t, err)
	assert.False(t, ok, "counts are per collection")
}

func TestCountCache_Expiry(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetCount(ctx, "parcels", "{}", 1))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.GetCount(ctx, "parcels", "{}")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountCache_Invalidate(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetCount(ctx, "parcels", "{}", 1))
	require.NoError(t, cache.SetCount(ctx, "parcels", `{parcelStatus: "booked"}`, 2))
	require.NoError(t, cache.SetCount(ctx, "customers", "{}", 3))

	require.NoError(t, cache.Invalidate(ctx, "parcels"))

	_, ok, _ := cache.GetCount(ctx, "parcels", "{}")
	assert.False(t, ok)
	n, ok, _ := cache.GetCount(ctx, "customers", "{}")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
	assert.Len(t, mr.Keys(), 1)

	require.NoError(t, cache.Invalidate(ctx, "carryrs"), "nothing to drop")
}

func TestCountCache_ServerDown(t *testing.T) {
	cache, mr := setupCache(t)
	mr.Close()

	_, ok, err := cache.GetCount(context.Background(), "parcels", "{}")
	assert.Error(t, err)
	assert.False(t, ok)
}
