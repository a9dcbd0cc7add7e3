// Package redis caches search counts in Redis.
package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CountCache implements the domain.CountCache interface using Redis.
// Keys are <prefix>:count:<collection>:<sha1 of key>.
type CountCache struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	ttl       time.Duration
}

// NewCountCache creates a new Redis count cache. Entries expire after ttl.
func NewCountCache(client *redis.Client, logger *zap.Logger, keyPrefix string, ttl time.Duration) *CountCache {
	return &CountCache{
		client:    client,
		logger:    logger,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// GetCount returns the cached count for key in collection.
func (c *CountCache) GetCount(ctx context.Context, collection, key string) (int64, bool, error) {
	fullKey := c.buildKey(collection, key)

	n, err := c.client.Get(ctx, fullKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		c.logger.Error("count cache get failed",
			zap.String("collection", collection),
			zap.Error(err),
		)

		return 0, false, err
	}

	c.logger.Debug("count cache hit",
		zap.String("collection", collection),
		zap.Int64("count", n),
	)

	return n, true, nil
}

// SetCount stores n for key in collection.
func (c *CountCache) SetCount(ctx context.Context, collection, key string, n int64) error {
	err := c.client.Set(ctx, c.buildKey(collection, key), strconv.FormatInt(n, 10), c.ttl).Err()
	if err != nil {
		c.logger.Error("count cache set failed",
			zap.String("collection", collection),
			zap.Duration("ttl", c.ttl),
			zap.Error(err),
		)

		return err
	}

	return nil
}

// Invalidate removes the cached counts of collection.
// Uses SCAN to find keys, which does not block the server.
func (c *CountCache) Invalidate(ctx context.Context, collection string) error {
	pattern := c.keyPrefix + ":count:" + collection + ":*"

	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()

	keys := []string{}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		c.logger.Error("count cache scan failed",
			zap.String("pattern", pattern),
			zap.Error(err),
		)

		return err
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("count cache invalidate failed",
			zap.String("collection", collection),
			zap.Int("key_count", len(keys)),
			zap.Error(err),
		)

		return err
	}

	c.logger.Debug("count cache invalidated",
		zap.String("collection", collection),
		zap.Int("key_count", len(keys)),
	)

	return nil
}

func (c *CountCache) buildKey(collection, key string) string {
	sum := sha1.Sum([]byte(key))
	return c.keyPrefix + ":count:" + collection + ":" + hex.EncodeToString(sum[:])
}
