package service

import (
	"context"
	"sync"
)

// memCountCache is an in-process domain.CountCache.
type memCountCache struct {
	mu          sync.Mutex
	counts      map[string]map[string]int64
	getErr      error
	invalidated []string
}

func newMemCountCache() *memCountCache {
	return &memCountCache{counts: make(map[string]map[string]int64)}
}

func (c *memCountCache) GetCount(_ context.Context, collection, key string) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return 0, false, c.getErr
	}
	n, ok := c.counts[collection][key]
	return n, ok, nil
}

func (c *memCountCache) SetCount(_ context.Context, collection, key string, n int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counts[collection] == nil {
		c.counts[collection] = make(map[string]int64)
	}
	c.counts[collection][key] = n
	return nil
}

func (c *memCountCache) Invalidate(_ context.Context, collection string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.counts, collection)
	c.invalidated = append(c.invalidated, collection)
	return nil
}
