package vow

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// #region cache

// EmbeddingCache memoizes rule embeddings. Once a key holds a vector it is
// never recomputed; concurrent misses on one key share a single computation.
type EmbeddingCache struct {
	mu       sync.RWMutex
	vectors  map[string][]float32
	inflight singleflight.Group
}

// NewEmbeddingCache creates an empty cache.
func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{vectors: make(map[string][]float32)}
}

// Lookup returns the cached vector for key without blocking on computation.
func (c *EmbeddingCache) Lookup(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vectors[key]
	return v, ok
}

// Get returns the cached vector for key, computing it once on a miss.
// A failed computation is not cached.
func (c *EmbeddingCache) Get(ctx context.Context, key string, compute func(context.Context) ([]float32, error)) ([]float32, error) {
	if v, ok := c.Lookup(key); ok {
		return v, nil
	}
	result, err, _ := c.inflight.Do(key, func() (interface{}, error) {
		// A caller that lost the race may arrive after the winner stored.
		if v, ok := c.Lookup(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.vectors[key] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

// Len returns the number of cached vectors.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

// #endregion cache
