package ai

import (
	"sync"
	"time"
)

// cacheEntry represents a cached embedding vector.
type cacheEntry struct {
	expiry time.Time
	vector []float64
}

// embeddingCache provides thread-safe caching for embedding vectors.
type embeddingCache struct {
	entries map[string]cacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
}

// newEmbeddingCache creates a new cache with the specified TTL.
func newEmbeddingCache(ttl time.Duration) *embeddingCache {
	if ttl == 0 {
		ttl = 15 * time.Minute // Default TTL
	}

	return &embeddingCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// get retrieves a vector from the cache if it exists and hasn't expired.
func (c *embeddingCache) get(key string) ([]float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if time.Now().After(entry.expiry) {
		return nil, false
	}

	return entry.vector, true
}

// set stores a vector in the cache, evicting any expired entries in passing.
func (c *embeddingCache) set(key string, vector []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, k)
		}
	}

	c.entries[key] = cacheEntry{
		vector: vector,
		expiry: now.Add(c.ttl),
	}
}
