package schema

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache keeps recently compiled in-memory schemas so repeated ad-hoc
// checks against the same sources skip protocompile.
type Cache struct {
	cache  *lru.LRU[string, *Schema]
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats is a point-in-time view of cache usage.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	ItemCount int     `json:"item_count"`
	HitRate   float64 `json:"hit_rate"`
}

// NewCache creates a cache holding up to size schemas for ttl each.
// A zero ttl keeps entries until they are evicted.
func NewCache(size int, ttl time.Duration) *Cache {
	if size < 1 {
		size = 1
	}
	return &Cache{
		cache: lru.NewLRU[string, *Schema](size, nil, ttl),
	}
}

// Compile returns the cached schema for sources or compiles and stores it.
func (c *Cache) Compile(ctx context.Context, sources map[string]string) (*Schema, error) {
	key := SourcesKey(sources)
	if s, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return s, nil
	}
	c.misses.Add(1)

	s, err := Compile(ctx, sources)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, s)
	return s, nil
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.cache.Purge()
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	stats := CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		ItemCount: c.cache.Len(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// SourcesKey hashes sources independently of map iteration order: paths are
// sorted and each entry contributes path, NUL, content, NUL.
func SourcesKey(sources map[string]string) string {
	paths := make([]string, 0, len(sources))
	for path := range sources {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, path := range paths {
		h.Write([]byte(path))
		h.Write([]byte{0})
		h.Write([]byte(sources[path]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
