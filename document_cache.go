package connpager

import (
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

const (
	// averageDocumentSize converts a byte budget into a number of entries.
	averageDocumentSize = 100_000
	// MaxCachedDocumentSize is the size above which documents are never cached,
	// so large documents cannot exhaust memory.
	MaxCachedDocumentSize = 100_000
	// DefaultCacheBudget is the default byte budget of a DocumentCache.
	DefaultCacheBudget = 50 * 1024 * 1024
)

// DocumentCache is a bounded LRU cache of values computed from documents
// against a Catalog. The whole cache is reset when a different Catalog is
// used, as every cached value was validated against the previous one.
//
// Concurrent computations of the same document are not deduplicated, the
// last one wins.
type DocumentCache[V any] struct {
	mu      sync.Mutex
	catalog *Catalog
	cache   *lru.Cache[uint64, V]
}

// CacheSize converts a byte budget into an entry count, at least 2.
func CacheSize(budgetBytes int) int {
	return max(2, int(math.Ceil(float64(budgetBytes)/averageDocumentSize)))
}

// NewDocumentCache creates a cache sized by CacheSize(budgetBytes).
func NewDocumentCache[V any](budgetBytes int) (*DocumentCache[V], error) {
	cache, err := lru.New[uint64, V](CacheSize(budgetBytes))
	if err != nil {
		return nil, errors.Wrap(err, "cannot create document cache")
	}

	return &DocumentCache[V]{cache: cache}, nil
}

// GetOrCompute returns the value cached for document or computes and caches
// it. Errors of compute are returned as is and never cached, wrap them into V
// to cache them. A value computed against a catalog that was replaced in the
// meantime is returned to its caller but not cached.
func (c *DocumentCache[V]) GetOrCompute(catalog *Catalog, document string, compute func(string) (V, error)) (V, error) {
	cacheable := len(document) <= MaxCachedDocumentSize
	key := xxhash.Sum64String(document)

	if v, ok := c.get(catalog, key, cacheable); ok {
		return v, nil
	}

	v, err := compute(document)
	if err != nil {
		return v, err
	}

	if cacheable {
		c.add(catalog, key, v)
	}

	return v, nil
}

// Len returns the number of cached documents.
func (c *DocumentCache[V]) Len() int {
	return c.cache.Len()
}

// Purge drops every cached document.
func (c *DocumentCache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Purge()
}

func (c *DocumentCache[V]) get(catalog *Catalog, key uint64, cacheable bool) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.catalog != catalog {
		c.cache.Purge()
		c.catalog = catalog
	}

	if !cacheable {
		var zero V
		return zero, false
	}

	return c.cache.Get(key)
}

func (c *DocumentCache[V]) add(catalog *Catalog, key uint64, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.catalog != catalog {
		return
	}

	c.cache.Add(key, v)
}
