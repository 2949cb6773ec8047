package scenery

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultDecodedCacheSize = 8
	DefaultEncodedCacheSize = 16
)

// LRU is a bounded, thread-safe cache that evicts the least recently used entry.
// Both Get and Add count as use.
type LRU[V any] struct {
	c *lru.Cache[string, V]
}

// DecodedCache holds decoded bitmaps.
type DecodedCache = LRU[*Image]

// EncodedCache holds data URI payloads.
type EncodedCache = LRU[string]

// NewLRU returns a cache holding at most size entries.
// A size less than 1 falls back to 1.
func NewLRU[V any](size int) *LRU[V] {
	if size < 1 {
		size = 1
	}
	c, err := lru.New[string, V](size)
	if err != nil {
		// lru.New only fails on a non-positive size
		panic(err)
	}
	return &LRU[V]{c: c}
}

func NewDecodedCache(size int) *DecodedCache {
	return NewLRU[*Image](size)
}

func NewEncodedCache(size int) *EncodedCache {
	return NewLRU[string](size)
}

// Get returns the value for key and marks it most recently used.
func (l *LRU[V]) Get(key string) (V, bool) {
	return l.c.Get(key)
}

// Peek returns the value for key without updating its recency.
func (l *LRU[V]) Peek(key string) (V, bool) {
	return l.c.Peek(key)
}

// Contains reports whether key is cached without updating its recency.
func (l *LRU[V]) Contains(key string) bool {
	return l.c.Contains(key)
}

// Add stores v under key. When the cache is full the least recently used entry is evicted.
func (l *LRU[V]) Add(key string, v V) {
	l.c.Add(key, v)
}

// Remove drops key from the cache.
func (l *LRU[V]) Remove(key string) bool {
	return l.c.Remove(key)
}

func (l *LRU[V]) Clear() {
	l.c.Purge()
}

func (l *LRU[V]) Size() int {
	return l.c.Len()
}

// Keys returns the cached keys from oldest to newest.
func (l *LRU[V]) Keys() []string {
	return l.c.Keys()
}

// cacheKey returns the cache key for path at the given dimension bound.
// A bound of 0 yields the untagged legacy key (the raw path).
func cacheKey(path string, bound int) string {
	if bound <= 0 {
		return path
	}
	return path + "@" + strconv.Itoa(bound)
}
