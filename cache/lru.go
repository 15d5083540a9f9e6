package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is used when a non-positive size is requested.
const DefaultSize = 512

// LRU is a bounded get-or-create cache. Builders run under the write lock, so
// a value for a key is built at most once while it stays resident.
type LRU[K comparable, V any] struct {
	cache *lru.Cache[K, V]
	mu    sync.RWMutex
}

func NewLRU[K comparable, V any](size int) *LRU[K, V] {
	if size <= 0 {
		size = DefaultSize
	}
	c, _ := lru.New[K, V](size) // only fails on size <= 0
	return &LRU[K, V]{cache: c}
}

// NewLRUWithEvict is NewLRU with a callback run for every evicted or purged entry.
func NewLRUWithEvict[K comparable, V any](size int, onEvict func(K, V)) *LRU[K, V] {
	if size <= 0 {
		size = DefaultSize
	}
	c, _ := lru.NewWithEvict[K, V](size, onEvict)
	return &LRU[K, V]{cache: c}
}

func (s *LRU[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Get(key)
}

func (s *LRU[K, V]) Set(key K, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(key, v)
}

// GetOrCreate returns the cached value for key, building and caching it on a miss.
// Build errors are returned and nothing is cached.
func (s *LRU[K, V]) GetOrCreate(key K, build func() (V, error)) (V, error) {
	// Fast path: try to get from cache with read lock
	s.mu.RLock()
	if v, ok := s.cache.Get(key); ok {
		s.mu.RUnlock()
		return v, nil
	}
	s.mu.RUnlock()

	// Slow path: build and cache with write lock
	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	v, err := build()
	if err != nil {
		var zero V
		return zero, err
	}
	s.cache.Add(key, v)
	return v, nil
}

func (s *LRU[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Len()
}

// Purge drops every entry, running the eviction callback if one was configured.
func (s *LRU[K, V]) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}
