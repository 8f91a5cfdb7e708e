package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a size-bounded cache that evicts the least recently used entry once
// capacity is exceeded. Both Get and Add refresh an entry's recency.
type LRU[K comparable, V any] struct {
	inner *lru.Cache[K, V]
}

// NewLRU creates a cache holding at most size entries
func NewLRU[K comparable, V any](size int) (*LRU[K, V], error) {
	inner, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &LRU[K, V]{inner: inner}, nil
}

// Get returns the value for key and marks it most recently used
func (c *LRU[K, V]) Get(key K) (V, bool) {
	return c.inner.Get(key)
}

// Add stores value and reports whether an older entry was evicted to make room
func (c *LRU[K, V]) Add(key K, value V) bool {
	return c.inner.Add(key, value)
}

// Remove deletes key
func (c *LRU[K, V]) Remove(key K) {
	c.inner.Remove(key)
}

// Purge removes every entry
func (c *LRU[K, V]) Purge() {
	c.inner.Purge()
}

// Len returns the number of entries held
func (c *LRU[K, V]) Len() int {
	return c.inner.Len()
}
