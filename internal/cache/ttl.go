// Package cache holds the expiring and bounded caches used by the swap pipeline.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is the read/write surface the routing client needs from a quote cache.
// Implementations treat backend failures as misses.
type Store[T any] interface {
	Lookup(ctx context.Context, key string) (T, bool)
	Save(ctx context.Context, key string, value T)
}

// Stats summarises the entries held by a TTL cache
type Stats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Expired int `json:"expired"`
}

type entry[T any] struct {
	value  T
	expiry time.Time
}

// TTL is an in-memory key-value store whose entries expire a fixed duration
// after insertion. Expired entries are removed when read, never swept.
type TTL[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry[T]
	now     func() time.Time
}

// NewTTL creates a cache whose entries live for ttl
func NewTTL[T any](ttl time.Duration) *TTL[T] {
	return &TTL[T]{
		ttl:     ttl,
		entries: make(map[string]entry[T]),
		now:     time.Now,
	}
}

// WithClock replaces the time source and returns the cache
func (c *TTL[T]) WithClock(now func() time.Time) *TTL[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// TTL returns the configured entry lifetime
func (c *TTL[T]) TTL() time.Duration {
	return c.ttl
}

// Set stores value with an expiry of now+ttl, replacing any previous entry
func (c *TTL[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{value: value, expiry: c.now().Add(c.ttl)}
}

// Get returns the value for key. An expired entry is deleted and reported as a miss.
func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiry) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Delete removes key
func (c *TTL[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry
func (c *TTL[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[T])
}

// Stats counts the entries without evicting anything
func (c *TTL[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := Stats{Total: len(c.entries)}
	for _, e := range c.entries {
		if now.After(e.expiry) {
			s.Expired++
		} else {
			s.Active++
		}
	}
	return s
}

// Lookup implements Store
func (c *TTL[T]) Lookup(_ context.Context, key string) (T, bool) {
	return c.Get(key)
}

// Save implements Store
func (c *TTL[T]) Save(_ context.Context, key string, value T) {
	c.Set(key, value)
}
