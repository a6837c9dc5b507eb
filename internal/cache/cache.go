// Package cache provides a generic in-process TTL cache
package cache

import (
	"sync"
	"time"
)

// DefaultTTL replaces a non-positive TTL passed to New.
const DefaultTTL = time.Hour

// maxSweep caps the interval between expiry sweeps so long TTLs still
// release memory.
const maxSweep = 5 * time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a thread-safe map whose entries expire after a fixed TTL.
// Expired entries are invisible to Get and swept by a background goroutine
// until Close. With a positive capacity, inserting a new key into a full
// cache evicts the entry closest to expiry.
type Cache[K comparable, V any] struct {
	items    map[K]entry[V]
	mu       sync.RWMutex
	ttl      time.Duration
	capacity int
	stop     chan struct{}
	once     sync.Once
}

// New creates a cache. capacity <= 0 means unbounded.
func New[K comparable, V any](ttl time.Duration, capacity int) *Cache[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache[K, V]{
		items:    make(map[K]entry[V]),
		ttl:      ttl,
		capacity: capacity,
		stop:     make(chan struct{}),
	}
	go c.sweep(min(ttl, maxSweep))
	return c
}

// Get returns the value stored under key if it has not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.items[key]
	if !exists || time.Now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for one TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.capacity > 0 && len(c.items) >= c.capacity {
		c.evictLocked()
	}
	c.items[key] = entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the sweeper. It is safe to call twice.
func (c *Cache[K, V]) Close() {
	c.once.Do(func() { close(c.stop) })
}

// evictLocked drops the entry that expires first. Callers hold mu.
func (c *Cache[K, V]) evictLocked() {
	var (
		victim K
		oldest time.Time
		found  bool
	)
	for k, e := range c.items {
		if !found || e.expiresAt.Before(oldest) {
			victim, oldest, found = k, e.expiresAt, true
		}
	}
	if found {
		delete(c.items, victim)
	}
}

func (c *Cache[K, V]) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache[K, V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, key)
		}
	}
}
