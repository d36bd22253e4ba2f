// Package cache provides the in-memory caches owned by the assistant:
// a TTL cache for the context snapshot and a bounded FIFO cache for LLM replies.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// TTL is a thread-safe in-memory cache whose entries expire after a fixed duration.
type TTL[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration
	now   Clock
	stop  chan struct{}
	once  sync.Once
}

// Option configures a TTL cache.
type Option func(*ttlOptions)

type ttlOptions struct {
	clock   Clock
	janitor bool
}

// WithClock replaces time.Now.
func WithClock(c Clock) Option {
	return func(o *ttlOptions) { o.clock = c }
}

// WithoutJanitor disables the background cleanup goroutine. Expired entries are still
// never returned by Get.
func WithoutJanitor() Option {
	return func(o *ttlOptions) { o.janitor = false }
}

// NewTTL creates a cache with the given TTL.
func NewTTL[T any](ttl time.Duration, opts ...Option) *TTL[T] {
	o := ttlOptions{clock: time.Now, janitor: true}
	for _, opt := range opts {
		opt(&o)
	}
	c := &TTL[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		now:   o.clock,
		stop:  make(chan struct{}),
	}
	if o.janitor && ttl > 0 {
		go c.cleanup()
	}
	return c
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value in the cache with the configured TTL.
func (c *TTL[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Delete removes a value from the cache.
func (c *TTL[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Len returns the number of stored entries, expired or not.
func (c *TTL[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine.
func (c *TTL[T]) Close() {
	c.once.Do(func() { close(c.stop) })
}

// cleanup periodically removes expired entries.
func (c *TTL[T]) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.purge()
		}
	}
}

func (c *TTL[T]) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, v := range c.items {
		if !now.Before(v.expiresAt) {
			delete(c.items, k)
		}
	}
}
