package cache

import (
	"sync"
	"time"
)

type fifoEntry[T any] struct {
	value    T
	storedAt time.Time
	seq      uint64
}

// FIFO is a bounded cache that, once full, evicts the entry with the oldest
// insertion timestamp. Reads do not refresh an entry.
type FIFO[T any] struct {
	mu       sync.Mutex
	items    map[string]fifoEntry[T]
	capacity int
	now      Clock
	seq      uint64
}

// NewFIFO creates a FIFO cache holding at most capacity entries.
func NewFIFO[T any](capacity int, clock Clock) *FIFO[T] {
	if capacity < 1 {
		capacity = 1
	}
	if clock == nil {
		clock = time.Now
	}
	return &FIFO[T]{
		items:    make(map[string]fifoEntry[T], capacity),
		capacity: capacity,
		now:      clock,
	}
}

// Get retrieves a value from the cache.
func (c *FIFO[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	return e.value, ok
}

// Set stores value under key, evicting the oldest entry when the cache is full.
// Overwriting an existing key keeps its original timestamp.
func (c *FIFO[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.value = value
		c.items[key] = e
		return
	}
	if len(c.items) >= c.capacity {
		c.evictOldestLocked()
	}
	c.seq++
	c.items[key] = fifoEntry[T]{value: value, storedAt: c.now(), seq: c.seq}
}

// Delete removes a value from the cache.
func (c *FIFO[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of entries.
func (c *FIFO[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the configured maximum size.
func (c *FIFO[T]) Capacity() int {
	return c.capacity
}

// evictOldestLocked drops the entry with the smallest timestamp; the insertion
// sequence breaks ties between equal timestamps.
func (c *FIFO[T]) evictOldestLocked() {
	var (
		oldestKey string
		oldest    fifoEntry[T]
		found     bool
	)
	for k, e := range c.items {
		if !found || e.storedAt.Before(oldest.storedAt) ||
			(e.storedAt.Equal(oldest.storedAt) && e.seq < oldest.seq) {
			oldestKey, oldest, found = k, e, true
		}
	}
	if found {
		delete(c.items, oldestKey)
	}
}
