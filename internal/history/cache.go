package history

import (
	"sync"

	"marketpulse-dash/internal/domain"
)

// DefaultCapacity is the number of candles kept when no capacity is given.
const DefaultCapacity = 100

// Reader is the read-only view of a candle history.
type Reader interface {
	Window(n int) []domain.Candle
	Size() int
	Capacity() int
}

// Cache is a bounded candle history ordered by arrival. It holds at most one
// candle per timestamp; once full, every append evicts the oldest candle.
// Writers and readers may run on different goroutines.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	ring     []domain.Candle
	head     int // position of the oldest candle
	size     int
	index    map[int64]struct{}
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		ring:     make([]domain.Candle, capacity),
		index:    make(map[int64]struct{}, capacity),
	}
}

// Merge appends every candle whose timestamp is not cached yet, in batch
// order, and returns how many were appended. Invalid candles are skipped.
func (c *Cache) Merge(candles []domain.Candle) int {
	if len(candles) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, candle := range candles {
		if !candle.Valid() {
			continue
		}
		if _, ok := c.index[candle.TS]; ok {
			continue
		}
		c.push(candle)
		added++
	}
	return added
}

func (c *Cache) push(candle domain.Candle) {
	if c.size == c.capacity {
		delete(c.index, c.ring[c.head].TS)
		c.ring[c.head] = candle
		c.head = (c.head + 1) % c.capacity
	} else {
		c.ring[(c.head+c.size)%c.capacity] = candle
		c.size++
	}
	c.index[candle.TS] = struct{}{}
}

// Window returns a copy of the most recent n candles, oldest first.
func (c *Cache) Window(n int) []domain.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n > c.size {
		n = c.size
	}
	if n <= 0 {
		return []domain.Candle{}
	}

	out := make([]domain.Candle, n)
	start := c.head + c.size - n
	for i := 0; i < n; i++ {
		out[i] = c.ring[(start+i)%c.capacity]
	}
	return out
}

// Latest returns the most recently appended candle.
func (c *Cache) Latest() (domain.Candle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.size == 0 {
		return domain.Candle{}, false
	}
	return c.ring[(c.head+c.size-1)%c.capacity], true
}

// Contains reports whether a candle with the given timestamp is cached.
func (c *Cache) Contains(ts int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.index[ts]
	return ok
}

func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

func (c *Cache) Capacity() int {
	return c.capacity
}

// Reset drops every cached candle.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.head = 0
	c.size = 0
	clear(c.ring)
	c.index = make(map[int64]struct{}, c.capacity)
}
