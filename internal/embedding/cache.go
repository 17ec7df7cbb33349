package embedding

import (
	"container/list"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// VectorCache is a bounded LRU of embeddings keyed by the xxhash of the
// embedded text. Values are copied in and out so callers may modify them.
type VectorCache struct {
	capacity int
	mu       sync.Mutex
	items    map[uint64]*list.Element
	order    *list.List // front = most recently used
	hits     uint64
	misses   uint64
}

type cachedVector struct {
	key    uint64
	values []float32
}

// NewVectorCache returns a cache holding at most capacity vectors, or nil
// when capacity <= 0. A nil cache never hits.
func NewVectorCache(capacity int) *VectorCache {
	if capacity <= 0 {
		return nil
	}
	return &VectorCache{
		capacity: capacity,
		items:    make(map[uint64]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns a copy of the vector cached for text.
func (c *VectorCache) Get(text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	key := xxhash.Sum64String(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(elem)
	return append([]float32(nil), elem.Value.(*cachedVector).values...), true
}

// Put caches a copy of values for text, evicting the least recently used entry.
func (c *VectorCache) Put(text string, values []float32) {
	if c == nil {
		return
	}
	key := xxhash.Sum64String(text)
	stored := append([]float32(nil), values...)
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		elem.Value.(*cachedVector).values = stored
		c.order.MoveToFront(elem)
		return
	}
	c.items[key] = c.order.PushFront(&cachedVector{key: key, values: stored})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cachedVector).key)
	}
}

// Len returns the number of cached vectors.
func (c *VectorCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns hit and miss counts.
func (c *VectorCache) Stats() (hits, misses uint64) {
	if c == nil {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
