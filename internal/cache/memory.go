package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is the L1 level: a byte-bounded LRU of decoded-ready clip
// bytes.
type MemoryCache struct {
	mu sync.Mutex

	capacity int64
	size     int64

	items map[string]*list.Element
	lru   *list.List // front is most recently used

	stats Stats
}

type memoryEntry struct {
	key     string
	value   []byte
	created time.Time
	hits    int64
}

// NewMemoryCache creates a memory cache holding at most capacity bytes.
func NewMemoryCache(capacity int64) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		stats:    Stats{Capacity: capacity},
	}
}

// Get returns a clip and marks it most recently used.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	c.lru.MoveToFront(elem)
	e := elem.Value.(*memoryEntry)
	e.hits++
	c.stats.Hits++
	c.stats.LastAccess = time.Now()
	return e.value, true
}

// Put stores a clip, evicting the least recently used ones to make room.
func (c *MemoryCache) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(value))
	if n > c.capacity {
		return ErrItemTooLarge
	}

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	for c.size+n > c.capacity && c.lru.Len() > 0 {
		c.evictOldest()
	}

	c.items[key] = c.lru.PushFront(&memoryEntry{
		key:     key,
		value:   value,
		created: time.Now(),
	})
	c.size += n
	return nil
}

// Delete removes a clip.
func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	return nil
}

// Contains reports whether a clip is cached without touching the LRU order.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Clear drops every clip.
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.size = 0
	return nil
}

// Size returns the number of bytes held.
func (c *MemoryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns the level counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.size
	s.Items = int64(len(c.items))
	return s
}

// Entries lists cached clips from least to most recently used.
func (c *MemoryCache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.items))
	for elem := c.lru.Back(); elem != nil; elem = elem.Prev() {
		e := elem.Value.(*memoryEntry)
		out = append(out, Entry{
			Key:     e.key,
			Size:    int64(len(e.value)),
			Stored:  int64(len(e.value)),
			Created: e.created,
			Hits:    e.hits,
			Level:   LevelMemory,
		})
	}
	return out
}

// Prune drops clips stored before now minus maxAge and returns how many
// were removed.
func (c *MemoryCache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).created.Before(cutoff) {
			c.remove(elem)
			pruned++
		}
		elem = prev
	}
	return pruned
}

// evictOldest must be called with the lock held.
func (c *MemoryCache) evictOldest() {
	if elem := c.lru.Back(); elem != nil {
		c.remove(elem)
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
	}
}

func (c *MemoryCache) remove(elem *list.Element) {
	e := c.lru.Remove(elem).(*memoryEntry)
	delete(c.items, e.key)
	c.size -= int64(len(e.value))
}
