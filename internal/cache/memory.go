package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/kahncode1/narrasync/timing"
	"github.com/kahncode1/narrasync/timing/collection"
)

// EvictFunc is called, without the cache lock held, for every collection
// pushed out by capacity.
type EvictFunc func(id string, c *collection.Collection)

// DocumentCache is the L1 tier: an LRU of loaded collections bounded by
// entry count. Get, Put and eviction are O(1) and never perform I/O.
type DocumentCache struct {
	capacity int

	// LRU implementation
	items    map[string]*list.Element
	eviction *list.List

	onEvict EvictFunc

	mu    sync.Mutex
	stats Stats
}

// documentEntry is one resident collection.
type documentEntry struct {
	id         string
	coll       *collection.Collection
	created    time.Time
	lastAccess time.Time
	hits       int64
}

// NewDocumentCache creates an L1 cache holding at most capacity
// collections. A non-positive capacity uses timing.DefaultMaxDocuments.
func NewDocumentCache(capacity int, onEvict EvictFunc) *DocumentCache {
	if capacity <= 0 {
		capacity = timing.DefaultMaxDocuments
	}
	return &DocumentCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		onEvict:  onEvict,
		stats:    Stats{Capacity: int64(capacity)},
	}
}

// Get returns the collection for id and marks it most recently used.
func (c *DocumentCache) Get(id string) (*collection.Collection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	entry := elem.Value.(*documentEntry)
	entry.hits++
	entry.lastAccess = time.Now()

	c.stats.Hits++
	return entry.coll, true
}

// Peek returns the collection for id without touching recency or stats.
func (c *DocumentCache) Peek(id string) (*collection.Collection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return elem.Value.(*documentEntry).coll, true
}

// Put stores coll under id as the most recently used entry and returns the
// ids evicted to make room.
func (c *DocumentCache) Put(id string, coll *collection.Collection) []string {
	c.mu.Lock()

	now := time.Now()
	if elem, ok := c.items[id]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*documentEntry)
		entry.coll = coll
		entry.lastAccess = now
		c.mu.Unlock()
		return nil
	}

	elem := c.eviction.PushFront(&documentEntry{id: id, coll: coll, created: now, lastAccess: now})
	c.items[id] = elem

	var evicted []*documentEntry
	for c.eviction.Len() > c.capacity {
		evicted = append(evicted, c.evictOldest())
	}
	c.mu.Unlock()

	return c.notify(evicted)
}

// Delete removes id and reports whether it was present. Deletion does not
// count as an eviction and does not call the evict hook.
func (c *DocumentCache) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		return false
	}
	c.removeElement(elem)
	return true
}

// Clear removes all entries.
func (c *DocumentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
}

// Contains reports whether id is resident without updating recency.
func (c *DocumentCache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[id]
	return ok
}

// Len returns the number of resident collections.
func (c *DocumentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.eviction.Len()
}

// Keys returns resident ids from most to least recently used.
func (c *DocumentCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.eviction.Len())
	for elem := c.eviction.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*documentEntry).id)
	}
	return keys
}

// Entries describes resident collections from most to least recently used.
func (c *DocumentCache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry, 0, c.eviction.Len())
	for elem := c.eviction.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*documentEntry)
		entries = append(entries, Entry{
			Key:        e.id,
			Created:    e.created,
			LastAccess: e.lastAccess,
			Hits:       e.hits,
			Level:      LevelL1,
		})
	}
	return entries
}

// Stats returns cache statistics.
func (c *DocumentCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Items = int64(len(c.items))
	stats.updateHitRate()
	return stats
}

// Resize changes the capacity, evicting as needed.
func (c *DocumentCache) Resize(capacity int) []string {
	if capacity <= 0 {
		capacity = 1
	}

	c.mu.Lock()
	c.capacity = capacity
	c.stats.Capacity = int64(capacity)

	var evicted []*documentEntry
	for c.eviction.Len() > c.capacity {
		evicted = append(evicted, c.evictOldest())
	}
	c.mu.Unlock()

	return c.notify(evicted)
}

// evictOldest removes the least recently used entry (must be called with lock held).
func (c *DocumentCache) evictOldest() *documentEntry {
	elem := c.eviction.Back()
	entry := elem.Value.(*documentEntry)
	c.removeElement(elem)
	c.stats.Evictions++
	c.stats.LastEvict = time.Now()
	return entry
}

// removeElement removes an element from the cache (must be called with lock held).
func (c *DocumentCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	delete(c.items, elem.Value.(*documentEntry).id)
}

func (c *DocumentCache) notify(evicted []*documentEntry) []string {
	if len(evicted) == 0 {
		return nil
	}
	ids := make([]string, len(evicted))
	for i, e := range evicted {
		ids[i] = e.id
		if c.onEvict != nil {
			c.onEvict(e.id, e.coll)
		}
	}
	return ids
}
