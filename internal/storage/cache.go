package storage

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache backs the workspace and tool read caches on *DB. The guard path
// reads the workspace billing projection on every run, so those hits must
// not cost a query; TTL bounds how stale a plan change can look.
type LRUCache struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	index    map[string]*list.Element
	lru      *list.List
}

type cacheEntry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

// NewLRUCache creates a cache holding at most capacity entries, each
// expiring ttl after its last Set.
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Get returns the cached value and marks it most recently used. Expired
// entries are evicted on read and reported as a miss.
func (c *LRUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, found := c.index[key]
	if !found {
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.evict(elem)
		return nil, false
	}

	c.lru.MoveToFront(elem)
	return entry.value, true
}

// Set stores a value, resetting its TTL. The least recently used entry is
// evicted when the cache is over capacity.
func (c *LRUCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)

	if elem, found := c.index[key]; found {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		return
	}

	c.index[key] = c.lru.PushFront(&cacheEntry{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	})

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.evict(oldest)
		}
	}
}

// Delete drops one entry. Repositories call this after writes so a plan
// or subscription update is visible on the next read.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.index[key]; found {
		c.evict(elem)
	}
}

// Clear drops every entry.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = make(map[string]*list.Element, c.capacity)
	c.lru.Init()
}

// Len returns the current number of entries.
func (c *LRUCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lru.Len()
}

func (c *LRUCache) evict(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.index, elem.Value.(*cacheEntry).key)
}
