package session

import (
	"container/list"
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// lruCache is a thread-safe LRU cache where every entry carries its own expiry
type lruCache[V any] struct {
	mu           sync.Mutex
	capacity     int
	items        map[string]*list.Element
	evictionList *list.List
	now          func() time.Time
}

func newLRUCache[V any](capacity int) *lruCache[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &lruCache[V]{
		capacity:     capacity,
		items:        make(map[string]*list.Element, capacity),
		evictionList: list.New(),
		now:          time.Now,
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, found := c.items[key]
	if !found {
		return zero, false
	}

	entry := elem.Value.(*cacheEntry[V])
	if !c.now().Before(entry.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.evictionList.MoveToFront(elem)
	return entry.value, true
}

func (c *lruCache[V]) set(key string, value V, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.items[key]; found {
		c.evictionList.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		return
	}

	elem := c.evictionList.PushFront(&cacheEntry[V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.evictionList.Len() > c.capacity {
		if oldest := c.evictionList.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *lruCache[V]) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.items[key]; found {
		c.removeElement(elem)
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictionList.Len()
}

// cleanupExpired removes expired entries and returns how many were dropped
func (c *lruCache[V]) cleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	var prev *list.Element
	for elem := c.evictionList.Back(); elem != nil; elem = prev {
		prev = elem.Prev()
		if !now.Before(elem.Value.(*cacheEntry[V]).expiresAt) {
			c.removeElement(elem)
			removed++
		}
	}
	return removed
}

func (c *lruCache[V]) removeElement(elem *list.Element) {
	c.evictionList.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry[V]).key)
}
