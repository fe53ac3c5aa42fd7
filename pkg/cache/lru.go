package cache

import (
	"container/list"
	"sync"
	"time"
)

type lruEntry[K comparable, V any] struct {
	key      K
	value    V
	lastSeen time.Time
}

// Option configures an LRUCache.
type Option[K comparable, V any] func(*LRUCache[K, V])

// WithIdleTTL expires entries not read or written for d. Expired entries are
// dropped lazily on access and on Put.
func WithIdleTTL[K comparable, V any](d time.Duration) Option[K, V] {
	return func(c *LRUCache[K, V]) { c.ttl = d }
}

// WithEvictCallback runs fn for every entry leaving the cache through
// eviction, expiry, Remove or Clear. It runs with the cache lock held and
// must not call back into the cache.
func WithEvictCallback[K comparable, V any](fn func(key K, value V)) Option[K, V] {
	return func(c *LRUCache[K, V]) { c.onEvict = fn }
}

// WithClock replaces time.Now, for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *LRUCache[K, V]) { c.now = now }
}

// LRUCache is a size-bounded cache safe for concurrent use. At capacity the
// least recently used entry is evicted.
type LRUCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[K]*list.Element
	order    *list.List // front is most recent
	onEvict  func(key K, value V)
	now      func() time.Time
}

// NewLRUCache panics when capacity is not positive.
func NewLRUCache[K comparable, V any](capacity int, opts ...Option[K, V]) *LRUCache[K, V] {
	if capacity <= 0 {
		panic("LRU cache capacity must be positive")
	}
	c := &LRUCache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key and marks it recently used.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	entry := elem.Value.(*lruEntry[K, V])
	now := c.now()
	if c.expired(entry, now) {
		c.removeElement(elem)
		var zero V
		return zero, false
	}
	entry.lastSeen = now
	c.order.MoveToFront(elem)
	return entry.value, true
}

// Peek returns the value for key without touching its recency or idle time.
func (c *LRUCache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry[K, V])
		if !c.expired(entry, c.now()) {
			return entry.value, true
		}
	}
	var zero V
	return zero, false
}

// Put stores value under key and returns the value it replaced, if any.
func (c *LRUCache[K, V]) Put(key K, value V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry[K, V])
		old := entry.value
		entry.value = value
		entry.lastSeen = now
		c.order.MoveToFront(elem)
		return old, true
	}

	c.items[key] = c.order.PushFront(&lruEntry[K, V]{key: key, value: value, lastSeen: now})
	c.pruneExpired(now)
	for c.order.Len() > c.capacity {
		c.removeElement(c.order.Back())
	}

	var zero V
	return zero, false
}

// Remove deletes key and returns its value, if present.
func (c *LRUCache[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		return elem.Value.(*lruEntry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Len counts entries, including expired ones not yet pruned.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes every entry.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.order.Len() > 0 {
		c.removeElement(c.order.Back())
	}
}

func (c *LRUCache[K, V]) expired(e *lruEntry[K, V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.lastSeen) >= c.ttl
}

// pruneExpired walks from the least recent end and stops at the first live
// entry. Requires c.mu.
func (c *LRUCache[K, V]) pruneExpired(now time.Time) {
	for elem := c.order.Back(); elem != nil; elem = c.order.Back() {
		if !c.expired(elem.Value.(*lruEntry[K, V]), now) {
			return
		}
		c.removeElement(elem)
	}
}

// Requires c.mu.
func (c *LRUCache[K, V]) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	entry := elem.Value.(*lruEntry[K, V])
	delete(c.items, entry.key)
	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
}
