package lru

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrInvalidCapacity is returned by [New] when the requested capacity is not
// a positive integer.
var ErrInvalidCapacity = errors.New("capacity must be greater than zero")

// OnEvictFunc is a function that is called when an entry is evicted from the cache.
type OnEvictFunc[K comparable, V any] func(key K, value V)

// Cache represents a thread-safe, fixed-size LRU cache.
// A Cache must be created with [New] or [MustNew]; the zero value is not ready for use.
//
// Internally the cache pairs a map for O(1) key lookup with an intrusive
// doubly-linked list tracking access order. The list is bounded by two
// sentinel entries that never hold real keys, so linking and unlinking never
// has to special-case the ends of the list.
type Cache[K comparable, V any] struct {
	capacity int
	items    map[K]*entry[K, V]
	head     entry[K, V] // sentinel; head.next is the least recently used entry
	tail     entry[K, V] // sentinel; tail.prev is the most recently used entry
	mu       sync.RWMutex
	onEvict  OnEvictFunc[K, V] // callback for evictions
	sfGroup  singleflight.Group
}

// entry is an intrusive doubly-linked list node. Every live entry always has
// non-nil neighbors; the first and last real entries point at the sentinels.
type entry[K comparable, V any] struct {
	key  K
	val  V
	prev *entry[K, V]
	next *entry[K, V]
}

// New creates a new LRU cache with the given capacity.
// The capacity must be greater than zero; otherwise New returns
// [ErrInvalidCapacity].
func New[K comparable, V any](capacity int) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	c := &Cache[K, V]{
		capacity: capacity,
		items:    make(map[K]*entry[K, V], capacity),
	}
	c.head.next = &c.tail
	c.tail.prev = &c.head
	return c, nil
}

// MustNew creates a new LRU cache with the given capacity.
// It panics if the capacity is less than or equal to zero.
func MustNew[K comparable, V any](capacity int) *Cache[K, V] {
	cache, err := New[K, V](capacity)
	if err != nil {
		panic(err)
	}
	return cache
}

// Get retrieves a value from the cache by key.
// It returns the value and a boolean indicating whether the key was found.
// A hit marks the entry most recently used, so Get takes the exclusive lock
// even though the value itself is not modified.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()

	var zero V

	e, found := c.items[key]
	if !found {
		c.mu.Unlock()
		return zero, false
	}

	c.moveToBack(e)
	val := e.val
	c.mu.Unlock()

	return val, true
}

// Peek retrieves a value from the cache by key without updating its position
// in the LRU list. This is useful for checking a value without affecting
// eviction order. Returns the value and a boolean indicating whether the key was found.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V

	e, found := c.items[key]
	if !found {
		return zero, false
	}

	return e.val, true
}

// GetOrSet retrieves a value from the cache by key, or computes and sets it if not present.
// The compute function is only called if the key is not present in the cache.
// Note: if multiple goroutines call GetOrSet concurrently for the same missing key,
// compute may be called multiple times but only one result will be cached.
func (c *Cache[K, V]) GetOrSet(key K, compute func() (V, error)) (V, error) {
	// fast path: check if item exists
	if val, found := c.Get(key); found {
		return val, nil
	}

	// compute the value outside the lock to avoid deadlock if compute
	// calls back into the cache
	val, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	// check again in case it was added while we were computing
	if e, found := c.items[key]; found {
		c.moveToBack(e)
		val := e.val
		c.mu.Unlock()
		return val, nil
	}

	// add to cache
	evictedKey, evictedVal, hasEvicted := c.setLocked(key, val)
	onEvict := c.onEvict
	c.mu.Unlock()

	if hasEvicted && onEvict != nil {
		onEvict(evictedKey, evictedVal)
	}
	return val, nil
}

// GetOrSetSingleflight retrieves a value from the cache by key, or computes and sets it if not present.
// Unlike [Cache.GetOrSet], if multiple goroutines call GetOrSetSingleflight concurrently for the same
// missing key, the compute function is called exactly once and all callers receive the same result.
// This is useful when the compute function is expensive (e.g., database queries, API calls).
//
// The singleflight deduplication only applies to concurrent in-flight calls; once a value is cached,
// subsequent calls return the cached value without invoking singleflight.
func (c *Cache[K, V]) GetOrSetSingleflight(key K, compute func() (V, error)) (V, error) {
	// fast path: check if item exists
	if val, found := c.Get(key); found {
		return val, nil
	}

	// use singleflight to deduplicate concurrent computes for the same key
	sfKey := fmt.Sprintf("%v", key)
	result, err, _ := c.sfGroup.Do(sfKey, func() (any, error) {
		// check again inside singleflight in case another goroutine just cached it
		if val, found := c.Get(key); found {
			return val, nil
		}

		val, err := compute()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// check again in case it was added while we were computing
		if e, found := c.items[key]; found {
			c.moveToBack(e)
			existingVal := e.val
			c.mu.Unlock()
			return existingVal, nil
		}

		evictedKey, evictedVal, hasEvicted := c.setLocked(key, val)
		onEvict := c.onEvict
		c.mu.Unlock()

		if hasEvicted && onEvict != nil {
			onEvict(evictedKey, evictedVal)
		}
		return val, nil
	})

	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Set adds or updates an item in the cache.
// If the key already exists, its value is updated.
// If the cache is at capacity, the least recently used item is evicted.
func (c *Cache[K, V]) Set(key K, value V) {
	var evictedKey K
	var evictedVal V
	var hasEvicted bool

	c.mu.Lock()
	evictedKey, evictedVal, hasEvicted = c.setLocked(key, value)
	onEvict := c.onEvict
	c.mu.Unlock()

	if hasEvicted && onEvict != nil {
		onEvict(evictedKey, evictedVal)
	}
}

// setLocked is an internal method that adds or updates an item in the cache.
// it assumes the mutex is already locked.
// Returns the evicted key/value and whether an eviction occurred.
func (c *Cache[K, V]) setLocked(key K, value V) (evictedKey K, evictedVal V, evicted bool) {
	// if key exists, update value and mark most recently used
	if e, found := c.items[key]; found {
		c.moveToBack(e)
		e.val = value
		return
	}

	// if we're at capacity, remove the least recently used item. head.next
	// is a real entry here, never the tail sentinel, because a full cache
	// with capacity > 0 has a non-empty list.
	if len(c.items) >= c.capacity {
		oldest := c.head.next
		evictedKey = oldest.key
		evictedVal = oldest.val
		evicted = true
		c.detach(oldest)
		delete(c.items, oldest.key)
	}

	// add new item
	e := &entry[K, V]{
		key: key,
		val: value,
	}
	c.attachBack(e)
	c.items[key] = e
	return
}

// moveToBack marks an entry most recently used by relinking it just before
// the tail sentinel.
func (c *Cache[K, V]) moveToBack(e *entry[K, V]) {
	if c.tail.prev == e {
		return
	}
	c.detach(e)
	c.attachBack(e)
}

// detach unlinks an entry from the list using only its own neighbor links.
// The sentinels guarantee both neighbors are non-nil, so there is no
// end-of-list branch.
func (c *Cache[K, V]) detach(e *entry[K, V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}

// attachBack links an entry immediately before the tail sentinel, the most
// recently used position.
func (c *Cache[K, V]) attachBack(e *entry[K, V]) {
	e.prev = c.tail.prev
	e.next = &c.tail
	e.prev.next = e
	c.tail.prev = e
}

// Remove deletes an item from the cache by key.
// It returns whether the key was found and removed.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	e, found := c.items[key]
	if !found {
		c.mu.Unlock()
		return false
	}

	evictedKey := e.key
	evictedVal := e.val
	onEvict := c.onEvict

	delete(c.items, key)
	c.detach(e)
	c.mu.Unlock()

	if onEvict != nil {
		onEvict(evictedKey, evictedVal)
	}
	return true
}

// Len returns the current number of items in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Clear removes all items from the cache.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	onEvict := c.onEvict

	var evicted []entry[K, V]
	if onEvict != nil {
		evicted = make([]entry[K, V], 0, len(c.items))
		for e := c.head.next; e != &c.tail; e = e.next {
			evicted = append(evicted, *e)
		}
	}

	c.items = make(map[K]*entry[K, V], c.capacity)
	c.head.next = &c.tail
	c.tail.prev = &c.head
	c.mu.Unlock()

	for _, e := range evicted {
		onEvict(e.key, e.val)
	}
}

// Contains checks if a key exists in the cache.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, found := c.items[key]
	return found
}

// Keys returns a slice of all keys in the cache.
// The order is from most recently used to least recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]K, 0, len(c.items))
	for e := c.tail.prev; e != &c.head; e = e.prev {
		keys = append(keys, e.key)
	}

	return keys
}

// Capacity returns the maximum capacity of the cache.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// OnEvict sets a callback function that will be called when an entry is evicted from the cache.
// The callback will receive the key and value of the evicted entry.
//
// The callback is invoked after the cache's internal lock is released and may be called
// concurrently from multiple goroutines. It must be safe for concurrent use.
func (c *Cache[K, V]) OnEvict(f OnEvictFunc[K, V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onEvict = f
}
