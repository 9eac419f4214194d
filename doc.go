// Package lru provides a generic, thread-safe, fixed-capacity LRU cache.
//
// [Cache] combines a hash map for O(1) key lookup with a doubly-linked list
// that tracks access order from least to most recently used. When a Set on a
// full cache inserts a new key, the least recently used entry is silently
// evicted. Both Get and Set run in O(1) and are serialized through a single
// lock, so concurrent callers always observe a consistent cache.
//
// # Basic Usage
//
// Create a cache and store values:
//
//	cache := lru.MustNew[string, int](100)
//	cache.Set("key", 42)
//	value, found := cache.Get("key")
//
// A Get is an access event: it marks the entry most recently used. Use
// [Cache.Peek] to read a value without affecting eviction order.
//
// # Memoization with GetOrSet
//
// Compute values on cache miss:
//
//	result, err := cache.GetOrSet("key", func() (int, error) {
//	    return expensiveComputation()
//	})
//
// Use [Cache.GetOrSetSingleflight] when the computation is expensive and
// concurrent callers for the same missing key should share a single call.
//
// # Eviction Callbacks
//
// Register a callback to be notified when entries are evicted:
//
//	cache.OnEvict(func(key string, value int) {
//	    fmt.Printf("evicted: %s=%d\n", key, value)
//	})
//
// Callbacks are invoked for capacity evictions, explicit removals via
// [Cache.Remove], and [Cache.Clear].
package lru
