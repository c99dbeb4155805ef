package registry

// Cache is a lookup table scoped to the current session. Every entry is
// evicted when the registry closes the session.
//
// A Cache is accessed from the goroutine driving the session and is not
// safe for concurrent use.
type Cache[K comparable, V any] struct {
	entries map[K]V
}

// NewCache creates a cache bound to r's session lifecycle.
func NewCache[K comparable, V any](r *Registry) *Cache[K, V] {
	c := &Cache[K, V]{entries: make(map[K]V)}
	r.onClose(c.Clear)
	return c
}

// Get returns the entry for k.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	v, ok := c.entries[k]
	return v, ok
}

// Put stores v under k.
func (c *Cache[K, V]) Put(k K, v V) { c.entries[k] = v }

// Delete removes k.
func (c *Cache[K, V]) Delete(k K) { delete(c.entries, k) }

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int { return len(c.entries) }

// Clear drops every entry.
func (c *Cache[K, V]) Clear() { clear(c.entries) }
