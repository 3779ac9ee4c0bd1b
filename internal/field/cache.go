package field

// Cache holds the last known raw value of every register a device has
// reported or been written, including registers no descriptor covers.
//
// Thread Safety:
//   - NOT safe for concurrent use. Owned by one device's mutation context.
type Cache struct {
	values map[ID]int
	dirty  bool
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{values: make(map[ID]int)}
}

// Get returns the cached value of id and whether it is known.
func (c *Cache) Get(id ID) (int, bool) {
	v, ok := c.values[id]
	return v, ok
}

// Raw implements Snapshot.
func (c *Cache) Raw(id ID) (int, bool) {
	return c.Get(id)
}

// Set stores v at id and reports whether the stored value changed.
// Storing a register for the first time counts as a change.
func (c *Cache) Set(id ID, v int) bool {
	old, ok := c.values[id]
	if ok && old == v {
		return false
	}
	c.values[id] = v
	c.dirty = true
	return true
}

// Len returns the number of known registers.
func (c *Cache) Len() int {
	return len(c.values)
}

// Snapshot returns a copy of all cached values.
func (c *Cache) Snapshot() map[ID]int {
	out := make(map[ID]int, len(c.values))
	for id, v := range c.values {
		out[id] = v
	}
	return out
}

// Restore seeds the cache from persisted values. Existing entries with the
// same id are overwritten. The cache is left clean.
func (c *Cache) Restore(values map[ID]int) {
	for id, v := range values {
		c.values[id] = v
	}
	c.dirty = false
}

// Dirty reports whether the cache changed since the last MarkClean.
func (c *Cache) Dirty() bool {
	return c.dirty
}

// MarkClean resets the dirty flag after a successful persist.
func (c *Cache) MarkClean() {
	c.dirty = false
}
