package layout

import (
	"sync"
	"weak"

	"github.com/gogpu/bindcore/internal/logging"
)

// Cacheable is implemented by objects a Cache can deduplicate.
type Cacheable[T any] interface {
	*T
	Hash() uint64
	Equal(*T) bool
	Alive() bool
	TryAddRef() bool
	OnDestroy(func())
	String() string
}

// Cache is a content-addressed cache of immutable objects, keyed by
// content hash with an Equal fallback for collisions.
//
// Entries are weak: the cache never keeps an object alive. Inserting an
// object registers a destroy hook that removes it when its last reference
// is released.
//
// Cache is safe for concurrent use.
// Cache must not be copied after creation (has mutex).
type Cache[T any, P Cacheable[T]] struct {
	mu      sync.Mutex
	buckets map[uint64][]weak.Pointer[T]
	hits    uint64
	misses  uint64
}

// Stats describes cache usage.
type Stats struct {
	Len    int
	Hits   uint64
	Misses uint64
}

// NewCache creates an empty cache.
func NewCache[T any, P Cacheable[T]]() *Cache[T, P] {
	return &Cache[T, P]{buckets: make(map[uint64][]weak.Pointer[T])}
}

// Get returns the cached object equal to candidate, if any.
func (c *Cache[T, P]) Get(candidate P) (P, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(candidate)
}

// lookup finds a live entry equal to candidate. Caller must hold c.mu.
func (c *Cache[T, P]) lookup(candidate P) (P, bool) {
	for _, wp := range c.buckets[candidate.Hash()] {
		p := P(wp.Value())
		if p != nil && p.Alive() && p.Equal((*T)(candidate)) {
			return p, true
		}
	}
	return nil, false
}

// GetOrInsert returns the cached object equal to candidate with a new
// reference taken on it, or inserts candidate and returns it. The boolean
// reports a cache hit, in which case the caller should release candidate.
//
// An equal entry whose last reference is being released concurrently
// refuses the new reference and is treated as a miss.
func (c *Cache[T, P]) GetOrInsert(candidate P) (P, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, wp := range c.buckets[candidate.Hash()] {
		p := P(wp.Value())
		if p == nil || !p.Equal((*T)(candidate)) {
			continue
		}
		if !p.TryAddRef() {
			logging.Logger().Debug("layout: cache entry is being destroyed", "object", p.String())
			continue
		}
		c.hits++
		logging.Logger().Debug("layout: cache hit", "object", p.String())
		return p, true
	}
	c.misses++

	h := candidate.Hash()
	c.buckets[h] = append(c.buckets[h], weak.Make((*T)(candidate)))
	candidate.OnDestroy(func() { c.Delete(candidate) })
	logging.Logger().Debug("layout: cache insert", "object", candidate.String())
	return candidate, false
}

// Delete removes p from the cache. Entries whose objects were collected
// are pruned from the same bucket. Returns true if p was found.
func (c *Cache[T, P]) Delete(p P) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := p.Hash()
	bucket := c.buckets[h]
	found := false
	kept := bucket[:0]
	for _, wp := range bucket {
		v := wp.Value()
		if v == (*T)(p) {
			found = true
			continue
		}
		if v == nil {
			continue
		}
		kept = append(kept, wp)
	}
	if len(kept) == 0 {
		delete(c.buckets, h)
	} else {
		c.buckets[h] = kept
	}
	return found
}

// Clear removes all entries from the cache.
func (c *Cache[T, P]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buckets = make(map[uint64][]weak.Pointer[T])
}

// Len returns the number of live entries in the cache.
func (c *Cache[T, P]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, bucket := range c.buckets {
		for _, wp := range bucket {
			if wp.Value() != nil {
				n++
			}
		}
	}
	return n
}

// Stats returns cache statistics.
func (c *Cache[T, P]) Stats() Stats {
	n := c.Len()
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{Len: n, Hits: c.hits, Misses: c.misses}
}
