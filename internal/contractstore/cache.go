package contractstore

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"DocBatch/internal/contract"
	"DocBatch/internal/identifier"
)

// Cache holds resolved contracts by identifier. Entries are write-once: the first
// contract stored under an id is kept. Readers only take the read lock; concurrent
// misses for one id share a single load.
type Cache struct {
	mu      sync.RWMutex
	entries map[identifier.Identifier]*contract.Contract
	loads   singleflight.Group
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[identifier.Identifier]*contract.Contract)}
}

// Get returns the cached contract for id.
func (c *Cache) Get(id identifier.Identifier) (*contract.Contract, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ct, ok := c.entries[id]
	return ct, ok
}

// Add stores ct unless an entry already exists, and returns the cached instance.
func (c *Cache) Add(ct *contract.Contract) *contract.Contract {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[ct.ID()]; ok {
		return existing
	}

	c.entries[ct.ID()] = ct

	return ct
}

// Load returns the cached contract for id, or runs load once for all concurrent
// callers. Absent contracts (nil) are not cached.
func (c *Cache) Load(id identifier.Identifier, load func() (*contract.Contract, error)) (*contract.Contract, error) {
	if ct, ok := c.Get(id); ok {
		return ct, nil
	}

	v, err, _ := c.loads.Do(string(id[:]), func() (any, error) {
		if ct, ok := c.Get(id); ok {
			return ct, nil
		}

		ct, err := load()
		if err != nil || ct == nil {
			return ct, err
		}

		return c.Add(ct), nil
	})
	if err != nil {
		return nil, err
	}

	ct, _ := v.(*contract.Contract)

	return ct, nil
}

// Len returns the number of cached contracts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
