package job

import (
	"sync"
)

// StatusCache remembers the status of the most recent jobs.
type StatusCache struct {
	// Size is the number of statuses to store. When full, the oldest
	// are evicted to make room.
	Size int

	cache []cacheEntry
	sync.RWMutex
}

type cacheEntry struct {
	ID     ID
	Status Status
}

func (c *StatusCache) SetStatus(id ID, status Status) {
	if c.Size <= 0 {
		return
	}
	c.Lock()
	defer c.Unlock()
	if i := c.statusIndex(id); i >= 0 {
		c.cache[i].Status = status
		return
	}
	if c.Size <= len(c.cache) {
		c.cache = c.cache[len(c.cache)-(c.Size-1):]
	}
	c.cache = append(c.cache, cacheEntry{
		ID:     id,
		Status: status,
	})
}

func (c *StatusCache) Status(id ID) (Status, bool) {
	c.RLock()
	defer c.RUnlock()
	i := c.statusIndex(id)
	if i < 0 {
		return Status{}, false
	}
	return c.cache[i].Status, true
}

// Recent returns the IDs of the jobs in the cache, most recent last.
func (c *StatusCache) Recent() []ID {
	c.RLock()
	defer c.RUnlock()
	ids := make([]ID, len(c.cache))
	for i := range c.cache {
		ids[i] = c.cache[i].ID
	}
	return ids
}

func (c *StatusCache) statusIndex(id ID) int {
	// entries are in arrival order, not id order
	for i := range c.cache {
		if c.cache[i].ID == id {
			return i
		}
	}
	return -1
}
