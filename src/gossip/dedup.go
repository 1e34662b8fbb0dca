package gossip

import (
	"container/list"
	"sync"
	"time"
)

type dedupEntry struct {
	digest    string
	firstSeen time.Time
}

// DedupCache is a bounded recency set of object digests already seen. It is
// bounded both by a maximum entry count and by a maximum age; eviction is
// oldest-first by insertion time once either bound is exceeded.
//
// A digest re-inserted after eviction is indistinguishable from first-seen.
// The cache bounds memory; it does not guarantee exactly-once processing
// network-wide.
type DedupCache struct {
	sync.Mutex

	capacity int
	ttl      time.Duration

	entries map[string]*list.Element
	order   *list.List

	now func() time.Time
}

// NewDedupCache instantiates a DedupCache with the given entry-count and age
// bounds.
func NewDedupCache(capacity int, ttl time.Duration) *DedupCache {
	return &DedupCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Contains reports whether the digest is currently in the hot set. Entries
// past their age bound are evicted first, so an expired digest reads as
// absent.
func (c *DedupCache) Contains(digest string) bool {
	c.Lock()
	defer c.Unlock()

	c.evictExpired()

	_, ok := c.entries[digest]
	return ok
}

// Insert adds the digest to the hot set and returns true if it was not
// already present. Inserting past capacity evicts the oldest entry.
func (c *DedupCache) Insert(digest string) bool {
	c.Lock()
	defer c.Unlock()

	c.evictExpired()

	if _, ok := c.entries[digest]; ok {
		return false
	}

	el := c.order.PushBack(&dedupEntry{
		digest:    digest,
		firstSeen: c.now(),
	})
	c.entries[digest] = el

	for len(c.entries) > c.capacity {
		c.evictOldest()
	}

	return true
}

// Len returns the number of digests in the hot set, after expiring aged
// entries.
func (c *DedupCache) Len() int {
	c.Lock()
	defer c.Unlock()

	c.evictExpired()

	return len(c.entries)
}

// evictExpired drops entries older than the age bound. Entries are ordered by
// insertion time, so scanning stops at the first fresh one. Caller must hold
// the lock.
func (c *DedupCache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		if front.Value.(*dedupEntry).firstSeen.After(cutoff) {
			return
		}
		c.evictOldest()
	}
}

// evictOldest removes the front entry. Caller must hold the lock.
func (c *DedupCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.order.Remove(front)
	delete(c.entries, front.Value.(*dedupEntry).digest)
}
