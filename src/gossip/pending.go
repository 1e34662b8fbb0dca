package gossip

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"github.com/chaincraft/chaincraft/src/object"
)

// pendingEntry is one parked object, positioned in arrival order.
type pendingEntry struct {
	dep string
	obj *object.SharedObject
	at  time.Time
}

// PendingSet parks objects whose validation was deferred on a missing
// dependency, keyed by the dependency digest. It is bounded three ways: a
// per-object retry budget, a maximum entry count, and a maximum age, so a
// flood of objects with unreachable dependencies cannot grow memory
// indefinitely. Overflow and expiry both evict oldest-first; an evicted
// object loses its retry accounting, so a later redelivery starts over, like
// the dedup cache's novel-after-eviction tradeoff.
type PendingSet struct {
	sync.Mutex

	maxRetries int
	capacity   int
	ttl        time.Duration

	// waiters maps a missing dependency digest to the parked entries waiting
	// on it.
	waiters map[string][]*list.Element

	// retries maps an object digest to the number of times it was deferred.
	retries map[string]int

	// order holds *pendingEntry values, oldest first.
	order *list.List

	now func() time.Time
}

// NewPendingSet instantiates a PendingSet with a per-object retry budget, a
// max entry count, and a max entry age.
func NewPendingSet(maxRetries, capacity int, ttl time.Duration) *PendingSet {
	return &PendingSet{
		maxRetries: maxRetries,
		capacity:   capacity,
		ttl:        ttl,
		waiters:    make(map[string][]*list.Element),
		retries:    make(map[string]int),
		order:      list.New(),
		now:        time.Now,
	}
}

// Defer parks the object until the missing dependency is accepted. It returns
// false when the object has exhausted its retry budget, in which case it is
// dropped and the caller should not expect a resubmission. When parking the
// object pushes the set over capacity, the oldest parked objects are evicted
// and returned so the caller can log the drops.
func (p *PendingSet) Defer(obj *object.SharedObject, missing string) (bool, []*object.SharedObject) {
	p.Lock()
	defer p.Unlock()

	p.retries[obj.Digest]++
	if p.retries[obj.Digest] > p.maxRetries {
		delete(p.retries, obj.Digest)
		return false, nil
	}

	e := p.order.PushBack(&pendingEntry{
		dep: missing,
		obj: obj,
		at:  p.now(),
	})
	p.waiters[missing] = append(p.waiters[missing], e)

	var dropped []*object.SharedObject
	for p.order.Len() > p.capacity {
		dropped = append(dropped, p.evictOldest())
	}

	return true, dropped
}

// Sweep evicts parked objects older than the TTL and returns them, oldest
// first, so the caller can log the drops. It is meant to be called from the
// node's periodic maintenance cycle.
func (p *PendingSet) Sweep() []*object.SharedObject {
	p.Lock()
	defer p.Unlock()

	cutoff := p.now().Add(-p.ttl)

	var expired []*object.SharedObject
	for e := p.order.Front(); e != nil; {
		entry := e.Value.(*pendingEntry)
		if entry.at.After(cutoff) {
			break
		}
		next := e.Next()
		p.remove(e, entry)
		expired = append(expired, entry.obj)
		e = next
	}

	return expired
}

// Resolve removes and returns the objects waiting on the accepted dependency,
// sorted by digest so resubmission order is deterministic.
func (p *PendingSet) Resolve(dep string) []*object.SharedObject {
	p.Lock()
	defer p.Unlock()

	elems, ok := p.waiters[dep]
	if !ok {
		return nil
	}

	delete(p.waiters, dep)

	waiting := make([]*object.SharedObject, 0, len(elems))
	for _, e := range elems {
		p.order.Remove(e)
		waiting = append(waiting, e.Value.(*pendingEntry).obj)
	}

	sort.Slice(waiting, func(i, j int) bool {
		return waiting[i].Digest < waiting[j].Digest
	})

	return waiting
}

// Forget clears the retry accounting for an object after it reached a final
// decision.
func (p *PendingSet) Forget(digest string) {
	p.Lock()
	defer p.Unlock()

	delete(p.retries, digest)
}

// Len returns the number of parked objects.
func (p *PendingSet) Len() int {
	p.Lock()
	defer p.Unlock()

	return p.order.Len()
}

// evictOldest drops the front entry and returns its object. Callers hold the
// lock.
func (p *PendingSet) evictOldest() *object.SharedObject {
	front := p.order.Front()
	entry := front.Value.(*pendingEntry)
	p.remove(front, entry)
	return entry.obj
}

// remove unlinks an entry from the order list, the waiter index, and the
// retry accounting. Callers hold the lock.
func (p *PendingSet) remove(e *list.Element, entry *pendingEntry) {
	p.order.Remove(e)
	delete(p.retries, entry.obj.Digest)

	waiting := p.waiters[entry.dep]
	for i, w := range waiting {
		if w == e {
			p.waiters[entry.dep] = append(waiting[:i], waiting[i+1:]...)
			break
		}
	}
	if len(p.waiters[entry.dep]) == 0 {
		delete(p.waiters, entry.dep)
	}
}
