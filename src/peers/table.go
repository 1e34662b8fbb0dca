package peers

import (
	"sort"
	"sync"
	"time"
)

// Table is the concurrent table of peer records. It is owned by the node's
// peer manager, which drives all state transitions; read paths (gossip
// fan-out, the HTTP service) get copies, so a mutation can never race a
// reader.
type Table struct {
	sync.RWMutex
	byAddr map[string]*Peer
	byID   map[uint32]*Peer
}

// NewTable instantiates an empty table.
func NewTable() *Table {
	return &Table{
		byAddr: make(map[string]*Peer),
		byID:   make(map[uint32]*Peer),
	}
}

// Upsert inserts a Discovered record for the address if none exists, and
// returns a copy of the record. It is idempotent on address, and it never
// resurrects a Banned record.
func (t *Table) Upsert(netAddr string) Peer {
	t.Lock()
	defer t.Unlock()

	p, ok := t.byAddr[netAddr]
	if !ok {
		p = NewPeer("", netAddr, "")
		t.byAddr[netAddr] = p
	}

	return *p
}

// SetIdentity records the public key and moniker learned during a handshake,
// and indexes the peer by its derived ID.
func (t *Table) SetIdentity(netAddr, pubKeyHex, moniker string) (Peer, bool) {
	t.Lock()
	defer t.Unlock()

	p, ok := t.byAddr[netAddr]
	if !ok {
		return Peer{}, false
	}

	p.PubKeyHex = pubKeyHex
	p.Moniker = moniker
	t.byID[p.ID()] = p

	return *p, true
}

// SetState transitions the record for netAddr to the given state. The zero
// time on a Banned or Disconnected peer's NextRetry is left untouched.
func (t *Table) SetState(netAddr string, state State) (Peer, bool) {
	t.Lock()
	defer t.Unlock()

	p, ok := t.byAddr[netAddr]
	if !ok {
		return Peer{}, false
	}

	p.State = state

	return *p, true
}

// Get returns a copy of the record indexed by peer ID.
func (t *Table) Get(id uint32) (Peer, bool) {
	t.RLock()
	defer t.RUnlock()

	p, ok := t.byID[id]
	if !ok {
		return Peer{}, false
	}

	return *p, true
}

// GetByAddr returns a copy of the record for the address.
func (t *Table) GetByAddr(netAddr string) (Peer, bool) {
	t.RLock()
	defer t.RUnlock()

	p, ok := t.byAddr[netAddr]
	if !ok {
		return Peer{}, false
	}

	return *p, true
}

// Touch records useful traffic from a peer: it refreshes LastSeen and raises
// the score.
func (t *Table) Touch(id uint32) {
	t.Lock()
	defer t.Unlock()

	if p, ok := t.byID[id]; ok {
		p.LastSeen = time.Now()
		p.Score++
	}
}

// Penalize lowers a peer's score, eg. after a protocol violation or a
// dropped send.
func (t *Table) Penalize(id uint32, delta float64) {
	t.Lock()
	defer t.Unlock()

	if p, ok := t.byID[id]; ok {
		p.Score -= delta
	}
}

// RecordFailure increments the failure count of the record for netAddr,
// applies exponential backoff to NextRetry, and returns the new count.
func (t *Table) RecordFailure(netAddr string, backoffBase time.Duration) uint32 {
	t.Lock()
	defer t.Unlock()

	p, ok := t.byAddr[netAddr]
	if !ok {
		return 0
	}

	p.FailureCount++
	p.State = Disconnected

	// 1, 2, 4, 8... times the base, capped at 10 doublings.
	shift := p.FailureCount - 1
	if shift > 10 {
		shift = 10
	}
	p.NextRetry = time.Now().Add(backoffBase << shift)

	return p.FailureCount
}

// ResetFailures clears the failure count after a successful connection.
func (t *Table) ResetFailures(netAddr string) {
	t.Lock()
	defer t.Unlock()

	if p, ok := t.byAddr[netAddr]; ok {
		p.FailureCount = 0
		p.NextRetry = time.Time{}
	}
}

// Ban transitions the record to Banned. Banned records are excluded from
// discovery merges and connection attempts, but kept in the table so the
// address cannot be re-discovered.
func (t *Table) Ban(netAddr string) {
	t.Lock()
	defer t.Unlock()

	if p, ok := t.byAddr[netAddr]; ok {
		p.State = Banned
	}
}

// Remove deletes the record for netAddr.
func (t *Table) Remove(netAddr string) {
	t.Lock()
	defer t.Unlock()

	if p, ok := t.byAddr[netAddr]; ok {
		delete(t.byAddr, netAddr)
		if id := p.ID(); id != 0 {
			delete(t.byID, id)
		}
	}
}

// Connected returns copies of all Connected peers.
func (t *Table) Connected() []Peer {
	t.RLock()
	defer t.RUnlock()

	res := []Peer{}
	for _, p := range t.byAddr {
		if p.State == Connected {
			res = append(res, *p)
		}
	}

	return res
}

// ConnectedLen returns the number of Connected peers.
func (t *Table) ConnectedLen() int {
	t.RLock()
	defer t.RUnlock()

	count := 0
	for _, p := range t.byAddr {
		if p.State == Connected {
			count++
		}
	}

	return count
}

// Snapshot returns copies of all records, sorted by address.
func (t *Table) Snapshot() []Peer {
	t.RLock()
	defer t.RUnlock()

	res := make([]Peer, 0, len(t.byAddr))
	for _, p := range t.byAddr {
		res = append(res, *p)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].NetAddr < res[j].NetAddr
	})

	return res
}

// Len returns the total number of records.
func (t *Table) Len() int {
	t.RLock()
	defer t.RUnlock()

	return len(t.byAddr)
}

// Dialable returns copies of the records that a connection attempt may
// target: Discovered or Disconnected, past their backoff deadline, and not
// Banned.
func (t *Table) Dialable(now time.Time) []Peer {
	t.RLock()
	defer t.RUnlock()

	res := []Peer{}
	for _, p := range t.byAddr {
		if p.State != Discovered && p.State != Disconnected {
			continue
		}
		if now.Before(p.NextRetry) {
			continue
		}
		res = append(res, *p)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].NetAddr < res[j].NetAddr
	})

	return res
}

// LowestRanked returns the addresses of the n lowest-ranked Connected peers.
func (t *Table) LowestRanked(n int) []string {
	t.RLock()
	defer t.RUnlock()

	connected := []*Peer{}
	for _, p := range t.byAddr {
		if p.State == Connected {
			connected = append(connected, p)
		}
	}

	now := time.Now()
	sort.Slice(connected, func(i, j int) bool {
		ri, rj := connected[i].Rank(now), connected[j].Rank(now)
		if ri != rj {
			return ri < rj
		}
		return connected[i].NetAddr < connected[j].NetAddr
	})

	if n > len(connected) {
		n = len(connected)
	}

	res := make([]string, 0, n)
	for _, p := range connected[:n] {
		res = append(res, p.NetAddr)
	}

	return res
}

// Stale returns the addresses of Disconnected records whose last traffic is
// older than the cutoff. Records without any recorded traffic are aged by
// NextRetry instead.
func (t *Table) Stale(cutoff time.Time) []string {
	t.RLock()
	defer t.RUnlock()

	res := []string{}
	for _, p := range t.byAddr {
		if p.State != Disconnected {
			continue
		}
		last := p.LastSeen
		if last.IsZero() {
			last = p.NextRetry
		}
		if !last.IsZero() && last.Before(cutoff) {
			res = append(res, p.NetAddr)
		}
	}

	return res
}
