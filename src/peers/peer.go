package peers

import (
	"time"

	"github.com/chaincraft/chaincraft/src/common"
	"github.com/chaincraft/chaincraft/src/crypto/keys"
)

// State is the lifecycle state of a peer record.
type State uint32

const (
	// Discovered means the address is known but no connection was attempted.
	Discovered State = iota
	// Connecting means a handshake is in flight.
	Connecting
	// Connected means the peer answered a handshake and is part of the
	// gossip fan-out.
	Connected
	// Disconnected means the connection was closed or timed out.
	Disconnected
	// Banned means the peer exceeded the failure threshold or violated the
	// protocol; it is excluded from discovery merges.
	Banned
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Discovered:
		return "Discovered"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	case Banned:
		return "Banned"
	default:
		return "Unknown"
	}
}

// Peer is the record the node keeps about another node. The table in this
// package owns all mutations; other components treat peers as read-only
// snapshots.
type Peer struct {
	NetAddr   string
	PubKeyHex string
	Moniker   string

	// State transitions are driven exclusively by the peer manager.
	State State `json:"-"`

	// LastSeen is the time of the last useful traffic from this peer.
	LastSeen time.Time `json:"-"`

	// FailureCount is the number of consecutive connection failures.
	FailureCount uint32 `json:"-"`

	// NextRetry is the earliest time a new connection attempt is allowed,
	// as determined by exponential backoff.
	NextRetry time.Time `json:"-"`

	// Score reflects the usefulness of the peer's traffic. It is raised on
	// useful deliveries and lowered on protocol violations or drops.
	Score float64 `json:"-"`

	id uint32
}

// NewPeer instantiates a peer record.
func NewPeer(pubKeyHex, netAddr, moniker string) *Peer {
	return &Peer{
		PubKeyHex: pubKeyHex,
		NetAddr:   netAddr,
		Moniker:   moniker,
		State:     Discovered,
	}
}

// ID returns a compact identifier derived from the peer's public key. It is 0
// until the public key is known, ie. before the first successful handshake.
func (p *Peer) ID() uint32 {
	if p.id == 0 && p.PubKeyHex != "" {
		pubBytes, err := p.PubKeyBytes()
		if err != nil {
			return 0
		}
		p.id = keys.PublicKeyID(pubBytes)
	}
	return p.id
}

// PubKeyBytes returns the raw public key bytes.
func (p *Peer) PubKeyBytes() ([]byte, error) {
	return common.DecodeFromString(p.PubKeyHex)
}

// Rank combines score, failure history, and recency into a single sortable
// value used by capacity eviction: higher is better.
func (p *Peer) Rank(now time.Time) float64 {
	rank := p.Score - float64(p.FailureCount)

	// Degrade by staleness, one point per minute without traffic.
	if !p.LastSeen.IsZero() {
		rank -= now.Sub(p.LastSeen).Minutes()
	}

	return rank
}

// ExcludePeer filters a single peer, identified by ID, out of a peer slice.
func ExcludePeer(ps []Peer, id uint32) []Peer {
	others := make([]Peer, 0, len(ps))
	for _, p := range ps {
		if p.ID() != id {
			others = append(others, p)
		}
	}
	return others
}
