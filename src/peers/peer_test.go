package peers

import (
	"testing"
	"time"

	"github.com/chaincraft/chaincraft/src/crypto/keys"
)

func TestPeerID(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()
	pubHex := keys.PublicKeyHex(&key.PublicKey)

	p := NewPeer(pubHex, "127.0.0.1:1337", "node0")

	if p.ID() == 0 {
		t.Fatalf("ID should not be 0 for a peer with a public key")
	}

	anon := NewPeer("", "127.0.0.1:1338", "")
	if anon.ID() != 0 {
		t.Fatalf("ID should be 0 before the public key is known")
	}
}

func TestExcludePeer(t *testing.T) {
	ps := []Peer{}
	for i := 0; i < 3; i++ {
		key, _ := keys.GenerateECDSAKey()
		p := NewPeer(keys.PublicKeyHex(&key.PublicKey), "addr", "")
		ps = append(ps, *p)
	}

	excluded := ps[1].ID()

	others := ExcludePeer(ps, excluded)

	if len(others) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(others))
	}
	for _, p := range others {
		if p.ID() == excluded {
			t.Fatalf("excluded peer still present")
		}
	}
}

func TestRank(t *testing.T) {
	now := time.Now()

	fresh := Peer{Score: 5, LastSeen: now}
	stale := Peer{Score: 5, LastSeen: now.Add(-10 * time.Minute)}
	failing := Peer{Score: 5, LastSeen: now, FailureCount: 3}

	if fresh.Rank(now) <= stale.Rank(now) {
		t.Fatalf("fresh peer should outrank stale peer")
	}
	if fresh.Rank(now) <= failing.Rank(now) {
		t.Fatalf("clean peer should outrank failing peer")
	}
}
