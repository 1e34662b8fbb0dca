package node

import (
	"time"

	"github.com/chaincraft/chaincraft/src/config"
	"github.com/chaincraft/chaincraft/src/net"
	"github.com/chaincraft/chaincraft/src/peers"
	"github.com/sirupsen/logrus"
)

const (
	// banFailureThreshold is the number of consecutive connection failures
	// after which a peer is banned.
	banFailureThreshold = 10

	// knownAddrsSample is the max number of peer addresses exchanged in a
	// handshake.
	knownAddrsSample = 16

	// staleFactor times PeerTimeout is how long a Disconnected record
	// survives before it is removed from the table.
	staleFactor = 10
)

// PeerManager owns the peer table and drives every record through its
// lifecycle: discovery, handshake, liveness, backoff, ban, and capacity
// eviction. The gossip path only ever reads Connected snapshots.
type PeerManager struct {
	conf     *config.Config
	identity *Identity
	table    *peers.Table
	trans    net.Transport
	sender   *sender
	logger   *logrus.Entry
}

// NewPeerManager instantiates a PeerManager.
func NewPeerManager(
	conf *config.Config,
	identity *Identity,
	table *peers.Table,
	trans net.Transport,
	sender *sender,
	logger *logrus.Entry,
) *PeerManager {
	return &PeerManager{
		conf:     conf,
		identity: identity,
		table:    table,
		trans:    trans,
		sender:   sender,
		logger:   logger,
	}
}

// MergeAddrs records newly discovered addresses as Discovered peers. Our own
// address is skipped; Banned records are not resurrected by the table.
func (pm *PeerManager) MergeAddrs(addrs []string) {
	self := pm.trans.AdvertiseAddr()
	for _, addr := range addrs {
		if addr == "" || addr == self {
			continue
		}
		pm.table.Upsert(addr)
	}
}

// ConnectDialable attempts a handshake with every peer that is currently
// allowed a connection attempt, respecting backoff deadlines, up to the
// connected-peer budget.
func (pm *PeerManager) ConnectDialable() {
	budget := pm.conf.MaxPeers - pm.table.ConnectedLen()

	for _, p := range pm.table.Dialable(time.Now()) {
		if budget <= 0 {
			return
		}
		if pm.Connect(p.NetAddr) {
			budget--
		}
	}
}

// Connect performs a handshake with the peer at netAddr and reports success.
// Failures increment the failure count, push back the retry deadline, and
// eventually ban the peer.
func (pm *PeerManager) Connect(netAddr string) bool {
	pm.table.SetState(netAddr, peers.Connecting)

	args := net.HandshakeRequest{
		FromID:        pm.identity.ID(),
		PubKeyHex:     pm.identity.PublicKeyHex(),
		Moniker:       pm.identity.Moniker,
		AdvertiseAddr: pm.trans.AdvertiseAddr(),
		KnownAddrs:    pm.KnownSample(netAddr),
	}

	var resp net.HandshakeResponse
	err := pm.trans.Handshake(netAddr, &args, &resp)
	if err != nil || !resp.Accepted {
		if err != nil {
			pm.logger.WithFields(logrus.Fields{
				"peer":  netAddr,
				"error": err,
			}).Debug("Handshake failed")
		}
		pm.fail(netAddr)
		return false
	}

	p, ok := pm.table.SetIdentity(netAddr, resp.PubKeyHex, resp.Moniker)
	if !ok {
		return false
	}

	pm.table.SetState(netAddr, peers.Connected)
	pm.table.ResetFailures(netAddr)
	pm.table.Touch(p.ID())

	pm.MergeAddrs(resp.KnownAddrs)

	pm.logger.WithFields(logrus.Fields{
		"peer":    netAddr,
		"peer_id": p.ID(),
		"moniker": resp.Moniker,
	}).Debug("Connected")

	return true
}

// HandleHandshake processes an inbound handshake: the requester enters the
// table as Connected, its known addresses are merged, and the response
// carries our identity plus a sample of our own known addresses.
func (pm *PeerManager) HandleHandshake(req *net.HandshakeRequest) *net.HandshakeResponse {
	resp := &net.HandshakeResponse{
		FromID:    pm.identity.ID(),
		PubKeyHex: pm.identity.PublicKeyHex(),
		Moniker:   pm.identity.Moniker,
	}

	addr := req.AdvertiseAddr
	if addr == "" || addr == pm.trans.AdvertiseAddr() {
		return resp
	}

	p := pm.table.Upsert(addr)
	if p.State == peers.Banned {
		return resp
	}

	if _, ok := pm.table.SetIdentity(addr, req.PubKeyHex, req.Moniker); !ok {
		return resp
	}
	pm.table.SetState(addr, peers.Connected)
	pm.table.ResetFailures(addr)
	pm.table.Touch(req.FromID)

	pm.MergeAddrs(req.KnownAddrs)

	resp.KnownAddrs = pm.KnownSample(addr)
	resp.Accepted = true

	return resp
}

// Heartbeat pings connected peers that have been silent for half the peer
// timeout. A peer whose silence exceeds the full timeout, and whose ping
// fails, is disconnected with backoff.
func (pm *PeerManager) Heartbeat() {
	now := time.Now()

	for _, p := range pm.table.Connected() {
		if now.Sub(p.LastSeen) < pm.conf.PeerTimeout/2 {
			continue
		}

		args := net.PingRequest{FromID: pm.identity.ID()}
		var resp net.PongResponse
		if err := pm.trans.Ping(p.NetAddr, &args, &resp); err != nil {
			pm.logger.WithFields(logrus.Fields{
				"peer":  p.NetAddr,
				"error": err,
			}).Debug("Ping failed")
			pm.Disconnect(p.NetAddr)
			continue
		}

		pm.table.Touch(p.ID())
	}
}

// Disconnect transitions a peer out of the fan-out set and discards its
// outbound queue. The record stays in the table with a backoff deadline.
func (pm *PeerManager) Disconnect(netAddr string) {
	pm.fail(netAddr)
	pm.sender.Drop(netAddr)
}

// Ban excludes a peer permanently and discards its outbound queue.
func (pm *PeerManager) Ban(netAddr string) {
	pm.table.Ban(netAddr)
	pm.sender.Drop(netAddr)

	pm.logger.WithField("peer", netAddr).Warn("Peer banned")
}

// EnforceCapacity evicts the lowest-ranked connected peers until the
// connected count is within the max-peers budget.
func (pm *PeerManager) EnforceCapacity() {
	over := pm.table.ConnectedLen() - pm.conf.MaxPeers
	if over <= 0 {
		return
	}

	for _, addr := range pm.table.LowestRanked(over) {
		pm.logger.WithField("peer", addr).Debug("Evicting peer over capacity")
		pm.table.SetState(addr, peers.Disconnected)
		pm.sender.Drop(addr)
	}
}

// CleanupStale removes Disconnected records that have been silent for
// staleFactor times the peer timeout.
func (pm *PeerManager) CleanupStale() {
	cutoff := time.Now().Add(-staleFactor * pm.conf.PeerTimeout)
	for _, addr := range pm.table.Stale(cutoff) {
		pm.logger.WithField("peer", addr).Debug("Removing stale peer")
		pm.table.Remove(addr)
	}
}

// KnownSample returns a bounded sample of known peer addresses for a
// handshake, excluding the handshake counterparty, banned records, and our
// own address.
func (pm *PeerManager) KnownSample(exclude string) []string {
	sample := []string{}
	for _, p := range pm.table.Snapshot() {
		if len(sample) >= knownAddrsSample {
			break
		}
		if p.NetAddr == exclude || p.State == peers.Banned {
			continue
		}
		sample = append(sample, p.NetAddr)
	}
	return sample
}

// fail records a connection failure and bans the peer past the failure
// threshold.
func (pm *PeerManager) fail(netAddr string) {
	count := pm.table.RecordFailure(netAddr, pm.conf.BackoffBase)
	if count >= banFailureThreshold {
		pm.Ban(netAddr)
	}
}
