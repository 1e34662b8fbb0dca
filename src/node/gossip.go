package node

import (
	"fmt"
	"time"

	"github.com/chaincraft/chaincraft/src/consensus"
	"github.com/chaincraft/chaincraft/src/crypto"
	"github.com/chaincraft/chaincraft/src/gossip"
	"github.com/chaincraft/chaincraft/src/net"
	"github.com/chaincraft/chaincraft/src/object"
	"github.com/chaincraft/chaincraft/src/peers"
	"github.com/chaincraft/chaincraft/src/store"
	"github.com/sirupsen/logrus"
)

const (
	// protocolViolationPenalty is the score penalty for sending a payload
	// that does not hash to its advertised digest.
	protocolViolationPenalty = 5

	// queueDropPenalty is the score penalty applied when a send to a peer is
	// dropped on its full queue.
	queueDropPenalty = 1
)

// processRPC dispatches a single inbound RPC.
func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.HandshakeRequest:
		rpc.Respond(n.peerManager.HandleHandshake(cmd), nil)
	case *net.AnnounceRequest:
		rpc.Respond(n.handleAnnounce(cmd), nil)
	case *net.ObjectRequest:
		rpc.Respond(n.handleObjectRequest(cmd), nil)
	case *net.PushRequest:
		rpc.Respond(n.handlePush(cmd), nil)
	case *net.PingRequest:
		rpc.Respond(&net.PongResponse{FromID: n.ID()}, nil)
	default:
		n.logger.WithField("command", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

// handleAnnounce answers an Announce. A digest we already hold is ignored; a
// novel one triggers a pull from the announcer. Payload bytes are never
// pushed speculatively.
func (n *Node) handleAnnounce(cmd *net.AnnounceRequest) *net.AnnounceResponse {
	known := n.dedup.Contains(cmd.Digest)
	if !known {
		if held, err := n.store.Contains(cmd.Digest); err == nil && held {
			known = true
		}
	}

	resp := &net.AnnounceResponse{
		FromID: n.ID(),
		Known:  known,
		Wanted: !known,
	}

	if known {
		return resp
	}

	from := cmd.FromAddr
	fromID := cmd.FromID
	digest := cmd.Digest

	ok := n.sender.Enqueue(from, func() {
		n.pull(from, fromID, digest)
	})
	if !ok {
		n.metrics.droppedSends.Inc()
		n.table.Penalize(fromID, queueDropPenalty)
	}

	return resp
}

// pull requests the payload behind an announced digest.
func (n *Node) pull(from string, fromID uint32, digest string) {
	args := net.ObjectRequest{
		FromID: n.ID(),
		Digest: digest,
	}

	var resp net.ObjectResponse
	if err := n.trans.RequestObject(from, &args, &resp); err != nil {
		n.logger.WithFields(logrus.Fields{
			"peer":  from,
			"error": err,
		}).Debug("RequestObject failed")
		return
	}

	if !resp.Found {
		return
	}

	n.receiveObject(resp.Object, fromID)
}

// handleObjectRequest serves a previously announced object. A digest we do
// not hold is not an error; the requester simply gets Found=false.
func (n *Node) handleObjectRequest(cmd *net.ObjectRequest) *net.ObjectResponse {
	resp := &net.ObjectResponse{FromID: n.ID()}

	obj, err := n.GetObject(cmd.Digest)
	if err != nil {
		if !store.IsKeyNotFound(err) {
			n.logger.WithError(err).Error("Reading object from store")
		}
		return resp
	}

	resp.Found = true
	resp.Object = obj.ToWire()

	return resp
}

// handlePush ingests an unsolicited object.
func (n *Node) handlePush(cmd *net.PushRequest) *net.PushResponse {
	err := n.receiveObject(cmd.Object, cmd.FromID)

	return &net.PushResponse{
		FromID:   n.ID(),
		Accepted: err == nil,
	}
}

// receiveObject is the single entry point for payloads coming off the wire:
// integrity check, dedup, then consensus submission.
func (n *Node) receiveObject(w object.Wire, fromID uint32) error {
	n.metrics.objectsReceived.Inc()

	obj := object.FromWire(w, fromID)

	if !obj.Valid() {
		n.metrics.integrityFailures.Inc()
		n.table.Penalize(fromID, protocolViolationPenalty)

		err := gossip.WireIntegrityError{
			Advertised: obj.Digest,
			Computed:   crypto.Digest(obj.Payload),
		}
		n.logger.WithFields(logrus.Fields{
			"peer_id": fromID,
			"error":   err,
		}).Warn("Dropping corrupt object")

		return err
	}

	if !n.dedup.Insert(obj.Digest) {
		n.metrics.duplicateObjects.Inc()
		return nil
	}

	n.table.Touch(fromID)
	n.submit(obj)

	return nil
}

// submit runs an object through the consensus engine and acts on the
// decision.
func (n *Node) submit(obj *object.SharedObject) {
	decision := n.engine.Submit(obj)

	switch decision.Outcome {
	case consensus.Accepted:
		n.commit(obj, decision)
	case consensus.Rejected:
		n.metrics.objectsRejected.Inc()
		n.pending.Forget(obj.Digest)
		n.logger.WithFields(logrus.Fields{
			"digest": obj.Digest,
			"reason": decision.Reason,
		}).Debug("Object rejected")
	case consensus.Deferred:
		n.metrics.objectsDeferred.Inc()
		ok, dropped := n.pending.Defer(obj, decision.Missing)
		if !ok {
			n.logger.WithFields(logrus.Fields{
				"digest":  obj.Digest,
				"missing": decision.Missing,
			}).Debug("Dropping object, retry budget exhausted")
		}
		for _, d := range dropped {
			n.metrics.pendingDropped.Inc()
			n.logger.WithField("digest", d.Digest).Warn("Dropping oldest pending object, pending set over capacity")
		}
	}
}

// commit persists an accepted object, fans it out, and resubmits any objects
// that were waiting on it.
func (n *Node) commit(obj *object.SharedObject, decision consensus.Decision) {
	data, err := obj.Marshal()
	if err != nil {
		n.logger.WithError(err).Error("Marshalling accepted object")
		return
	}
	if err := n.store.Put(obj.Digest, data); err != nil {
		n.logger.WithError(err).Error("Persisting accepted object")
		return
	}

	n.pending.Forget(obj.Digest)
	n.metrics.objectsAccepted.Inc()

	n.logger.WithFields(logrus.Fields{
		"digest": obj.Digest,
		"kind":   obj.Kind.String(),
		"order":  decision.OrderIndex,
	}).Debug("Object committed")

	if obj.OriginPeer == n.ID() {
		n.push(obj)
	} else {
		n.announce(obj)
	}

	for _, waiter := range n.pending.Resolve(obj.Digest) {
		n.submit(waiter)
	}
}

// push delivers a locally submitted object to every connected peer directly,
// skipping the announce/pull round-trip: the payload is already novel to the
// network, so announcing it first only adds a hop.
func (n *Node) push(obj *object.SharedObject) {
	args := net.PushRequest{
		FromID:   n.ID(),
		FromAddr: n.trans.AdvertiseAddr(),
		Object:   obj.ToWire(),
	}

	for _, p := range n.table.Connected() {
		p := p
		ok := n.sender.Enqueue(p.NetAddr, func() {
			var resp net.PushResponse
			if err := n.trans.Push(p.NetAddr, &args, &resp); err != nil {
				n.logger.WithFields(logrus.Fields{
					"peer":  p.NetAddr,
					"error": err,
				}).Debug("Push failed")
			}
		})

		if ok {
			n.metrics.pushesSent.Inc()
		} else {
			n.metrics.droppedSends.Inc()
			n.table.Penalize(p.ID(), queueDropPenalty)
		}
	}
}

// announce advertises a committed object to every connected peer except the
// one it came from.
func (n *Node) announce(obj *object.SharedObject) {
	targets := peers.ExcludePeer(n.table.Connected(), obj.OriginPeer)

	args := net.AnnounceRequest{
		FromID:   n.ID(),
		FromAddr: n.trans.AdvertiseAddr(),
		Digest:   obj.Digest,
		Kind:     obj.Kind,
	}

	for _, p := range targets {
		p := p
		ok := n.sender.Enqueue(p.NetAddr, func() {
			var resp net.AnnounceResponse
			if err := n.trans.Announce(p.NetAddr, &args, &resp); err != nil {
				n.logger.WithFields(logrus.Fields{
					"peer":  p.NetAddr,
					"error": err,
				}).Debug("Announce failed")
			}
		})

		if ok {
			n.metrics.announcesSent.Inc()
		} else {
			n.metrics.droppedSends.Inc()
			n.table.Penalize(p.ID(), queueDropPenalty)
		}
	}
}

// SubmitLocal ingests a locally originated payload, as if received from a
// virtual self peer, and returns its digest. Resubmitting a payload that is
// already in flight or committed is a no-op.
func (n *Node) SubmitLocal(kind object.Kind, payload []byte) (string, error) {
	if n.getState() == Shutdown {
		return "", fmt.Errorf("node is shut down")
	}

	obj := object.New(kind, payload)
	obj.OriginPeer = n.ID()
	obj.ReceivedAt = time.Now()

	if !n.dedup.Insert(obj.Digest) {
		return obj.Digest, nil
	}

	n.submit(obj)

	return obj.Digest, nil
}

// GetObject reads a committed object back from the store.
func (n *Node) GetObject(digest string) (*object.SharedObject, error) {
	data, err := n.store.Get(digest)
	if err != nil {
		return nil, err
	}

	obj := &object.SharedObject{}
	if err := obj.Unmarshal(data); err != nil {
		return nil, err
	}

	return obj, nil
}
