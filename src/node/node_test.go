package node

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chaincraft/chaincraft/src/config"
	"github.com/chaincraft/chaincraft/src/consensus"
	"github.com/chaincraft/chaincraft/src/crypto/keys"
	"github.com/chaincraft/chaincraft/src/net"
	"github.com/chaincraft/chaincraft/src/object"
	"github.com/chaincraft/chaincraft/src/peers"
	"github.com/chaincraft/chaincraft/src/store"
)

// countingValidator wraps a Validator and counts Validate calls, to assert
// that deduplication prevents repeated validation of the same object.
type countingValidator struct {
	inner consensus.Validator
	count int32
}

func (v *countingValidator) Validate(obj *object.SharedObject, view consensus.StateView) consensus.Decision {
	atomic.AddInt32(&v.count, 1)
	return v.inner.Validate(obj, view)
}

func (v *countingValidator) Count() int {
	return int(atomic.LoadInt32(&v.count))
}

type testNode struct {
	node      *Node
	trans     *net.InmemTransport
	addr      string
	validator *countingValidator
}

func newTestNode(t *testing.T, moniker string) *testNode {
	conf := config.NewTestConfig(t)

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	addr, trans := net.NewInmemTransport("")

	validator := &countingValidator{inner: consensus.NewAppendValidator()}

	n := NewNode(
		conf,
		NewIdentity(key, moniker),
		nil,
		store.NewInmemStore(),
		trans,
		validator,
	)

	if err := n.Init(); err != nil {
		t.Fatal(err)
	}

	return &testNode{
		node:      n,
		trans:     trans,
		addr:      addr,
		validator: validator,
	}
}

// link wires two in-memory transports both ways.
func link(a, b *testNode) {
	a.trans.Connect(b.addr, b.trans)
	b.trans.Connect(a.addr, a.trans)
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

// addFakePeer registers a bare transport as a Connected peer in the node's
// table, so gossip fan-out can be observed without a full second node.
func addFakePeer(t *testing.T, n *Node, moniker string) (string, *net.InmemTransport, uint32) {
	addr, trans := net.NewInmemTransport("")
	n.trans.(*net.InmemTransport).Connect(addr, trans)

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	n.table.Upsert(addr)
	p, ok := n.table.SetIdentity(addr, keys.PublicKeyHex(&key.PublicKey), moniker)
	if !ok {
		t.Fatalf("SetIdentity failed for %s", addr)
	}
	n.table.SetState(addr, peers.Connected)
	n.table.Touch(p.ID())

	return addr, trans, p.ID()
}

func TestSubmitLocalRoundTrip(t *testing.T) {
	tn := newTestNode(t, "node0")
	defer tn.node.Shutdown()

	payload := []byte("hello chain")

	digest, err := tn.node.SubmitLocal(object.Transaction, payload)
	if err != nil {
		t.Fatal(err)
	}

	obj, err := tn.node.GetObject(digest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(obj.Payload, payload) {
		t.Fatalf("payload mismatch: %s", obj.Payload)
	}
	if obj.Kind != object.Transaction {
		t.Fatalf("kind mismatch: %v", obj.Kind)
	}

	// resubmitting the same payload is a no-op
	digest2, err := tn.node.SubmitLocal(object.Transaction, payload)
	if err != nil {
		t.Fatal(err)
	}
	if digest2 != digest {
		t.Fatalf("digest mismatch: %s %s", digest, digest2)
	}
	if tn.validator.Count() != 1 {
		t.Fatalf("expected 1 validation, got %d", tn.validator.Count())
	}
}

func TestGossipPropagation(t *testing.T) {
	n1 := newTestNode(t, "node1")
	defer n1.node.Shutdown()
	n2 := newTestNode(t, "node2")
	defer n2.node.Shutdown()

	link(n1, n2)

	n1.node.RunAsync(false)
	n2.node.RunAsync(false)

	n1.node.peerManager.MergeAddrs([]string{n2.addr})
	if !n1.node.peerManager.Connect(n2.addr) {
		t.Fatalf("handshake with %s failed", n2.addr)
	}

	payload := []byte("propagate me")
	digest, err := n1.node.SubmitLocal(object.Transaction, payload)
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "object on node2", func() bool {
		obj, err := n2.node.GetObject(digest)
		return err == nil && bytes.Equal(obj.Payload, payload)
	})

	// each node validated the object exactly once
	if n1.validator.Count() != 1 {
		t.Fatalf("node1 validations: %d", n1.validator.Count())
	}
	if n2.validator.Count() != 1 {
		t.Fatalf("node2 validations: %d", n2.validator.Count())
	}
}

func TestGossipPropagationChain(t *testing.T) {
	nodes := []*testNode{
		newTestNode(t, "node1"),
		newTestNode(t, "node2"),
		newTestNode(t, "node3"),
	}
	for _, tn := range nodes {
		defer tn.node.Shutdown()
		tn.node.RunAsync(false)
	}

	// line topology: node1 - node2 - node3
	link(nodes[0], nodes[1])
	link(nodes[1], nodes[2])

	nodes[0].node.peerManager.MergeAddrs([]string{nodes[1].addr})
	if !nodes[0].node.peerManager.Connect(nodes[1].addr) {
		t.Fatalf("node1-node2 handshake failed")
	}
	nodes[1].node.peerManager.MergeAddrs([]string{nodes[2].addr})
	if !nodes[1].node.peerManager.Connect(nodes[2].addr) {
		t.Fatalf("node2-node3 handshake failed")
	}

	digest, err := nodes[0].node.SubmitLocal(object.Transaction, []byte("end to end"))
	if err != nil {
		t.Fatal(err)
	}

	for i, tn := range nodes {
		tn := tn
		waitFor(t, 5*time.Second, fmt.Sprintf("object on node%d", i+1), func() bool {
			_, err := tn.node.GetObject(digest)
			return err == nil
		})
	}

	for i, tn := range nodes {
		if tn.validator.Count() != 1 {
			t.Fatalf("node%d validations: %d", i+1, tn.validator.Count())
		}
	}
}

func TestHandshakePeerExchange(t *testing.T) {
	n1 := newTestNode(t, "node1")
	defer n1.node.Shutdown()
	n2 := newTestNode(t, "node2")
	defer n2.node.Shutdown()

	link(n1, n2)

	n2.node.RunAsync(false)

	// node2 knows about a third address
	third := "10.0.0.9:1337"
	n2.node.peerManager.MergeAddrs([]string{third})

	n1.node.peerManager.MergeAddrs([]string{n2.addr})
	if !n1.node.peerManager.Connect(n2.addr) {
		t.Fatalf("handshake failed")
	}

	// both sides see each other Connected
	p, ok := n1.node.table.GetByAddr(n2.addr)
	if !ok || p.State != peers.Connected {
		t.Fatalf("node2 not connected in node1's table: %v", p.State)
	}
	p, ok = n2.node.table.GetByAddr(n1.addr)
	if !ok || p.State != peers.Connected {
		t.Fatalf("node1 not connected in node2's table: %v", p.State)
	}

	// and the handshake carried node2's known addresses
	p, ok = n1.node.table.GetByAddr(third)
	if !ok || p.State != peers.Discovered {
		t.Fatalf("third address not discovered through handshake")
	}
}

func TestNoRebroadcastToSender(t *testing.T) {
	tn := newTestNode(t, "node0")
	defer tn.node.Shutdown()

	_, transA, idA := addFakePeer(t, tn.node, "peerA")
	_, transB, _ := addFakePeer(t, tn.node, "peerB")

	obj := object.New(object.Transaction, []byte("from peer A"))

	if err := tn.node.receiveObject(obj.ToWire(), idA); err != nil {
		t.Fatal(err)
	}

	// peer B gets the announce
	select {
	case rpc := <-transB.Consumer():
		req, ok := rpc.Command.(*net.AnnounceRequest)
		if !ok {
			t.Fatalf("expected AnnounceRequest, got %T", rpc.Command)
		}
		if req.Digest != obj.Digest {
			t.Fatalf("announced digest mismatch: %s", req.Digest)
		}
		rpc.Respond(&net.AnnounceResponse{FromID: 0, Known: true}, nil)
	case <-time.After(2 * time.Second):
		t.Fatalf("peer B never received the announce")
	}

	// the sender, peer A, must not
	select {
	case rpc := <-transA.Consumer():
		t.Fatalf("peer A received %T, expected nothing", rpc.Command)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestLocalSubmitPushedToPeers(t *testing.T) {
	tn := newTestNode(t, "node0")
	defer tn.node.Shutdown()

	_, transB, _ := addFakePeer(t, tn.node, "peerB")

	digest, err := tn.node.SubmitLocal(object.Transaction, []byte("hot off the press"))
	if err != nil {
		t.Fatal(err)
	}

	// a locally submitted object is pushed whole, not announced
	select {
	case rpc := <-transB.Consumer():
		req, ok := rpc.Command.(*net.PushRequest)
		if !ok {
			t.Fatalf("expected PushRequest, got %T", rpc.Command)
		}
		if req.Object.Digest != digest {
			t.Fatalf("pushed digest mismatch: %s", req.Object.Digest)
		}
		rpc.Respond(&net.PushResponse{FromID: 0, Accepted: true}, nil)
	case <-time.After(2 * time.Second):
		t.Fatalf("peer B never received the push")
	}
}

func TestMaintenanceCyclesDoNotOverlap(t *testing.T) {
	tn := newTestNode(t, "node0")
	defer tn.node.Shutdown()

	// a discovered peer with no transport route: any connection attempt
	// fails and is recorded
	tn.node.table.Upsert("10.0.0.9:1337")

	// while a cycle is marked in progress, a new tick must not start another
	atomic.StoreInt32(&tn.node.maintaining, 1)
	tn.node.runMaintenance()

	p, _ := tn.node.table.GetByAddr("10.0.0.9:1337")
	if p.FailureCount != 0 {
		t.Fatalf("maintenance ran while another cycle was in progress")
	}

	atomic.StoreInt32(&tn.node.maintaining, 0)
	tn.node.runMaintenance()

	p, _ = tn.node.table.GetByAddr("10.0.0.9:1337")
	if p.FailureCount != 1 {
		t.Fatalf("expected one connection attempt, got %d failures", p.FailureCount)
	}
}

func TestDuplicateObjectValidatedOnce(t *testing.T) {
	tn := newTestNode(t, "node0")
	defer tn.node.Shutdown()

	_, _, idA := addFakePeer(t, tn.node, "peerA")
	_, _, idB := addFakePeer(t, tn.node, "peerB")

	obj := object.New(object.Transaction, []byte("seen twice"))

	if err := tn.node.receiveObject(obj.ToWire(), idA); err != nil {
		t.Fatal(err)
	}
	if err := tn.node.receiveObject(obj.ToWire(), idB); err != nil {
		t.Fatal(err)
	}

	if tn.validator.Count() != 1 {
		t.Fatalf("expected 1 validation, got %d", tn.validator.Count())
	}
	if got := tn.node.engine.CommittedLen(); got != 1 {
		t.Fatalf("expected 1 committed object, got %d", got)
	}
}

func TestCorruptObjectPenalizesSender(t *testing.T) {
	tn := newTestNode(t, "node0")
	defer tn.node.Shutdown()

	addrA, _, idA := addFakePeer(t, tn.node, "peerA")

	before, _ := tn.node.table.GetByAddr(addrA)

	w := object.Wire{
		Digest:  "not-the-hash",
		Kind:    object.Transaction,
		Payload: []byte("payload"),
	}

	if err := tn.node.receiveObject(w, idA); err == nil {
		t.Fatalf("expected integrity error")
	}

	after, _ := tn.node.table.GetByAddr(addrA)
	if after.Score >= before.Score {
		t.Fatalf("sender was not penalized: %f -> %f", before.Score, after.Score)
	}

	// nothing was validated or committed
	if tn.validator.Count() != 0 {
		t.Fatalf("corrupt object reached the validator")
	}
}

func TestDeferredResolvedAfterDependency(t *testing.T) {
	tn := newTestNode(t, "node0")
	defer tn.node.Shutdown()

	dep := object.New(object.Transaction, []byte("the dependency"))

	env := &object.Envelope{
		Data: []byte("the child"),
		Deps: []string{dep.Digest},
	}
	childPayload, err := env.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	childDigest, err := tn.node.SubmitLocal(object.Transaction, childPayload)
	if err != nil {
		t.Fatal(err)
	}

	// the child is parked, not committed
	if _, err := tn.node.GetObject(childDigest); !store.IsKeyNotFound(err) {
		t.Fatalf("child should not be committed yet: %v", err)
	}
	if tn.node.pending.Len() != 1 {
		t.Fatalf("pending: %d", tn.node.pending.Len())
	}

	// accepting the dependency resubmits the child
	depDigest, err := tn.node.SubmitLocal(object.Transaction, dep.Payload)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := tn.node.GetObject(childDigest); err != nil {
		t.Fatalf("child not committed after dependency: %v", err)
	}

	depOrder, _ := tn.node.engine.OrderOf(depDigest)
	childOrder, _ := tn.node.engine.OrderOf(childDigest)
	if childOrder <= depOrder {
		t.Fatalf("child order %d should follow dependency order %d", childOrder, depOrder)
	}
}

func TestEnforceCapacity(t *testing.T) {
	tn := newTestNode(t, "node0")
	defer tn.node.Shutdown()

	tn.node.conf.MaxPeers = 2

	addrA, _, idA := addFakePeer(t, tn.node, "peerA")
	addrB, _, idB := addFakePeer(t, tn.node, "peerB")
	addrC, _, idC := addFakePeer(t, tn.node, "peerC")

	// peer B is the least useful
	tn.node.table.Touch(idA)
	tn.node.table.Touch(idC)
	tn.node.table.Penalize(idB, 50)

	tn.node.peerManager.EnforceCapacity()

	if tn.node.table.ConnectedLen() != 2 {
		t.Fatalf("connected: %d", tn.node.table.ConnectedLen())
	}

	p, _ := tn.node.table.GetByAddr(addrB)
	if p.State != peers.Disconnected {
		t.Fatalf("peer B should be evicted, state %v", p.State)
	}
	for _, addr := range []string{addrA, addrC} {
		p, _ := tn.node.table.GetByAddr(addr)
		if p.State != peers.Connected {
			t.Fatalf("peer %s should stay connected, state %v", addr, p.State)
		}
	}
}

func TestStats(t *testing.T) {
	tn := newTestNode(t, "node0")
	defer tn.node.Shutdown()

	if _, err := tn.node.SubmitLocal(object.Transaction, []byte("tx1")); err != nil {
		t.Fatal(err)
	}

	stats := tn.node.GetStats()
	if stats["committed_objects"] != "1" {
		t.Fatalf("committed_objects: %s", stats["committed_objects"])
	}
	if stats["moniker"] != "node0" {
		t.Fatalf("moniker: %s", stats["moniker"])
	}
	if stats["state"] != "Running" {
		t.Fatalf("state: %s", stats["state"])
	}
}
