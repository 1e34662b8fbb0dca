package node

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/chaincraft/chaincraft/src/config"
	"github.com/chaincraft/chaincraft/src/consensus"
	"github.com/chaincraft/chaincraft/src/gossip"
	"github.com/chaincraft/chaincraft/src/net"
	"github.com/chaincraft/chaincraft/src/peers"
	"github.com/chaincraft/chaincraft/src/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Node is the chaincraft service object. It owns the peer table, the dedup
// cache, and the consensus engine, and it is torn down as a unit by Shutdown.
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	identity *Identity

	table       *peers.Table
	peerManager *PeerManager

	engine  *consensus.Engine
	dedup   *gossip.DedupCache
	pending *gossip.PendingSet

	store store.Store

	trans net.Transport
	netCh <-chan net.RPC

	sender  *sender
	metrics *metrics

	// maintaining serializes maintenance cycles: a tick that fires while the
	// previous cycle is still pinging peers must not start a second one.
	maintaining int32

	controlTimer *ControlTimer

	sigintCh   chan os.Signal
	shutdownCh chan struct{}

	start time.Time
}

// NewNode is a factory method that returns a Node instance. The bootstrap
// peers seed the table; strategy is the pluggable consensus validator.
func NewNode(
	conf *config.Config,
	identity *Identity,
	bootstrapPeers []*peers.Peer,
	str store.Store,
	trans net.Transport,
	strategy consensus.Validator,
) *Node {
	logger := conf.Logger().WithField("this_id", identity.ID())

	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	table := peers.NewTable()
	snd := newSender(conf.QueueSize, logger)

	node := &Node{
		conf:         conf,
		logger:       logger,
		identity:     identity,
		table:        table,
		peerManager:  NewPeerManager(conf, identity, table, trans, snd, logger),
		engine:       consensus.NewEngine(strategy, logger),
		dedup:        gossip.NewDedupCache(conf.DedupCapacity, conf.DedupTTL),
		pending:      gossip.NewPendingSet(conf.PendingRetries, conf.PendingCapacity, conf.PendingTTL),
		store:        str,
		trans:        trans,
		netCh:        trans.Consumer(),
		sender:       snd,
		metrics:      newMetrics(),
		controlTimer: NewRandomControlTimer(),
		sigintCh:     sigintCh,
		shutdownCh:   make(chan struct{}),
	}

	for _, p := range bootstrapPeers {
		table.Upsert(p.NetAddr)
		if p.PubKeyHex != "" {
			table.SetIdentity(p.NetAddr, p.PubKeyHex, p.Moniker)
		}
	}

	return node
}

// Init initialises the node.
func (n *Node) Init() error {
	n.logger.WithFields(logrus.Fields{
		"bootstrap_peers": n.table.Len(),
		"moniker":         n.identity.Moniker,
	}).Debug("Init")

	n.start = time.Now()
	n.setState(Running)

	return nil
}

// RunAsync calls Run as a separate thread
func (n *Node) RunAsync(connect bool) {
	n.logger.WithField("connect", connect).Debug("runasync")

	go n.Run(connect)
}

// Run invokes the main loop of the node. When connect is false, the node
// answers inbound traffic but does not initiate connections or maintenance;
// this is used by tests that drive the topology by hand.
func (n *Node) Run(connect bool) {
	//The ControlTimer drives the periodic maintenance work: discovery,
	//heartbeats, capacity enforcement, and stale-record cleanup.
	go n.controlTimer.Run(n.conf.HeartbeatTimeout)

	//Process inbound RPCs regardless of the maintenance cycle.
	go n.doBackgroundWork()

	for {
		state := n.getState()

		n.logger.WithField("state", state.String()).Debug("Run loop")

		switch state {
		case Running:
			n.running(connect)
		case Shutdown:
			return
		}
	}
}

func (n *Node) running(connect bool) {
	for {
		select {
		case <-n.controlTimer.tickCh:
			if connect {
				n.goFunc(n.runMaintenance)
			}
			n.resetTimer()
		case <-n.shutdownCh:
			return
		}
	}
}

// runMaintenance starts a maintenance cycle unless the previous one is still
// running.
func (n *Node) runMaintenance() {
	if !atomic.CompareAndSwapInt32(&n.maintaining, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&n.maintaining, 0)

	n.maintain()
}

// maintain runs one maintenance cycle: peer lifecycle work, then expiry of
// objects parked on dependencies that never arrived.
func (n *Node) maintain() {
	n.peerManager.ConnectDialable()
	n.peerManager.Heartbeat()
	n.peerManager.EnforceCapacity()
	n.peerManager.CleanupStale()

	for _, obj := range n.pending.Sweep() {
		n.metrics.pendingDropped.Inc()
		n.logger.WithField("digest", obj.Digest).Warn("Dropping pending object, dependency never arrived")
	}

	n.metrics.connectedPeers.Set(float64(n.table.ConnectedLen()))
	n.metrics.pendingObjects.Set(float64(n.pending.Len()))
}

func (n *Node) resetTimer() {
	if !n.controlTimer.set {
		n.controlTimer.resetCh <- n.conf.HeartbeatTimeout
	}
}

func (n *Node) doBackgroundWork() {
	for {
		select {
		case rpc := <-n.netCh:
			n.goFunc(func() {
				n.processRPC(rpc)
			})
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT - Shutdown")
			n.Shutdown()
			return
		}
	}
}

// Shutdown stops accepting new work, drains in-flight routines, and closes
// the transport and the store.
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)

		n.waitRoutines()

		n.controlTimer.Shutdown()

		n.sender.Close()

		//transport and store should only be closed once all concurrent
		//operations are finished otherwise they will panic trying to use
		//closed objects
		n.trans.Close()

		n.store.Close()
	}
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	timeElapsed := time.Since(n.start)

	committed := n.engine.CommittedLen()
	objectsPerSecond := float64(committed) / timeElapsed.Seconds()

	s := map[string]string{
		"id":                fmt.Sprint(n.ID()),
		"moniker":           n.identity.Moniker,
		"state":             n.getState().String(),
		"uptime":            timeElapsed.String(),
		"connected_peers":   strconv.Itoa(n.table.ConnectedLen()),
		"known_peers":       strconv.Itoa(n.table.Len()),
		"committed_objects": strconv.Itoa(committed),
		"pending_objects":   strconv.Itoa(n.pending.Len()),
		"dedup_entries":     strconv.Itoa(n.dedup.Len()),
		"objects_per_second": strconv.FormatFloat(
			objectsPerSecond, 'f', 2, 64),
	}
	return s
}

// ID returns the node's ID, as derived from its public key.
func (n *Node) ID() uint32 {
	return n.identity.ID()
}

// Moniker returns the node's friendly name.
func (n *Node) Moniker() string {
	return n.identity.Moniker
}

// GetPeers returns a snapshot of the peer table.
func (n *Node) GetPeers() []peers.Peer {
	return n.table.Snapshot()
}

// Registry exposes the node's metrics registry to the HTTP service.
func (n *Node) Registry() *prometheus.Registry {
	return n.metrics.registry
}
