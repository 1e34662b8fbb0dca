package node

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics are the node's gossip counters. Each node owns its registry so
// multiple nodes can coexist in one process.
type metrics struct {
	registry *prometheus.Registry

	objectsReceived   prometheus.Counter
	objectsAccepted   prometheus.Counter
	objectsRejected   prometheus.Counter
	objectsDeferred   prometheus.Counter
	duplicateObjects  prometheus.Counter
	integrityFailures prometheus.Counter
	announcesSent     prometheus.Counter
	pushesSent        prometheus.Counter
	droppedSends      prometheus.Counter
	pendingDropped    prometheus.Counter

	connectedPeers prometheus.Gauge
	pendingObjects prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		objectsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaincraft_objects_received_total",
			Help: "Objects received from the wire.",
		}),
		objectsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaincraft_objects_accepted_total",
			Help: "Objects accepted into the committed history.",
		}),
		objectsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaincraft_objects_rejected_total",
			Help: "Objects rejected by the consensus strategy.",
		}),
		objectsDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaincraft_objects_deferred_total",
			Help: "Validations deferred on a missing dependency.",
		}),
		duplicateObjects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaincraft_duplicate_objects_total",
			Help: "Objects dropped by the dedup cache.",
		}),
		integrityFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaincraft_integrity_failures_total",
			Help: "Payloads that did not hash to their advertised digest.",
		}),
		announcesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaincraft_announces_sent_total",
			Help: "Announce messages sent to peers.",
		}),
		pushesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaincraft_pushes_sent_total",
			Help: "Locally submitted objects pushed to peers.",
		}),
		droppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaincraft_dropped_sends_total",
			Help: "Outbound messages dropped on full peer queues.",
		}),
		pendingDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaincraft_pending_dropped_total",
			Help: "Parked objects dropped by capacity or age bounds.",
		}),
		connectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chaincraft_connected_peers",
			Help: "Peers currently in the Connected state.",
		}),
		pendingObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chaincraft_pending_objects",
			Help: "Objects parked on a missing dependency.",
		}),
	}

	m.registry.MustRegister(
		m.objectsReceived,
		m.objectsAccepted,
		m.objectsRejected,
		m.objectsDeferred,
		m.duplicateObjects,
		m.integrityFailures,
		m.announcesSent,
		m.pushesSent,
		m.droppedSends,
		m.pendingDropped,
		m.connectedPeers,
		m.pendingObjects,
	)

	return m
}
