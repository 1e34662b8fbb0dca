// Package node implements the chaincraft node: a long-lived service object
// combining the gossip dissemination engine, the peer-connection lifecycle
// manager, and the consensus pipeline.
//
// All gossip and peer state is owned by the Node instance, so multiple
// independent nodes can run in one process, which is how the package tests
// work.
package node
