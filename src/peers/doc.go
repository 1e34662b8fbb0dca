// Package peers defines the peer records held by a chaincraft node and the
// concurrent table that owns them.
//
// A peer is another node participating in the gossip network. Peers are
// identified by their public keys, and carry an optional moniker which is a
// non-unique user-friendly name. Records move through a lifecycle
// (Discovered, Connecting, Connected, Disconnected, Banned) under the
// exclusive control of the node's peer manager; the gossip engine only reads
// the Connected subset for fan-out.
//
// Upon starting up, a node reads a peers.json file from its data directory,
// which lists the bootstrap addresses it should attempt to connect to.
package peers
