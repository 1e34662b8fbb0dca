package net

import (
	"github.com/chaincraft/chaincraft/src/object"
)

// HandshakeRequest opens a connection. Each side presents its identity and a
// bounded sample of the peer addresses it knows about, which is how discovery
// propagates through the network.
type HandshakeRequest struct {
	FromID        uint32
	PubKeyHex     string
	Moniker       string
	AdvertiseAddr string
	KnownAddrs    []string
}

// HandshakeResponse mirrors the request: the responder presents its own
// identity and known addresses.
type HandshakeResponse struct {
	FromID     uint32
	PubKeyHex  string
	Moniker    string
	KnownAddrs []string
	Accepted   bool
}

// AnnounceRequest corresponds to the announce phase of the gossip protocol. It
// advertises that the sender holds the object identified by Digest, without
// carrying the payload.
type AnnounceRequest struct {
	FromID   uint32
	FromAddr string
	Digest   string
	Kind     object.Kind
}

// AnnounceResponse indicates whether the receiver already knew the digest, and
// whether it wants the payload.
type AnnounceResponse struct {
	FromID uint32
	Known  bool
	Wanted bool
}

// ObjectRequest corresponds to the pull phase of the gossip protocol: it asks
// the target for the payload behind a previously announced digest.
type ObjectRequest struct {
	FromID uint32
	Digest string
}

// ObjectResponse carries the requested object in wire format. Found is false
// when the responder no longer holds the object.
type ObjectResponse struct {
	FromID uint32
	Found  bool
	Object object.Wire
}

// PushRequest delivers an object without it being requested. It is used for
// locally submitted objects, which are novel to the network by construction,
// so the announce round-trip would only add a hop.
type PushRequest struct {
	FromID   uint32
	FromAddr string
	Object   object.Wire
}

// PushResponse indicates whether the receiver accepted the pushed object.
type PushResponse struct {
	FromID   uint32
	Accepted bool
}

// PingRequest is the connection heartbeat.
type PingRequest struct {
	FromID uint32
}

// PongResponse answers a PingRequest.
type PongResponse struct {
	FromID uint32
}
