// Package keys implements the public key cryptography used throughout
// chaincraft.
//
// Every node owns a cryptographic key-pair. The private key is secret, but
// the public key identifies the node to its peers, and is used by other nodes
// to verify messages signed with the private key.
package keys
