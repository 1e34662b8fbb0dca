package node

import (
	"crypto/ecdsa"

	"github.com/chaincraft/chaincraft/src/crypto/keys"
)

// Identity holds the key material identifying this node to its peers.
type Identity struct {
	Key     *ecdsa.PrivateKey
	Moniker string

	id       uint32
	pubBytes []byte
	pubHex   string
}

// NewIdentity is a factory method for an Identity
func NewIdentity(key *ecdsa.PrivateKey, moniker string) *Identity {
	return &Identity{
		Key:     key,
		Moniker: moniker,
	}
}

// ID returns the node's ID, as derived from its public key.
func (i *Identity) ID() uint32 {
	if i.id == 0 {
		i.id = keys.PublicKeyID(i.PublicKeyBytes())
	}
	return i.id
}

// PublicKeyBytes returns the node's public key as a byte array
func (i *Identity) PublicKeyBytes() []byte {
	if len(i.pubBytes) == 0 {
		i.pubBytes = keys.FromPublicKey(&i.Key.PublicKey)
	}
	return i.pubBytes
}

// PublicKeyHex returns the node's public key as a hex string
func (i *Identity) PublicKeyHex() string {
	if len(i.pubHex) == 0 {
		i.pubHex = keys.PublicKeyHex(&i.Key.PublicKey)
	}
	return i.pubHex
}
