package crypto

import (
	"crypto/ecdsa"

	"github.com/chaincraft/chaincraft/src/common"
	"github.com/chaincraft/chaincraft/src/crypto/keys"
)

// Provider bundles the cryptographic primitives consumed by consensus
// validators: hashing, signing, and signature verification. It allows the
// concrete primitives to be swapped out without touching the consumers.
type Provider struct{}

// Hash returns the hex digest of data.
func (Provider) Hash(data []byte) string {
	return Digest(data)
}

// Sign signs data with the private key and returns the encoded signature.
func (Provider) Sign(priv *ecdsa.PrivateKey, data []byte) (string, error) {
	r, s, err := keys.Sign(priv, SHA256(data))
	if err != nil {
		return "", err
	}
	return keys.EncodeSignature(r, s), nil
}

// Verify checks an encoded signature of data against a hex-encoded public
// key, as produced by keys.PublicKeyHex.
func (Provider) Verify(pubKeyHex string, sig string, data []byte) bool {
	pubBytes, err := common.DecodeFromString(pubKeyHex)
	if err != nil {
		return false
	}

	pub := keys.ToPublicKey(pubBytes)
	if pub == nil {
		return false
	}

	r, s, err := keys.DecodeSignature(sig)
	if err != nil {
		return false
	}

	return keys.Verify(pub, SHA256(data), r, s)
}
