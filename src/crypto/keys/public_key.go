package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"hash/fnv"

	"github.com/chaincraft/chaincraft/src/common"
)

// ToPublicKey is a wrapper around elliptic.Unmarshal on the secp256k1 curve.
// The argument pub is expected to be the uncompressed form of a point on the
// curve, as returned by FromPublicKey.
func ToPublicKey(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	x, y := elliptic.Unmarshal(Curve(), pub)
	if x == nil {
		return nil
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
}

// FromPublicKey is a wrapper around elliptic.Marshal on the secp256k1 curve.
// It outputs the point in uncompressed form.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// PublicKeyID gives a compact uint32 representation of a public key, used as
// the peer ID in wire messages. There is obviously a risk of collision, but
// the uint32 saves a lot of space compared to the uncompressed form of a
// secp256k1 public key (65 bytes).
func PublicKeyID(pubBytes []byte) uint32 {
	h := fnv.New32a()
	h.Write(pubBytes)
	return h.Sum32()
}

// PublicKeyHex returns the hexadecimal representation of the uncompressed
// form of the public key.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return common.EncodeToString(FromPublicKey(pub))
}
