package keys

import (
	"crypto/elliptic"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

/*
Chaincraft keys and signing are based on elliptic curve cryptography, with the
secp256k1 curve used by Bitcoin and Ethereum, so that existing Bitcoin and
Ethereum keys can be reused to operate a node.
*/

// secp256k1N is used to verify that a private key is valid.
var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

// Curve returns the elliptic.Curve used throughout chaincraft. We use
// btcsuite's golang implementation of secp256k1.
func Curve() elliptic.Curve {
	return btcec.S256()
}
