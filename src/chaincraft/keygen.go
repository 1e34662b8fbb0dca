package chaincraft

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/chaincraft/chaincraft/src/crypto/keys"
)

// Keygen generates a new private key and persists it to keyfile.
func Keygen(keyfile string) (*ecdsa.PrivateKey, error) {
	if _, err := os.Stat(keyfile); err == nil {
		return nil, fmt.Errorf("a key already lives under %s", keyfile)
	}

	privKey, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	simpleKeyfile := keys.NewSimpleKeyfile(keyfile)

	if err := simpleKeyfile.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}
