package crypto

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/chaincraft/chaincraft/src/crypto/keys"
)

const (
	pemKeyPath = "priv_key.pem"
)

// PemKey reads and writes a node's private key as a PEM file in a base
// directory.
type PemKey struct {
	l    sync.Mutex
	path string
}

// NewPemKey returns a PemKey managing <base>/priv_key.pem.
func NewPemKey(base string) *PemKey {
	return &PemKey{
		path: filepath.Join(base, pemKeyPath),
	}
}

// ReadKey reads the key from the underlying file.
func (k *PemKey) ReadKey() (*ecdsa.PrivateKey, error) {
	k.l.Lock()
	defer k.l.Unlock()

	buf, err := ioutil.ReadFile(k.path)
	if err != nil {
		return nil, err
	}

	return k.ReadKeyFromBuf(buf)
}

// ReadKeyFromBuf parses a PEM encoded private key.
func (k *PemKey) ReadKeyFromBuf(buf []byte) (*ecdsa.PrivateKey, error) {
	if len(buf) == 0 {
		return nil, nil
	}

	block, _ := pem.Decode(buf)
	if block == nil {
		return nil, fmt.Errorf("error decoding PEM block from data")
	}

	return x509.ParseECPrivateKey(block.Bytes)
}

// WriteKey writes the key to the underlying file in PEM format.
func (k *PemKey) WriteKey(key *ecdsa.PrivateKey) error {
	k.l.Lock()
	defer k.l.Unlock()

	pemKey, err := ToPemKey(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(path.Dir(k.path), 0700); err != nil {
		return err
	}

	return ioutil.WriteFile(k.path, []byte(pemKey.PrivateKey), 0600)
}

// PemDump contains the PEM encoded private key and the corresponding public
// key in hex format.
type PemDump struct {
	PublicKey  string
	PrivateKey string
}

// GeneratePemKey generates a fresh key-pair and returns it as a PemDump.
func GeneratePemKey() (*PemDump, error) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	return ToPemKey(key)
}

// ToPemKey converts an ecdsa.PrivateKey into a PemDump.
func ToPemKey(priv *ecdsa.PrivateKey) (*PemDump, error) {
	pub := keys.PublicKeyHex(&priv.PublicKey)

	b, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, err
	}

	pemBlock := &pem.Block{Type: "EC PRIVATE KEY", Bytes: b}

	data := pem.EncodeToMemory(pemBlock)

	return &PemDump{
		PublicKey:  pub,
		PrivateKey: string(data),
	}, nil
}
