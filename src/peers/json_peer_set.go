package peers

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"
	"sync"
)

const jsonPeerSetPath = "peers.json"

// JSONPeerSet reads and writes the bootstrap peer list as a JSON file in the
// node's data directory. The file is the discovery seed: addresses listed
// there enter the table as Discovered records on startup.
type JSONPeerSet struct {
	l    sync.Mutex
	path string
}

// NewJSONPeerSet creates a JSONPeerSet with reference to a base directory
// where the peers.json file resides.
func NewJSONPeerSet(base string) *JSONPeerSet {
	return &JSONPeerSet{
		path: filepath.Join(base, jsonPeerSetPath),
	}
}

// PeerSet parses the underlying JSON file and returns the bootstrap peers.
func (j *JSONPeerSet) PeerSet() ([]*Peer, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	if len(buf) == 0 {
		return nil, nil
	}

	var ps []*Peer
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&ps); err != nil {
		return nil, err
	}

	cleansePeerSet(ps)

	return ps, nil
}

// cleansePeerSet standardises the public key strings to match the format
// derived from a private key.
func cleansePeerSet(ps []*Peer) {
	for _, p := range ps {
		if p.PubKeyHex == "" {
			continue
		}
		p.PubKeyHex = "0X" + strings.TrimPrefix(strings.ToUpper(p.PubKeyHex), "0X")
	}
}

// Write persists a peer list to the JSON file.
func (j *JSONPeerSet) Write(ps []*Peer) error {
	j.l.Lock()
	defer j.l.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(ps); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf.Bytes(), 0644)
}
