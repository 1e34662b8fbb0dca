package object

import (
	"bytes"
	"time"

	"github.com/chaincraft/chaincraft/src/crypto"
	"github.com/ugorji/go/codec"
)

// Kind partitions shared objects into broad categories. It carries no meaning
// for the gossip layer itself; validators are free to interpret it.
type Kind uint8

const (
	// Transaction is an application transaction.
	Transaction Kind = iota
	// Block is a batch of transactions.
	Block
	// Vote is a consensus vote.
	Vote
	// Custom is an application-defined object.
	Custom
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Transaction:
		return "Transaction"
	case Block:
		return "Block"
	case Vote:
		return "Vote"
	case Custom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// SharedObject is an immutable payload identified by the digest of its bytes.
// OriginPeer and ReceivedAt are local bookkeeping; they are not part of the
// digest and are not gossiped.
type SharedObject struct {
	Digest  string
	Kind    Kind
	Payload []byte

	OriginPeer uint32    `json:"-"`
	ReceivedAt time.Time `json:"-"`
}

// New creates a SharedObject from a payload, computing its digest.
func New(kind Kind, payload []byte) *SharedObject {
	return &SharedObject{
		Digest:  crypto.Digest(payload),
		Kind:    kind,
		Payload: payload,
	}
}

// Valid reports whether the object's digest matches the hash of its payload.
// Objects failing this check are never admitted past the wire boundary.
func (o *SharedObject) Valid() bool {
	return o.Digest == crypto.Digest(o.Payload)
}

// Wire is the form of a SharedObject that travels between nodes.
type Wire struct {
	Digest  string
	Kind    Kind
	Payload []byte
}

// ToWire converts the object to its wire form.
func (o *SharedObject) ToWire() Wire {
	return Wire{
		Digest:  o.Digest,
		Kind:    o.Kind,
		Payload: o.Payload,
	}
}

// FromWire converts a wire object back to a SharedObject, recording the
// sending peer and the time of receipt.
func FromWire(w Wire, from uint32) *SharedObject {
	return &SharedObject{
		Digest:     w.Digest,
		Kind:       w.Kind,
		Payload:    w.Payload,
		OriginPeer: from,
		ReceivedAt: time.Now(),
	}
}

// Marshal returns the canonical JSON encoding of the object's wire form.
// Canonical encoding matters because the bytes may be hashed or signed.
func (o *SharedObject) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	w := o.ToWire()
	if err := enc.Encode(w); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal parses a canonical JSON encoding as produced by Marshal.
func (o *SharedObject) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	var w Wire
	if err := dec.Decode(&w); err != nil {
		return err
	}

	o.Digest = w.Digest
	o.Kind = w.Kind
	o.Payload = w.Payload

	return nil
}
