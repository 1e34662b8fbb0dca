package object

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// Envelope is an optional structured payload understood by the consensus
// validators. It carries application data together with an authenticating
// signature and the digests of objects it depends on. Payloads that do not
// parse as an Envelope are treated as opaque bytes with no dependencies.
type Envelope struct {
	Data      []byte
	PubKey    string
	Signature string
	Deps      []string
}

// Marshal returns the canonical JSON encoding of the envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(e); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal parses a canonical JSON encoding as produced by Marshal.
func (e *Envelope) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(e)
}

// SigningBytes returns the bytes covered by the envelope's signature: the
// canonical encoding of the envelope with an empty Signature field.
func (e *Envelope) SigningBytes() ([]byte, error) {
	unsigned := Envelope{
		Data:   e.Data,
		PubKey: e.PubKey,
		Deps:   e.Deps,
	}
	return unsigned.Marshal()
}

// ParseEnvelope attempts to parse a payload as an Envelope. It returns nil if
// the payload is not an envelope.
func ParseEnvelope(payload []byte) *Envelope {
	e := &Envelope{}
	if err := e.Unmarshal(payload); err != nil {
		return nil
	}
	return e
}
