package object

import (
	"testing"

	"github.com/chaincraft/chaincraft/src/crypto"
	"github.com/chaincraft/chaincraft/src/crypto/keys"
	"github.com/stretchr/testify/require"
)

func TestNewSharedObject(t *testing.T) {
	payload := []byte("the quick brown fox")

	o := New(Transaction, payload)

	require.Equal(t, crypto.Digest(payload), o.Digest)
	require.True(t, o.Valid())

	// Tampering with the payload must invalidate the object.
	o.Payload = []byte("the quick brown dog")
	require.False(t, o.Valid())
}

func TestWireRoundTrip(t *testing.T) {
	o := New(Block, []byte("block payload"))

	raw, err := o.Marshal()
	require.NoError(t, err)

	var o2 SharedObject
	require.NoError(t, o2.Unmarshal(raw))

	require.Equal(t, o.Digest, o2.Digest)
	require.Equal(t, o.Kind, o2.Kind)
	require.Equal(t, o.Payload, o2.Payload)
	require.True(t, o2.Valid())
}

func TestFromWireRecordsOrigin(t *testing.T) {
	o := New(Vote, []byte("a vote"))

	o2 := FromWire(o.ToWire(), 42)

	require.Equal(t, uint32(42), o2.OriginPeer)
	require.False(t, o2.ReceivedAt.IsZero())
}

func TestEnvelopeSigning(t *testing.T) {
	key, err := keys.GenerateECDSAKey()
	require.NoError(t, err)

	p := crypto.Provider{}

	e := &Envelope{
		Data:   []byte("application data"),
		PubKey: keys.PublicKeyHex(&key.PublicKey),
		Deps:   []string{"aaaa", "bbbb"},
	}

	signing, err := e.SigningBytes()
	require.NoError(t, err)

	sig, err := p.Sign(key, signing)
	require.NoError(t, err)
	e.Signature = sig

	raw, err := e.Marshal()
	require.NoError(t, err)

	parsed := ParseEnvelope(raw)
	require.NotNil(t, parsed)
	require.Equal(t, e.Deps, parsed.Deps)

	signing2, err := parsed.SigningBytes()
	require.NoError(t, err)
	require.True(t, p.Verify(parsed.PubKey, parsed.Signature, signing2))
}

func TestParseEnvelopeOpaque(t *testing.T) {
	require.Nil(t, ParseEnvelope([]byte("not an envelope")))
}
