package peers

import (
	"fmt"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/chaincraft/chaincraft/src/crypto/keys"
	"github.com/stretchr/testify/require"
)

func TestTableUpsertIdempotent(t *testing.T) {
	table := NewTable()

	table.Upsert("127.0.0.1:1337")
	table.Upsert("127.0.0.1:1337")

	require.Equal(t, 1, table.Len())

	p, ok := table.GetByAddr("127.0.0.1:1337")
	require.True(t, ok)
	require.Equal(t, Discovered, p.State)
}

func TestTableIdentityIndex(t *testing.T) {
	table := NewTable()
	table.Upsert("addr0")

	key, _ := keys.GenerateECDSAKey()
	pubHex := keys.PublicKeyHex(&key.PublicKey)

	p, ok := table.SetIdentity("addr0", pubHex, "node0")
	require.True(t, ok)
	require.NotZero(t, p.ID())

	got, ok := table.Get(p.ID())
	require.True(t, ok)
	require.Equal(t, "addr0", got.NetAddr)
}

func TestTableBackoff(t *testing.T) {
	table := NewTable()
	table.Upsert("addr0")

	base := 100 * time.Millisecond

	count := table.RecordFailure("addr0", base)
	require.Equal(t, uint32(1), count)

	// backoff excludes the address from dial candidates
	require.Empty(t, table.Dialable(time.Now()))

	// but it becomes dialable again after the deadline
	require.Len(t, table.Dialable(time.Now().Add(time.Second)), 1)

	// and a success clears the backoff
	table.ResetFailures("addr0")
	require.Len(t, table.Dialable(time.Now()), 1)
}

func TestTableBanExcludesFromDialable(t *testing.T) {
	table := NewTable()
	table.Upsert("addr0")
	table.Ban("addr0")

	require.Empty(t, table.Dialable(time.Now()))

	// Upsert must not resurrect a banned record
	table.Upsert("addr0")
	p, _ := table.GetByAddr("addr0")
	require.Equal(t, Banned, p.State)
}

func TestTableLowestRanked(t *testing.T) {
	table := NewTable()

	for i := 0; i < 3; i++ {
		addr := fmt.Sprintf("addr%d", i)
		key, _ := keys.GenerateECDSAKey()
		table.Upsert(addr)
		p, _ := table.SetIdentity(addr, keys.PublicKeyHex(&key.PublicKey), "")
		table.SetState(addr, Connected)
		table.Touch(p.ID())
	}

	// make addr1 the obvious eviction candidate
	p1, _ := table.GetByAddr("addr1")
	table.Penalize(p1.ID(), 100)

	lowest := table.LowestRanked(1)
	require.Equal(t, []string{"addr1"}, lowest)
}

func TestJSONPeerSet(t *testing.T) {
	dir, err := ioutil.TempDir("", "chaincraft")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	book := NewJSONPeerSet(dir)

	// Try a read, should get an error
	_, err = book.PeerSet()
	require.Error(t, err)

	ps := []*Peer{}
	for i := 0; i < 3; i++ {
		key, _ := keys.GenerateECDSAKey()
		ps = append(ps, NewPeer(
			keys.PublicKeyHex(&key.PublicKey),
			fmt.Sprintf("addr%d", i),
			fmt.Sprintf("peer%d", i),
		))
	}

	require.NoError(t, book.Write(ps))

	got, err := book.PeerSet()
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, p := range got {
		require.Equal(t, ps[i].NetAddr, p.NetAddr)
		require.Equal(t, ps[i].PubKeyHex, p.PubKeyHex)
	}
}
