package gossip

import (
	"fmt"
	"testing"
	"time"

	"github.com/chaincraft/chaincraft/src/object"
	"github.com/stretchr/testify/require"
)

func TestPendingDeferResolve(t *testing.T) {
	pending := NewPendingSet(3, 100, time.Minute)

	o1 := object.New(object.Transaction, []byte("tx1"))
	o2 := object.New(object.Transaction, []byte("tx2"))

	ok, dropped := pending.Defer(o1, "depX")
	require.True(t, ok)
	require.Empty(t, dropped)

	ok, _ = pending.Defer(o2, "depX")
	require.True(t, ok)
	require.Equal(t, 2, pending.Len())

	// unrelated dependency resolves nothing
	require.Nil(t, pending.Resolve("depY"))

	waiting := pending.Resolve("depX")
	require.Len(t, waiting, 2)
	require.Equal(t, 0, pending.Len())

	// resubmission order is deterministic: lowest digest first
	require.True(t, waiting[0].Digest < waiting[1].Digest)
}

func TestPendingRetryBudget(t *testing.T) {
	pending := NewPendingSet(2, 100, time.Minute)

	obj := object.New(object.Transaction, []byte("tx1"))

	ok, _ := pending.Defer(obj, "depX")
	require.True(t, ok)
	pending.Resolve("depX")

	ok, _ = pending.Defer(obj, "depX")
	require.True(t, ok)
	pending.Resolve("depX")

	// third deferral exhausts the budget: the object is dropped
	ok, _ = pending.Defer(obj, "depX")
	require.False(t, ok)
	require.Equal(t, 0, pending.Len())
}

func TestPendingCapacityEviction(t *testing.T) {
	pending := NewPendingSet(3, 3, time.Minute)

	objs := make([]*object.SharedObject, 4)
	for i := range objs {
		objs[i] = object.New(object.Transaction, []byte(fmt.Sprintf("tx%d", i)))
		ok, dropped := pending.Defer(objs[i], fmt.Sprintf("dep%d", i))
		require.True(t, ok)

		if i < 3 {
			require.Empty(t, dropped)
		} else {
			// overflowing the capacity evicts exactly the oldest entry
			require.Len(t, dropped, 1)
			require.Equal(t, objs[0].Digest, dropped[0].Digest)
		}
	}

	require.Equal(t, 3, pending.Len())

	// the evicted object's dependency resolves nothing
	require.Nil(t, pending.Resolve("dep0"))

	// an evicted object starts over with a fresh retry budget
	for i := 0; i < 3; i++ {
		ok, _ := pending.Defer(objs[0], "dep0")
		require.True(t, ok)
		pending.Resolve("dep0")
	}
}

func TestPendingTTLSweep(t *testing.T) {
	pending := NewPendingSet(3, 100, time.Minute)

	now := time.Now()
	pending.now = func() time.Time { return now }

	o1 := object.New(object.Transaction, []byte("tx1"))
	o2 := object.New(object.Transaction, []byte("tx2"))

	pending.Defer(o1, "depX")

	now = now.Add(40 * time.Second)
	pending.Defer(o2, "depY")

	// nothing has aged out yet
	require.Empty(t, pending.Sweep())

	// 70s after o1 was parked, only o1 has exceeded the TTL
	now = now.Add(30 * time.Second)
	expired := pending.Sweep()
	require.Len(t, expired, 1)
	require.Equal(t, o1.Digest, expired[0].Digest)
	require.Equal(t, 1, pending.Len())

	require.Nil(t, pending.Resolve("depX"))
	require.Len(t, pending.Resolve("depY"), 1)
}

func TestPendingForget(t *testing.T) {
	pending := NewPendingSet(1, 100, time.Minute)

	obj := object.New(object.Transaction, []byte("tx1"))

	ok, _ := pending.Defer(obj, "depX")
	require.True(t, ok)
	pending.Resolve("depX")

	// a final decision clears the retry accounting, so a later deferral of
	// the same digest starts from a fresh budget
	pending.Forget(obj.Digest)
	ok, _ = pending.Defer(obj, "depX")
	require.True(t, ok)
}
