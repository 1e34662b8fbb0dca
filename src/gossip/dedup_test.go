package gossip

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDedupInsertContains(t *testing.T) {
	cache := NewDedupCache(10, time.Minute)

	require.False(t, cache.Contains("d0"))
	require.True(t, cache.Insert("d0"))
	require.True(t, cache.Contains("d0"))

	// re-insertion of a live entry is not novel
	require.False(t, cache.Insert("d0"))
	require.Equal(t, 1, cache.Len())
}

func TestDedupCapacityEviction(t *testing.T) {
	cache := NewDedupCache(3, time.Minute)

	for i := 0; i < 3; i++ {
		cache.Insert(fmt.Sprintf("d%d", i))
	}

	// one past capacity evicts exactly the oldest entry
	cache.Insert("d3")

	require.Equal(t, 3, cache.Len())
	require.False(t, cache.Contains("d0"))
	require.True(t, cache.Contains("d1"))
	require.True(t, cache.Contains("d2"))
	require.True(t, cache.Contains("d3"))
}

func TestDedupNovelAfterEviction(t *testing.T) {
	cache := NewDedupCache(2, time.Minute)

	cache.Insert("d0")
	cache.Insert("d1")
	cache.Insert("d2") // evicts d0

	// an evicted digest is indistinguishable from first-seen
	require.True(t, cache.Insert("d0"))
	require.True(t, cache.Contains("d0"))
}

func TestDedupTTLEviction(t *testing.T) {
	cache := NewDedupCache(10, time.Minute)

	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Insert("d0")

	now = now.Add(30 * time.Second)
	cache.Insert("d1")
	require.True(t, cache.Contains("d0"))

	// d0 ages out, d1 survives
	now = now.Add(45 * time.Second)
	require.False(t, cache.Contains("d0"))
	require.True(t, cache.Contains("d1"))
	require.Equal(t, 1, cache.Len())

	// and an aged-out digest is novel again
	require.True(t, cache.Insert("d0"))
}
