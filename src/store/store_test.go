package store

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	digest := "00ff"
	data := []byte("payload")

	ok, err := s.Contains(digest)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.Get(digest)
	require.True(t, IsKeyNotFound(err))

	require.NoError(t, s.Put(digest, data))

	// read-your-write
	got, err := s.Get(digest)
	require.NoError(t, err)
	require.Equal(t, data, got)

	ok, err = s.Contains(digest)
	require.NoError(t, err)
	require.True(t, ok)

	// idempotent Put
	require.NoError(t, s.Put(digest, data))
}

func TestInmemStore(t *testing.T) {
	s := NewInmemStore()
	defer s.Close()

	testStore(t, s)

	require.Equal(t, 1, s.Len())
	require.Equal(t, "", s.StorePath())
}

func TestBadgerStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "chaincraft_badger")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	s, err := NewBadgerStore(100, dir)
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)

	require.Equal(t, dir, s.StorePath())
}

func TestBadgerStoreReload(t *testing.T) {
	dir, err := ioutil.TempDir("", "chaincraft_badger")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	s, err := NewBadgerStore(100, dir)
	require.NoError(t, err)

	require.NoError(t, s.Put("aaaa", []byte("persisted")))
	require.NoError(t, s.Close())

	s2, err := NewBadgerStore(100, dir)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get("aaaa")
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), got)
}
