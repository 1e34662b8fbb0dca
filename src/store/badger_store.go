package store

import (
	"sync"

	"github.com/dgraph-io/badger"
)

// BadgerStore implements the Store interface on top of a Badger database,
// with a bounded in-memory read-through cache in front of it. Objects are
// usually requested by peers shortly after being stored, so the cache absorbs
// most of the read traffic on the gossip hot path.
type BadgerStore struct {
	cacheLock sync.RWMutex
	cache     map[string][]byte
	cacheSize int

	db   *badger.DB
	path string
}

// NewBadgerStore opens, or creates, a Badger database at the given path.
func NewBadgerStore(cacheSize int, path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = false

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		cache:     make(map[string][]byte),
		cacheSize: cacheSize,
		db:        handle,
		path:      path,
	}

	return store, nil
}

// Put implements the Store interface.
func (s *BadgerStore) Put(digest string, data []byte) error {
	err := s.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(digest), data)
	})
	if err != nil {
		return err
	}

	s.cacheSet(digest, data)

	return nil
}

// Get implements the Store interface.
func (s *BadgerStore) Get(digest string) ([]byte, error) {
	if data, ok := s.cacheGet(digest); ok {
		return data, nil
	}

	var data []byte
	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(digest))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	if err == badger.ErrKeyNotFound {
		return nil, NewKeyNotFoundError(digest)
	}
	if err != nil {
		return nil, err
	}

	s.cacheSet(digest, data)

	return data, nil
}

// Contains implements the Store interface.
func (s *BadgerStore) Contains(digest string) (bool, error) {
	if _, ok := s.cacheGet(digest); ok {
		return true, nil
	}

	err := s.db.View(func(tx *badger.Txn) error {
		_, err := tx.Get([]byte(digest))
		return err
	})

	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

func (s *BadgerStore) cacheGet(digest string) ([]byte, bool) {
	s.cacheLock.RLock()
	defer s.cacheLock.RUnlock()

	data, ok := s.cache[digest]

	return data, ok
}

func (s *BadgerStore) cacheSet(digest string, data []byte) {
	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()

	// The cache stops absorbing once full; the database remains
	// authoritative.
	if len(s.cache) >= s.cacheSize {
		return
	}

	s.cache[digest] = data
}
