package store

import "sync"

// InmemStore implements the Store interface with a plain map. It is the
// default store, and the one used in tests.
type InmemStore struct {
	sync.RWMutex
	objects map[string][]byte
}

// NewInmemStore instantiates an empty InmemStore.
func NewInmemStore() *InmemStore {
	return &InmemStore{
		objects: make(map[string][]byte),
	}
}

// Put implements the Store interface.
func (s *InmemStore) Put(digest string, data []byte) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.objects[digest]; ok {
		return nil
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[digest] = cp

	return nil
}

// Get implements the Store interface.
func (s *InmemStore) Get(digest string) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	data, ok := s.objects[digest]
	if !ok {
		return nil, NewKeyNotFoundError(digest)
	}

	return data, nil
}

// Contains implements the Store interface.
func (s *InmemStore) Contains(digest string) (bool, error) {
	s.RLock()
	defer s.RUnlock()

	_, ok := s.objects[digest]

	return ok, nil
}

// Len returns the number of stored objects.
func (s *InmemStore) Len() int {
	s.RLock()
	defer s.RUnlock()

	return len(s.objects)
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
