package store

import "fmt"

// Store is the narrow interface through which the node persists shared
// objects. Implementations provide their own internal consistency; the node
// only requires that a Put followed by a Get on the same digest is
// immediately visible locally.
type Store interface {
	// Put persists the data under its digest. Put is idempotent; storing
	// the same digest twice is not an error.
	Put(digest string, data []byte) error
	// Get returns the data stored under digest.
	Get(digest string) ([]byte, error)
	// Contains reports whether the digest is held locally.
	Contains(digest string) (bool, error)
	// Close releases the underlying resources.
	Close() error
	// StorePath returns the filepath of the underlying database, or empty
	// for in-memory implementations.
	StorePath() string
}

// KeyNotFoundError is returned by Get when the digest is not held.
type KeyNotFoundError struct {
	Digest string
}

// NewKeyNotFoundError creates a KeyNotFoundError.
func NewKeyNotFoundError(digest string) KeyNotFoundError {
	return KeyNotFoundError{Digest: digest}
}

// Error implements the error interface.
func (e KeyNotFoundError) Error() string {
	return fmt.Sprintf("store: digest not found: %s", e.Digest)
}

// IsKeyNotFound reports whether err is a KeyNotFoundError.
func IsKeyNotFound(err error) bool {
	_, ok := err.(KeyNotFoundError)
	return ok
}
