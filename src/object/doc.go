// Package object defines the immutable, content-addressed unit of gossiped
// data. A shared object is identified by the SHA256 digest of its payload;
// two objects with equal payload bytes are the same object regardless of how
// many times, or from how many peers, they are received.
package object
