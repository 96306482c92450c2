/*
Package store defines the key-value storage abstraction used by the channel
ledger, together with an in-memory implementation. Durable implementations
live in the leveldb and iavl subpackages.

Every mutating call of a durable store must be flushed before it returns, so
that a value acknowledged by Set is never lost by a process crash.
*/
package store

import "io"

// ReadOnlyKVStore is a simple interface to query data.
type ReadOnlyKVStore interface {
	// Get returns nil iff key doesn't exist.
	Get(key []byte) ([]byte, error)

	// Has checks if a key exists.
	Has(key []byte) (bool, error)

	// Iterator over a domain of keys in ascending order. End is exclusive.
	// Start must be less than end, or the Iterator is invalid.
	// A nil start or end means an unbounded range.
	Iterator(start, end []byte) (Iterator, error)
}

// KVStore is a simple interface to get/set data.
type KVStore interface {
	ReadOnlyKVStore

	// Set sets the key. Both key and value must not be nil.
	Set(key, value []byte) error

	// Delete deletes the key. Deleting a missing key is a no-op.
	Delete(key []byte) error
}

// CommitKVStore is a KVStore backed by durable storage that must be closed
// when no longer used.
type CommitKVStore interface {
	KVStore
	io.Closer
}

// Iterator allows us to access a set of items within a range of keys. These
// may all be preloaded, or loaded on demand.
//
//   Usage:
//
//   var itr Iterator = ...
//   defer itr.Release()
//
//   k, v, err := itr.Next()
//   for err == nil {
//     // ... do stuff...
//     k, v, err = itr.Next()
//   }
//   if !errors.ErrIteratorDone.Is(err) {
//     return err
//   }
type Iterator interface {
	// Next moves the iterator to the next sequential key in the database,
	// as defined by order of iteration. It returns ErrIteratorDone when
	// there are no more elements.
	Next() (key, value []byte, err error)

	// Release releases the Iterator, allowing it to do any needed
	// cleanup.
	Release()
}

// Model groups together key and value to return.
type Model struct {
	Key   []byte
	Value []byte
}

// Pair constructs a model from a key-value pair.
func Pair(key, value []byte) Model {
	return Model{
		Key:   key,
		Value: value,
	}
}
