/*
Package leveldb provides a durable KVStore on top of goleveldb, accessed
through the tendermint database abstraction.

All writes are synchronous: a Set or Delete returns only after the write was
flushed to disk.
*/
package leveldb

import (
	"fmt"

	dbm "github.com/tendermint/tendermint/libs/db"

	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/store"
)

// Store is a durable KVStore backed by goleveldb.
type Store struct {
	db dbm.DB
}

var _ store.CommitKVStore = (*Store)(nil)

// NewStore opens (or creates) a database called name in given directory.
func NewStore(dir, name string) (s *Store, err error) {
	defer recoverDatabase(&err)

	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "open %s/%s: %s", dir, name, err)
	}
	return &Store{db: db}, nil
}

// Get returns nil iff key doesn't exist.
func (s *Store) Get(key []byte) (val []byte, err error) {
	if key == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "nil key")
	}
	defer recoverDatabase(&err)
	return s.db.Get(key), nil
}

// Has checks if a key exists.
func (s *Store) Has(key []byte) (has bool, err error) {
	if key == nil {
		return false, errors.Wrap(errors.ErrInvalidInput, "nil key")
	}
	defer recoverDatabase(&err)
	return s.db.Has(key), nil
}

// Set writes the value and flushes it to disk before returning.
func (s *Store) Set(key, value []byte) (err error) {
	if key == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil key")
	}
	if value == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil value")
	}
	defer recoverDatabase(&err)
	s.db.SetSync(key, value)
	return nil
}

// Delete removes the key and flushes the change to disk before returning.
func (s *Store) Delete(key []byte) (err error) {
	if key == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil key")
	}
	defer recoverDatabase(&err)
	s.db.DeleteSync(key)
	return nil
}

// Iterator over a domain of keys in ascending order. End is exclusive.
func (s *Store) Iterator(start, end []byte) (it store.Iterator, err error) {
	defer recoverDatabase(&err)
	return &iterator{parent: s.db.Iterator(start, end)}, nil
}

// Close releases the database.
func (s *Store) Close() (err error) {
	defer recoverDatabase(&err)
	s.db.Close()
	return nil
}

// Stats returns database engine statistics.
func (s *Store) Stats() map[string]string {
	return s.db.Stats()
}

// recoverDatabase converts a panic of the database layer into an error. The
// tendermint database abstraction reports write failures by panicking.
func recoverDatabase(err *error) {
	if r := recover(); r != nil {
		*err = errors.Wrap(errors.ErrDatabase, fmt.Sprint(r))
	}
}

type iterator struct {
	parent dbm.Iterator
}

var _ store.Iterator = (*iterator)(nil)

func (i *iterator) Next() (key, value []byte, err error) {
	if !i.parent.Valid() {
		return nil, nil, errors.Wrap(errors.ErrIteratorDone, "leveldb")
	}
	key, value = i.parent.Key(), i.parent.Value()
	i.parent.Next()
	return key, value, nil
}

func (i *iterator) Release() {
	i.parent.Close()
}
