/*
Package iavl provides a durable KVStore backed by a versioned IAVL merkle
tree. Every mutation is committed as a new tree version, so the store root
hash always reflects the latest acknowledged write and can be published as a
commitment to the local ledger state.
*/
package iavl

import (
	"fmt"
	"sync"

	"github.com/tendermint/iavl"
	dbm "github.com/tendermint/tendermint/libs/db"

	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/store"
)

// cacheSize is the number of tree nodes kept in memory.
const cacheSize = 10000

// CommitID contains the tree version number and its merkle root.
type CommitID struct {
	Version int64
	Hash    []byte
}

// Store manages an iavl committed state.
type Store struct {
	mu   sync.RWMutex
	db   dbm.DB
	tree *iavl.MutableTree
	last CommitID
}

var _ store.CommitKVStore = (*Store)(nil)

// NewStore opens (or creates) a tree stored in a goleveldb database called
// name in given directory, and loads its latest version.
func NewStore(dir, name string) (s *Store, err error) {
	defer recoverDatabase(&err)

	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "open %s/%s: %s", dir, name, err)
	}
	tree := iavl.NewMutableTree(db, cacheSize)
	version, err := tree.Load()
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(errors.ErrDatabase, "load tree: %s", err)
	}
	return &Store{
		db:   db,
		tree: tree,
		last: CommitID{Version: version, Hash: tree.Hash()},
	}, nil
}

// Get returns nil iff key doesn't exist.
func (s *Store) Get(key []byte) (val []byte, err error) {
	if key == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "nil key")
	}
	defer recoverDatabase(&err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, val = s.tree.Get(key)
	return val, nil
}

// Has checks if a key exists.
func (s *Store) Has(key []byte) (has bool, err error) {
	if key == nil {
		return false, errors.Wrap(errors.ErrInvalidInput, "nil key")
	}
	defer recoverDatabase(&err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Has(key), nil
}

// Set writes the value and commits a new tree version.
func (s *Store) Set(key, value []byte) (err error) {
	if key == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil key")
	}
	if value == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil value")
	}
	defer recoverDatabase(&err)
	s.mu.Lock()
	defer s.mu.Unlock()

	// The tree keeps references to the given slices.
	s.tree.Set(copyBytes(key), copyBytes(value))
	return s.commit()
}

// Delete removes the key and commits a new tree version.
func (s *Store) Delete(key []byte) (err error) {
	if key == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil key")
	}
	defer recoverDatabase(&err)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, removed := s.tree.Remove(key); !removed {
		return nil
	}
	return s.commit()
}

// commit saves the working tree as a new version and prunes the previous
// one. Only the latest version is ever read.
func (s *Store) commit() error {
	hash, version, err := s.tree.SaveVersion()
	if err != nil {
		return errors.Wrapf(errors.ErrDatabase, "save version: %s", err)
	}
	if prev := s.last.Version; prev > 0 && prev < version {
		if err := s.tree.DeleteVersion(prev); err != nil {
			return errors.Wrapf(errors.ErrDatabase, "prune version %d: %s", prev, err)
		}
	}
	s.last = CommitID{Version: version, Hash: hash}
	return nil
}

// LastCommitID returns the version and merkle root of the latest commit.
func (s *Store) LastCommitID() CommitID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CommitID{Version: s.last.Version, Hash: copyBytes(s.last.Hash)}
}

// Iterator returns a snapshot of all models within the range. End is
// exclusive.
func (s *Store) Iterator(start, end []byte) (it store.Iterator, err error) {
	defer recoverDatabase(&err)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []store.Model
	s.tree.IterateRange(start, end, true, func(key, value []byte) bool {
		res = append(res, store.Pair(copyBytes(key), copyBytes(value)))
		return false
	})
	return store.NewSliceIterator(res), nil
}

// Close releases the database.
func (s *Store) Close() (err error) {
	defer recoverDatabase(&err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Close()
	return nil
}

// recoverDatabase converts a panic of the tree or database layer into an
// error.
func recoverDatabase(err *error) {
	if r := recover(); r != nil {
		*err = errors.Wrap(errors.ErrDatabase, fmt.Sprint(r))
	}
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
