package store

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/iov-one/paystream/errors"
)

const (
	// DefaultFreeListSize is the size we hold for free node in btree
	DefaultFreeListSize = btree.DefaultFreeListSize

	// degree of the btree nodes
	btreeDegree = 2
)

// MemStore is a KVStore that keeps all data in a btree in memory. There is
// no persistence here. It is safe for concurrent use.
type MemStore struct {
	mu sync.RWMutex
	bt *btree.BTree
}

var _ KVStore = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store, useful for tests and for
// processes that do not need to survive a restart.
func NewMemStore() *MemStore {
	free := btree.NewFreeList(DefaultFreeListSize)
	return &MemStore{
		bt: btree.NewWithFreeList(btreeDegree, free),
	}
}

// Get returns nil iff key doesn't exist.
func (m *MemStore) Get(key []byte) ([]byte, error) {
	if key == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "nil key")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	res := m.bt.Get(bkey{key})
	if res == nil {
		return nil, nil
	}
	item, ok := res.(setItem)
	if !ok {
		return nil, errors.Wrapf(errors.ErrDatabase, "unknown item in btree: %#v", res)
	}
	return copyBytes(item.value), nil
}

// Has returns true if a value is stored under given key.
func (m *MemStore) Has(key []byte) (bool, error) {
	if key == nil {
		return false, errors.Wrap(errors.ErrInvalidInput, "nil key")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bt.Has(bkey{key}), nil
}

// Set writes the value. Stored bytes are copied, so the caller is free to
// modify the slices afterwards.
func (m *MemStore) Set(key, value []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil key")
	}
	if value == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil value")
	}
	m.mu.Lock()
	m.bt.ReplaceOrInsert(newSetItem(copyBytes(key), copyBytes(value)))
	m.mu.Unlock()
	return nil
}

// Delete removes the key.
func (m *MemStore) Delete(key []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil key")
	}
	m.mu.Lock()
	m.bt.Delete(bkey{key})
	m.mu.Unlock()
	return nil
}

// Iterator returns a snapshot of all models within the range. End is
// exclusive.
func (m *MemStore) Iterator(start, end []byte) (Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var res []Model
	collect := func(i btree.Item) bool {
		item := i.(setItem)
		res = append(res, Pair(copyBytes(item.key), copyBytes(item.value)))
		return true
	}
	switch {
	case start == nil && end == nil:
		m.bt.Ascend(collect)
	case start == nil:
		m.bt.AscendLessThan(bkey{end}, collect)
	case end == nil:
		m.bt.AscendGreaterOrEqual(bkey{start}, collect)
	default:
		m.bt.AscendRange(bkey{start}, bkey{end}, collect)
	}
	return NewSliceIterator(res), nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

/////////////////////////////////////////////////////////
// Items to write to btree

// we enforce all data in our btree implements keyer so we
// can compare nicely
type keyer interface {
	Key() []byte
}

// bkey implements keyer and btree.Item
// and may be used for queries or embedded in data to store
type bkey struct {
	key []byte
}

var _ keyer = bkey{}
var _ btree.Item = bkey{}

func (k bkey) Key() []byte {
	return k.key
}

// Less returns true iff second argument is greater than first
//
// panics if the item to compare doesn't implement keyer.
func (k bkey) Less(item btree.Item) bool {
	cmp := item.(keyer).Key()
	return bytes.Compare(k.key, cmp) < 0
}

type setItem struct {
	bkey
	value []byte
}

func newSetItem(key, value []byte) setItem {
	return setItem{bkey{key}, value}
}
