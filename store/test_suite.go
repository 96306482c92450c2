package store

import (
	"bytes"
	"crypto/rand"
	"sort"
	"testing"

	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/paytest/assert"
)

/**
TestSuite provides many methods that can be called in package-specific test code.
We just customize the store being tested (pass in constructor), the rest of the
logic is generic to the KVStore interface.

This is intended in particular to remove duplication between the memory,
leveldb and iavl store tests, but can be used for any implementation of
KVStore.
*/
type TestSuite struct {
	makeBase TestStoreConstructor
}

// TestStoreConstructor returns a fresh, empty store and a function that
// releases it.
type TestStoreConstructor func() (base KVStore, cleanup func())

// NewTestSuite returns a suite that runs all checks against stores created
// with given constructor.
func NewTestSuite(constructor TestStoreConstructor) *TestSuite {
	return &TestSuite{
		makeBase: constructor,
	}
}

// Run executes all checks of the suite as subtests.
func (s *TestSuite) Run(t *testing.T) {
	t.Run("GetSet", s.GetSet)
	t.Run("Delete", s.Delete)
	t.Run("Overwrite", s.Overwrite)
	t.Run("Iterate", s.Iterate)
	t.Run("NilArguments", s.NilArguments)
}

// GetSet does basic sanity checks on the store.
func (s *TestSuite) GetSet(t *testing.T) {
	base, cleanup := s.makeBase()
	defer cleanup()

	k, v := []byte("french"), []byte("fry")
	s.AssertGetHas(t, base, k, nil, false)
	assert.Nil(t, base.Set(k, v))
	s.AssertGetHas(t, base, k, v, true)

	k2, v2 := []byte("LA"), []byte("Dodgers")
	s.AssertGetHas(t, base, k2, nil, false)
	assert.Nil(t, base.Set(k2, v2))
	s.AssertGetHas(t, base, k2, v2, true)
	s.AssertGetHas(t, base, k, v, true)
}

// Delete ensures removed values are no longer visible and that removing a
// missing key is not an error.
func (s *TestSuite) Delete(t *testing.T) {
	base, cleanup := s.makeBase()
	defer cleanup()

	k, v := []byte("Bayern"), []byte("Munich")
	assert.Nil(t, base.Set(k, v))
	s.AssertGetHas(t, base, k, v, true)

	assert.Nil(t, base.Delete(k))
	s.AssertGetHas(t, base, k, nil, false)

	assert.Nil(t, base.Delete([]byte("never-set")))
}

// Overwrite ensures the last written value wins and that the store does
// not keep references to the caller's slices.
func (s *TestSuite) Overwrite(t *testing.T) {
	base, cleanup := s.makeBase()
	defer cleanup()

	k := []byte("channel")
	v1 := []byte("first")
	assert.Nil(t, base.Set(k, v1))
	v1[0] = 'X'
	s.AssertGetHas(t, base, k, []byte("first"), true)

	assert.Nil(t, base.Set(k, []byte("second")))
	s.AssertGetHas(t, base, k, []byte("second"), true)
}

// Iterate checks ranged iteration in ascending order.
func (s *TestSuite) Iterate(t *testing.T) {
	base, cleanup := s.makeBase()
	defer cleanup()

	const size = 30
	models := randModels(size, 8, 20)
	for _, m := range models {
		assert.Nil(t, base.Set(m.Key, m.Value))
	}
	expect := sortModels(models)

	cases := map[string]struct {
		start, end []byte
		want       []Model
	}{
		"whole range":  {start: nil, end: nil, want: expect},
		"from start":   {start: expect[10].Key, end: nil, want: expect[10:]},
		"until end":    {start: nil, end: expect[size-8].Key, want: expect[:size-8]},
		"both limited": {start: expect[7].Key, end: expect[18].Key, want: expect[7:18]},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			it, err := base.Iterator(tc.start, tc.end)
			assert.Nil(t, err)
			got, err := ReadAll(it)
			assert.Nil(t, err)
			if len(got) != len(tc.want) {
				t.Fatalf("want %d models, got %d", len(tc.want), len(got))
			}
			for i := range got {
				if !bytes.Equal(got[i].Key, tc.want[i].Key) || !bytes.Equal(got[i].Value, tc.want[i].Value) {
					t.Fatalf("model %d: want %x, got %x", i, tc.want[i].Key, got[i].Key)
				}
			}
		})
	}
}

// NilArguments ensures a nil key is rejected instead of panicking.
func (s *TestSuite) NilArguments(t *testing.T) {
	base, cleanup := s.makeBase()
	defer cleanup()

	assert.IsErr(t, errors.ErrInvalidInput, base.Set(nil, []byte("value")))
	_, err := base.Get(nil)
	assert.IsErr(t, errors.ErrInvalidInput, err)
}

// AssertGetHas makes sure that this key returns
// the given value or nil, and has is true iff
// value is non-nil
func (s *TestSuite) AssertGetHas(t testing.TB, kv ReadOnlyKVStore, key, val []byte, has bool) {
	t.Helper()
	got, err := kv.Get(key)
	assert.Nil(t, err)
	if !bytes.Equal(val, got) {
		t.Fatalf("want %q, got %q", val, got)
	}
	exists, err := kv.Has(key)
	assert.Nil(t, err)
	if has != exists {
		t.Fatalf("want has=%v, got %v", has, exists)
	}
}

func randBytes(length int) []byte {
	res := make([]byte, length)
	if _, err := rand.Read(res); err != nil {
		panic(err)
	}
	return res
}

// randModels produces a random set of models with unique keys.
func randModels(count, keySize, valueSize int) []Model {
	res := make([]Model, 0, count)
	seen := make(map[string]bool)
	for len(res) < count {
		k := randBytes(keySize)
		if seen[string(k)] {
			continue
		}
		seen[string(k)] = true
		res = append(res, Pair(k, randBytes(valueSize)))
	}
	return res
}

// sortModels returns a sorted copy of given models.
func sortModels(models []Model) []Model {
	res := make([]Model, len(models))
	copy(res, models)
	sort.Slice(res, func(i, j int) bool {
		return bytes.Compare(res[i].Key, res[j].Key) < 0
	})
	return res
}
