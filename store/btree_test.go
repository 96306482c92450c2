package store

import (
	"bytes"
	"testing"

	"github.com/iov-one/paystream/paytest/assert"
)

func TestMemStore(t *testing.T) {
	suite := NewTestSuite(func() (KVStore, func()) {
		return NewMemStore(), func() {}
	})
	suite.Run(t)
}

func TestPrefixRange(t *testing.T) {
	cases := map[string]struct {
		prefix    []byte
		wantStart []byte
		wantEnd   []byte
	}{
		"empty prefix is the whole range": {prefix: nil, wantStart: nil, wantEnd: nil},
		"simple increment":                {prefix: []byte("pch:"), wantStart: []byte("pch:"), wantEnd: []byte("pch;")},
		"overflow carries":                {prefix: []byte{0x01, 0xff}, wantStart: []byte{0x01, 0xff}, wantEnd: []byte{0x02, 0x00}},
		"all 0xff has no end":             {prefix: []byte{0xff, 0xff}, wantStart: []byte{0xff, 0xff}, wantEnd: nil},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			start, end := PrefixRange(tc.prefix)
			if !bytes.Equal(start, tc.wantStart) {
				t.Fatalf("want start %x, got %x", tc.wantStart, start)
			}
			if !bytes.Equal(end, tc.wantEnd) {
				t.Fatalf("want end %x, got %x", tc.wantEnd, end)
			}
		})
	}
}

func TestMemStoreIteratorIsSnapshot(t *testing.T) {
	db := NewMemStore()
	assert.Nil(t, db.Set([]byte("a"), []byte("1")))
	assert.Nil(t, db.Set([]byte("b"), []byte("2")))

	it, err := db.Iterator(nil, nil)
	assert.Nil(t, err)

	// Writes after the iterator was created must not deadlock nor be
	// visible to it.
	assert.Nil(t, db.Set([]byte("c"), []byte("3")))

	models, err := ReadAll(it)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(models))
}
