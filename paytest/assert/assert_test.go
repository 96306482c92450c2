package assert

import (
	"fmt"
	"testing"

	"github.com/iov-one/paystream/errors"
)

type recorder struct {
	failed bool
}

func (r *recorder) Helper()                       {}
func (r *recorder) Fatal(...interface{})          { r.failed = true }
func (r *recorder) Fatalf(string, ...interface{}) { r.failed = true }

func TestNil(t *testing.T) {
	var r recorder
	var nilErr *errors.Error
	Nil(&r, nil)
	Nil(&r, nilErr)
	if r.failed {
		t.Fatal("nil values must pass")
	}
	Nil(&r, fmt.Errorf("boom"))
	if !r.failed {
		t.Fatal("non nil value must fail")
	}
}

func TestEqual(t *testing.T) {
	var r recorder
	Equal(&r, []byte("a"), []byte("a"))
	if r.failed {
		t.Fatal("equal values must pass")
	}
	Equal(&r, 1, int64(1))
	if !r.failed {
		t.Fatal("different types must fail")
	}
}

func TestIsErr(t *testing.T) {
	var r recorder
	IsErr(&r, errors.ErrStaleClaim, errors.Wrap(errors.ErrStaleClaim, "replay"))
	IsErr(&r, nil, nil)
	if r.failed {
		t.Fatal("matching errors must pass")
	}
	IsErr(&r, errors.ErrStaleClaim, errors.ErrKeyMismatch)
	if !r.failed {
		t.Fatal("different errors must fail")
	}
}

func TestPanics(t *testing.T) {
	Panics(t, func() { panic("boom") })
}
