/*
Package amount implements exact arithmetic for monetary values.

All values are non-negative integers expressed in the smallest indivisible
currency unit. Floating point is never used. The same unit basis is used when
signing a claim, when verifying it and when talking to the ledger backend, so
no conversion happens at either end.
*/
package amount

import (
	"encoding/json"
	"math/big"
	"regexp"
	"time"

	"github.com/iov-one/paystream/errors"
)

// isDecimal matches the only accepted textual representation: base 10
// digits without sign, separators or fraction.
var isDecimal = regexp.MustCompile(`^[0-9]+$`).MatchString

// Amount is a non-negative arbitrary precision integer. The zero value
// represents 0 and is ready to use. Amount is immutable, all operations
// return a new value.
type Amount struct {
	v *big.Int
}

// Zero returns an amount of 0.
func Zero() Amount {
	return Amount{}
}

// New returns an amount of given value.
func New(v uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(v)}
}

// FromBig returns an amount holding a copy of given value. Negative values
// are rejected.
func FromBig(v *big.Int) (Amount, error) {
	if v == nil {
		return Zero(), nil
	}
	if v.Sign() < 0 {
		return Zero(), errors.Wrapf(errors.ErrInvalidAmount, "negative value %s", v)
	}
	return Amount{v: new(big.Int).Set(v)}, nil
}

// Parse returns an amount from its decimal text representation.
func Parse(s string) (Amount, error) {
	if !isDecimal(s) {
		return Zero(), errors.Wrapf(errors.ErrInvalidAmount, "malformed decimal %q", s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Zero(), errors.Wrapf(errors.ErrInvalidAmount, "malformed decimal %q", s)
	}
	return Amount{v: v}, nil
}

// MustParse is like Parse but panics on malformed input. Use it only with
// constant values.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromMajor converts a count of major denomination units into the smallest
// unit, for example 100 XRP with 1_000_000 drops per XRP.
func FromMajor(major, unitsPerMajor uint64) Amount {
	return New(major).Mul(New(unitsPerMajor))
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// Big returns a copy of the underlying value.
func (a Amount) Big() *big.Int {
	return new(big.Int).Set(a.big())
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.big(), b.big())}
}

// Sub returns a - b. It fails if the result would be negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Cmp(b) < 0 {
		return Zero(), errors.Wrapf(errors.ErrInvalidAmount, "%s is less than %s", a, b)
	}
	return Amount{v: new(big.Int).Sub(a.big(), b.big())}, nil
}

// Mul returns a * b.
func (a Amount) Mul(b Amount) Amount {
	return Amount{v: new(big.Int).Mul(a.big(), b.big())}
}

// Cmp compares two amounts and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.big().Cmp(b.big())
}

// Equals returns true if both amounts represent the same value.
func (a Amount) Equals(b Amount) bool {
	return a.Cmp(b) == 0
}

// GreaterThan returns true if a > b.
func (a Amount) GreaterThan(b Amount) bool {
	return a.Cmp(b) > 0
}

// IsZero returns true if this amount is 0.
func (a Amount) IsZero() bool {
	return a.big().Sign() == 0
}

// IsPositive returns true if this amount is greater than 0.
func (a Amount) IsPositive() bool {
	return a.big().Sign() > 0
}

// Uint64 returns the value as uint64 or fails with ErrOverflow if it does
// not fit.
func (a Amount) Uint64() (uint64, error) {
	if !a.big().IsUint64() {
		return 0, errors.Wrapf(errors.ErrOverflow, "%s does not fit 64 bits", a)
	}
	return a.big().Uint64(), nil
}

// String returns the decimal representation.
func (a Amount) String() string {
	return a.big().String()
}

// MarshalJSON encodes the amount as a decimal string so that no precision is
// lost by JSON number handling.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both a decimal string and a JSON integer.
func (a *Amount) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return errors.Wrap(errors.ErrInvalidAmount, "neither string nor number")
		}
		s = n.String()
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// WholeSeconds returns the number of whole seconds elapsed between start and
// now. Elapsed time is first truncated to milliseconds and then to seconds,
// so 1999ms is 1 second. A negative elapsed time counts as 0.
func WholeSeconds(start, now time.Time) uint64 {
	ms := now.Sub(start) / time.Millisecond
	if ms <= 0 {
		return 0
	}
	return uint64(ms / 1000)
}

// Accrue returns the amount authorized by streaming at given rate (smallest
// units per second) between start and now. Only whole seconds accrue.
func Accrue(rate Amount, start, now time.Time) Amount {
	return rate.Mul(New(WholeSeconds(start, now)))
}
