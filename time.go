package paystream

import (
	"encoding/json"
	"time"

	"github.com/iov-one/paystream/errors"
)

// UnixMillis represents a point in time as milliseconds elapsed since the
// UNIX epoch. Session and ledger bookkeeping is done with millisecond
// precision, while rate accrual truncates to whole seconds.
type UnixMillis int64

// Time returns a time.Time structure that represents the same moment in time.
func (t UnixMillis) Time() time.Time {
	return time.Unix(0, int64(t)*int64(time.Millisecond))
}

// IsZero returns true if this time represents a zero value.
func (t UnixMillis) IsZero() bool {
	return t == 0
}

// Add modifies this time by given duration, truncated to milliseconds.
func (t UnixMillis) Add(d time.Duration) UnixMillis {
	return t + UnixMillis(d/time.Millisecond)
}

// Sub returns the duration t-u.
func (t UnixMillis) Sub(u UnixMillis) time.Duration {
	return time.Duration(t-u) * time.Millisecond
}

// AsUnixMillis converts given Time structure into its millisecond
// representation.
func AsUnixMillis(t time.Time) UnixMillis {
	return UnixMillis(t.UnixNano() / int64(time.Millisecond))
}

// UnmarshalJSON supports unmarshaling both as time.Time and from a number.
func (t *UnixMillis) UnmarshalJSON(raw []byte) error {
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		if ms < 0 {
			return errors.Wrap(errors.ErrInvalidInput, "time before epoch")
		}
		*t = UnixMillis(ms)
		return nil
	}

	var stdtime time.Time
	if err := json.Unmarshal(raw, &stdtime); err == nil {
		ms := AsUnixMillis(stdtime)
		if ms < 0 {
			return errors.Wrap(errors.ErrInvalidInput, "time before epoch")
		}
		*t = ms
		return nil
	}

	return errors.Wrap(errors.ErrInvalidInput, "invalid time format")
}

// Validate returns an error if this time value is invalid.
func (t UnixMillis) Validate() error {
	if t < 0 {
		return errors.Wrap(errors.ErrInvalidState, "negative value")
	}
	return nil
}

// String returns the usual string representation of this time as the time.Time
// structure would.
func (t UnixMillis) String() string {
	return t.Time().UTC().String()
}

// Clock provides the current time. Components that depend on wall clock
// time accept a Clock so that tests can control time.
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
