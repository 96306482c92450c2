package paychan

import (
	"time"

	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/errors"
)

const (
	// UnitsPerMajor is the number of smallest units in one major unit of
	// the ledger currency.
	UnitsPerMajor = 1000000

	// DefaultMaxInterval is the longest time accepted value may stay
	// unsettled.
	DefaultMaxInterval = time.Hour
)

// Reason explains a finalization recommendation.
type Reason string

const (
	// ReasonThreshold is given when the unsettled amount reached the
	// minimum amount.
	ReasonThreshold Reason = "threshold"
	// ReasonTimeout is given when there is unsettled value and the last
	// finalization happened too long ago.
	ReasonTimeout Reason = "timeout"
	// ReasonNone is given when the channel should not be finalized.
	ReasonNone Reason = "none"
)

// Policy decides when the accepted off-chain value should be settled on
// the chain.
type Policy struct {
	// MinAmount is the unsettled amount, in smallest units, that
	// triggers finalization.
	MinAmount amount.Amount
	// MaxInterval is the longest time unsettled value is kept.
	MaxInterval time.Duration
}

// DefaultPolicy returns a policy that finalizes after 100 major units or
// one hour.
func DefaultPolicy() Policy {
	return Policy{
		MinAmount:   amount.FromMajor(100, UnitsPerMajor),
		MaxInterval: DefaultMaxInterval,
	}
}

// Validate returns an error if the policy cannot be used.
func (p Policy) Validate() error {
	var errs error
	if !p.MinAmount.IsPositive() {
		errs = errors.Append(errs,
			errors.Field("MinAmount", errors.ErrInvalidAmount, "must be positive"))
	}
	if p.MaxInterval <= 0 {
		errs = errors.Append(errs,
			errors.Field("MaxInterval", errors.ErrInvalidInput, "must be positive"))
	}
	return errs
}

// Recommendation is the result of a policy evaluation.
type Recommendation struct {
	ShouldFinalize  bool
	Reason          Reason
	UnclaimedAmount amount.Amount
}

// Evaluate returns the finalization recommendation for the record at given
// time. It does not modify the record.
func (p Policy) Evaluate(rec *Record, now time.Time) Recommendation {
	unclaimed := rec.Unclaimed()
	if unclaimed.IsPositive() && unclaimed.Cmp(p.MinAmount) >= 0 {
		return Recommendation{ShouldFinalize: true, Reason: ReasonThreshold, UnclaimedAmount: unclaimed}
	}
	if unclaimed.IsPositive() && now.Sub(rec.LastFinalizationTime.Time()) > p.MaxInterval {
		return Recommendation{ShouldFinalize: true, Reason: ReasonTimeout, UnclaimedAmount: unclaimed}
	}
	return Recommendation{ShouldFinalize: false, Reason: ReasonNone, UnclaimedAmount: unclaimed}
}
