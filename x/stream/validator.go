package stream

import (
	"context"
	"time"

	"github.com/tendermint/tendermint/libs/log"

	"github.com/iov-one/paystream"
	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/crypto"
	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/x/paychan"
)

const (
	// DefaultMaxClaimsPerMinute is the number of claims a channel may
	// have accepted within the rate window.
	DefaultMaxClaimsPerMinute = 60

	// DefaultRateWindow is the trailing period in which accepted claims
	// are counted by the rate limiter.
	DefaultRateWindow = time.Minute
)

// ValidatorOptions configures a Validator. Zero values fall back to
// defaults.
type ValidatorOptions struct {
	// Capacity is the channel capacity. A claim must not exceed it nor
	// the capacity stored in the ledger record, if any.
	Capacity *amount.Amount
	// SenderPublicKey is the key the channel is bound to on the chain.
	// The claim key must match it and the key stored in the ledger
	// record, if any.
	SenderPublicKey *crypto.PublicKey
	// MaxClaimsPerMinute limits the accepted claims within the window.
	MaxClaimsPerMinute int
	// Window is the rate limiter period.
	Window time.Duration
	// Verifier checks claim signatures. Defaults to LocalVerifier.
	Verifier ClaimVerifier
}

// Acceptance describes an accepted claim.
type Acceptance struct {
	ChannelID string
	// Amount is the new cumulative amount.
	Amount amount.Amount
	// Previous is the cumulative amount accepted before this claim.
	Previous amount.Amount
	// Increment is the value this claim added.
	Increment amount.Amount
	Timestamp paystream.UnixMillis
}

// Validator checks incoming claims of a single channel on the receiving
// side and records the accepted ones in the ledger.
type Validator struct {
	ledger    *paychan.Ledger
	channelID string
	publicKey *crypto.PublicKey
	opts      ValidatorOptions
	metrics   *Metrics
	logger    log.Logger
}

// NewValidator returns a validator of claims signed with given key.
func NewValidator(ledger *paychan.Ledger, channelID string, pub *crypto.PublicKey, opts ValidatorOptions) (*Validator, error) {
	id, err := paychan.NormalizeChannelID(channelID)
	if err != nil {
		return nil, err
	}
	if err := pub.Validate(); err != nil {
		return nil, errors.Wrap(err, "public key")
	}
	if opts.MaxClaimsPerMinute <= 0 {
		opts.MaxClaimsPerMinute = DefaultMaxClaimsPerMinute
	}
	if opts.Window <= 0 {
		opts.Window = DefaultRateWindow
	}
	if opts.Verifier == nil {
		opts.Verifier = LocalVerifier{}
	}
	return &Validator{
		ledger:    ledger,
		channelID: id,
		publicKey: pub,
		opts:      opts,
		logger:    log.NewNopLogger(),
	}, nil
}

// WithLogger sets the logger of the validator.
func (v *Validator) WithLogger(logger log.Logger) *Validator {
	v.logger = logger.With("module", "stream", "channel", v.channelID)
	return v
}

// WithMetrics sets the metrics collector of the validator.
func (v *Validator) WithMetrics(m *Metrics) *Validator {
	v.metrics = m
	return v
}

// ChannelID returns the channel validated by this validator.
func (v *Validator) ChannelID() string {
	return v.channelID
}

// PublicKey returns the key claims must be signed with.
func (v *Validator) PublicKey() *crypto.PublicKey {
	return v.publicKey
}

// ValidateClaim checks the claim for given cumulative amount and records
// it when accepted. All checks and the write happen while holding the
// channel lock, so claims of a single channel are processed one at a time.
// A rejected claim leaves the ledger unchanged.
func (v *Validator) ValidateClaim(ctx context.Context, amt amount.Amount, sig []byte) (*Acceptance, error) {
	var acc Acceptance
	rec, err := v.ledger.Apply(v.channelID, func(rec *paychan.Record, now time.Time) error {
		if recent := rec.RecentClaims(now, v.opts.Window); len(recent) >= v.opts.MaxClaimsPerMinute {
			return errors.Wrapf(errors.ErrRateLimited,
				"%d claims accepted within %s, limit is %d", len(recent), v.opts.Window, v.opts.MaxClaimsPerMinute)
		}

		switch ok, err := v.opts.Verifier.VerifyClaim(ctx, v.channelID, amt, sig, v.publicKey); {
		case err != nil:
			return errors.Wrap(err, "verify claim")
		case !ok:
			return errors.Wrapf(errors.ErrInvalidSignature, "claim for %s", amt)
		}

		if !amt.GreaterThan(rec.LastValidAmount) {
			return errors.Wrapf(errors.ErrStaleClaim,
				"amount %s not greater than last valid amount %s", amt, rec.LastValidAmount)
		}

		// Session settings and the stored record may both bound the
		// channel, a claim must satisfy each of them.
		for _, capacity := range []*amount.Amount{v.opts.Capacity, rec.Capacity} {
			if capacity != nil && amt.GreaterThan(*capacity) {
				return errors.Wrapf(errors.ErrCapacityExceeded,
					"amount %s greater than capacity %s", amt, capacity)
			}
		}

		for _, bound := range []*crypto.PublicKey{v.opts.SenderPublicKey, rec.SenderPublicKey} {
			if bound != nil && !bound.Equals(v.publicKey) {
				return errors.Wrapf(errors.ErrKeyMismatch,
					"claim key %s, channel key %s", v.publicKey, bound)
			}
		}

		ts := paystream.AsUnixMillis(now)
		acc = Acceptance{
			ChannelID: v.channelID,
			Amount:    amt,
			Previous:  rec.LastValidAmount,
			Timestamp: ts,
		}
		acc.Increment, _ = amt.Sub(rec.LastValidAmount)

		rec.LastValidAmount = amt
		rec.LastSignature = sig
		rec.LastPublicKey = v.publicKey
		if rec.Capacity == nil && v.opts.Capacity != nil {
			rec.Capacity = v.opts.Capacity
		}
		if rec.SenderPublicKey == nil && v.opts.SenderPublicKey != nil {
			rec.SenderPublicKey = v.opts.SenderPublicKey
		}
		rec.History = append(rec.History, paychan.ClaimEntry{
			Amount:    amt,
			Signature: sig,
			Timestamp: ts,
		})
		rec.TotalClaims++
		return nil
	})
	if err != nil {
		v.metrics.claimRejected(err)
		if errors.ErrPersistence.Is(err) {
			v.logger.Error("cannot record claim", "amount", amt.String(), "err", err)
		} else {
			v.logger.Info("claim rejected", "amount", amt.String(), "reason", rejectionReason(err), "err", err)
		}
		return nil, err
	}
	v.metrics.claimAccepted(v.channelID, rec.Unclaimed())
	v.logger.Debug("claim accepted", "amount", amt.String(), "increment", acc.Increment.String())
	return &acc, nil
}
