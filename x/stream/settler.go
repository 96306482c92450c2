package stream

import (
	"context"
	"sync"
	"time"

	"github.com/tendermint/tendermint/libs/log"
	"golang.org/x/sync/errgroup"

	"github.com/iov-one/paystream"
	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/x/paychan"
)

// DefaultSweepConcurrency is the number of channels settled at the same
// time by SweepDue.
const DefaultSweepConcurrency = 4

// Settlement outcomes.
const (
	OutcomeSettled = "settled"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Settlement is the result of a single channel settlement attempt.
type Settlement struct {
	ChannelID      string
	Recommendation paychan.Recommendation
	// Amount is the cumulative amount submitted to the chain.
	Amount amount.Amount
	TxID   string
	// Err is set when the settlement failed. SweepDue reports per channel
	// failures here instead of aborting.
	Err error
}

// Outcome returns one of OutcomeSettled, OutcomeSkipped or OutcomeFailed.
func (s *Settlement) Outcome() string {
	switch {
	case s.Err != nil:
		return OutcomeFailed
	case s.TxID != "":
		return OutcomeSettled
	default:
		return OutcomeSkipped
	}
}

// Settler submits accepted claims to the chain when the finalization policy
// recommends it.
type Settler struct {
	ledger      *paychan.Ledger
	backend     Backend
	policy      paychan.Policy
	clock       paystream.Clock
	concurrency int
	metrics     *Metrics
	logger      log.Logger

	inflight sync.Map // channel ID -> struct{}
}

// NewSettler returns a settler using given policy.
func NewSettler(ledger *paychan.Ledger, backend Backend, policy paychan.Policy, clock paystream.Clock) *Settler {
	if clock == nil {
		clock = paystream.SystemClock{}
	}
	return &Settler{
		ledger:      ledger,
		backend:     backend,
		policy:      policy,
		clock:       clock,
		concurrency: DefaultSweepConcurrency,
		logger:      log.NewNopLogger(),
	}
}

// WithLogger sets the logger of the settler.
func (s *Settler) WithLogger(logger log.Logger) *Settler {
	s.logger = logger.With("module", "settler")
	return s
}

// WithMetrics sets the metrics collector of the settler.
func (s *Settler) WithMetrics(m *Metrics) *Settler {
	s.metrics = m
	return s
}

// WithConcurrency sets how many channels SweepDue settles at the same time.
func (s *Settler) WithConcurrency(n int) *Settler {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Evaluate returns the finalization recommendation for the channel without
// settling it.
func (s *Settler) Evaluate(channelID string) (*paychan.Record, paychan.Recommendation, error) {
	rec, err := s.ledger.Channel(channelID)
	if err != nil {
		return nil, paychan.Recommendation{}, err
	}
	return rec, s.policy.Evaluate(rec, s.clock.Now()), nil
}

// SettleIfDue evaluates the finalization policy for the channel and, when
// recommended, submits the last accepted claim. The finalized amount is
// recorded only after the backend confirmed the submission.
//
// Only one settlement of a channel runs at a time. A call made while
// another one for the same channel is in progress fails with ErrDuplicate.
// The record is read only after the channel was reserved, so a call never
// acts on a finalized amount older than the last completed settlement.
func (s *Settler) SettleIfDue(ctx context.Context, channelID string) (*Settlement, error) {
	id, err := paychan.NormalizeChannelID(channelID)
	if err != nil {
		return nil, err
	}
	if _, busy := s.inflight.LoadOrStore(id, struct{}{}); busy {
		return nil, errors.Wrapf(errors.ErrDuplicate, "settlement of %s in progress", id)
	}
	defer s.inflight.Delete(id)

	rec, recommendation, err := s.Evaluate(id)
	if err != nil {
		return nil, err
	}
	res := &Settlement{
		ChannelID:      rec.ChannelID,
		Recommendation: recommendation,
	}
	if !recommendation.ShouldFinalize {
		return res, nil
	}

	if len(rec.LastSignature) == 0 || rec.LastPublicKey == nil {
		return nil, errors.Wrap(errors.ErrInvalidState, "no signed claim to settle")
	}

	res.Amount = rec.LastValidAmount
	txID, err := s.backend.SubmitSettlement(ctx, rec.ChannelID, rec.LastValidAmount, rec.LastSignature, rec.LastPublicKey)
	if err != nil {
		s.metrics.settled(rec.ChannelID, OutcomeFailed, recommendation.UnclaimedAmount)
		s.logger.Error("cannot submit settlement",
			"channel", rec.ChannelID, "amount", rec.LastValidAmount.String(), "err", err)
		return nil, errors.Wrap(err, "submit settlement")
	}
	res.TxID = txID

	updated, err := s.ledger.UpdateFinalizedAmount(rec.ChannelID, rec.LastValidAmount)
	if err != nil {
		s.logger.Error("settled on chain but cannot record it",
			"channel", rec.ChannelID, "tx", txID, "err", err)
		return nil, errors.Wrap(err, "record finalized amount")
	}
	s.metrics.settled(rec.ChannelID, OutcomeSettled, updated.Unclaimed())
	s.logger.Info("channel settled",
		"channel", rec.ChannelID, "amount", rec.LastValidAmount.String(),
		"reason", string(recommendation.Reason), "tx", txID)
	return res, nil
}

// SweepDue attempts to settle every channel in the ledger. Per channel
// failures are reported in the returned settlements. An error is returned
// only when the sweep itself could not run to the end.
func (s *Settler) SweepDue(ctx context.Context) ([]Settlement, error) {
	recs, err := s.ledger.Channels()
	if err != nil {
		return nil, errors.Wrap(err, "list channels")
	}

	results := make([]Settlement, len(recs))
	sem := make(chan struct{}, s.concurrency)
	g, ctx := errgroup.WithContext(ctx)
	for i, rec := range recs {
		i, id := i, rec.ChannelID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			res, err := s.SettleIfDue(ctx, id)
			if err != nil {
				results[i] = Settlement{ChannelID: id, Err: err}
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, errors.Wrap(errors.ErrInternal, err.Error())
	}
	return results, nil
}

// Run sweeps all channels every interval until the context is canceled.
// Sweep failures are logged and do not stop the loop.
func (s *Settler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		results, err := s.SweepDue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("settlement sweep failed", "err", err)
			continue
		}
		var settled, failed int
		for _, r := range results {
			switch r.Outcome() {
			case OutcomeSettled:
				settled++
			case OutcomeFailed:
				failed++
			}
		}
		s.logger.Debug("settlement sweep done", "channels", len(results), "settled", settled, "failed", failed)
	}
}
