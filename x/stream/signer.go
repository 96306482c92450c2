package stream

import (
	"sync"
	"time"

	"github.com/iov-one/paystream"
	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/crypto"
	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/x/paychan"
)

// Signer produces claims for a single channel on the sending side.
//
// While streaming, the authorized amount grows by the rate for every whole
// second elapsed since the signer was started. Stopping the signer freezes
// the authorized amount. Starting it again resumes accrual from the frozen
// amount. Signer is safe for concurrent use.
type Signer struct {
	key       crypto.Signer
	channelID string
	rate      amount.Amount
	clock     paystream.Clock

	mu     sync.Mutex
	active bool
	start  time.Time
	base   amount.Amount
}

// NewSigner returns an idle signer. Base is the amount already authorized
// in the channel, usually zero for a new session.
func NewSigner(key crypto.Signer, channelID string, rate, base amount.Amount, clock paystream.Clock) (*Signer, error) {
	if key == nil {
		return nil, errors.Wrap(errors.ErrEmpty, "signing key")
	}
	id, err := paychan.NormalizeChannelID(channelID)
	if err != nil {
		return nil, err
	}
	if !rate.IsPositive() {
		return nil, errors.Wrap(errors.ErrInvalidAmount, "rate must be positive")
	}
	if clock == nil {
		clock = paystream.SystemClock{}
	}
	return &Signer{
		key:       key,
		channelID: id,
		rate:      rate,
		clock:     clock,
		base:      base,
	}, nil
}

// ChannelID returns the channel this signer authorizes payments in.
func (s *Signer) ChannelID() string {
	return s.channelID
}

// Rate returns the amount authorized for every streamed second.
func (s *Signer) Rate() amount.Amount {
	return s.rate
}

// Start begins accruing value. Calling Start on a streaming signer is a
// no-op.
func (s *Signer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.start = s.clock.Now()
}

// Stop freezes the authorized amount and returns it. Calling Stop on an
// idle signer is a no-op.
func (s *Signer) Stop() amount.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.base = s.authorized(s.clock.Now())
		s.active = false
	}
	return s.base
}

// Active returns true if the signer is streaming.
func (s *Signer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// CurrentAuthorizedAmount returns the cumulative amount the receiver may
// claim right now.
func (s *Signer) CurrentAuthorizedAmount() amount.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorized(s.clock.Now())
}

func (s *Signer) authorized(now time.Time) amount.Amount {
	if !s.active {
		return s.base
	}
	return s.base.Add(amount.Accrue(s.rate, s.start, now))
}

// SignCurrentClaim returns a claim for the currently authorized amount.
func (s *Signer) SignCurrentClaim() (*paychan.Claim, error) {
	s.mu.Lock()
	now := s.clock.Now()
	amt := s.authorized(now)
	s.mu.Unlock()

	sig, err := paychan.SignClaim(s.channelID, amt, s.key)
	if err != nil {
		return nil, err
	}
	return &paychan.Claim{
		ChannelID: s.channelID,
		Amount:    amt,
		Signature: sig,
		PublicKey: s.key.PublicKey(),
		Timestamp: paystream.AsUnixMillis(now),
	}, nil
}
