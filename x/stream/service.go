package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	uuid "github.com/hashicorp/go-uuid"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/iov-one/paystream"
	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/crypto"
	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/x/paychan"
)

// Handle identifies a streaming session.
type Handle string

// SigningOptions configures a sending session.
type SigningOptions struct {
	// Key signs the claims. Required.
	Key crypto.Signer
	// BaseAmount is the amount already authorized in the channel.
	BaseAmount amount.Amount
}

// ValidatingOptions configures a receiving session.
type ValidatingOptions struct {
	// Capacity of the channel. Fetched from the backend when nil.
	Capacity *amount.Amount
	// SenderPublicKey the channel is bound to on the chain. Fetched from
	// the backend when nil.
	SenderPublicKey *crypto.PublicKey
	// MaxClaimsPerMinute overrides the service default.
	MaxClaimsPerMinute int
	// VerifyWithBackend uses the backend to verify claim signatures.
	VerifyWithBackend bool
}

// Stats summarizes the ledger state of a channel.
type Stats struct {
	ChannelID           string        `json:"channelId"`
	LastValidAmount     amount.Amount `json:"lastValidAmount"`
	LastFinalizedAmount amount.Amount `json:"lastFinalizedAmount"`
	UnclaimedAmount     amount.Amount `json:"unclaimedAmount"`
	TotalClaims         uint64        `json:"totalClaims"`
}

// ServiceConfig holds the defaults of a Service.
type ServiceConfig struct {
	// Mode of all sessions. Claim sessions run only in ModeChannel, direct
	// transfers are executed by the ledger client.
	Mode               Mode
	MaxClaimsPerMinute int
	RateWindow         time.Duration
}

// Service manages the streaming sessions of a process. Sessions are kept in
// memory only, the ledger is the only durable state.
type Service struct {
	ledger  *paychan.Ledger
	backend Backend
	clock   paystream.Clock
	conf    ServiceConfig
	metrics *Metrics
	logger  log.Logger

	mu         sync.Mutex
	signers    map[Handle]*Signer
	validators map[Handle]*Validator
}

// NewService returns a service recording claims in given ledger. Backend is
// optional.
func NewService(ledger *paychan.Ledger, backend Backend, clock paystream.Clock, conf ServiceConfig) *Service {
	if clock == nil {
		clock = paystream.SystemClock{}
	}
	return &Service{
		ledger:     ledger,
		backend:    backend,
		clock:      clock,
		conf:       conf,
		logger:     log.NewNopLogger(),
		signers:    make(map[Handle]*Signer),
		validators: make(map[Handle]*Validator),
	}
}

// WithLogger sets the logger of the service and of the sessions it starts.
func (s *Service) WithLogger(logger log.Logger) *Service {
	s.logger = logger
	return s
}

// WithMetrics sets the metrics collector of the sessions it starts.
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

func newHandle() (Handle, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", errors.Wrap(errors.ErrInternal, err.Error())
	}
	return Handle(id), nil
}

// StartSigning starts a sending session streaming given rate per second.
func (s *Service) StartSigning(channelID string, rate amount.Amount, opts SigningOptions) (Handle, error) {
	if err := s.claimMode(); err != nil {
		return "", err
	}
	signer, err := NewSigner(opts.Key, channelID, rate, opts.BaseAmount, s.clock)
	if err != nil {
		return "", err
	}
	h, err := newHandle()
	if err != nil {
		return "", err
	}
	signer.Start()

	s.mu.Lock()
	s.signers[h] = signer
	s.mu.Unlock()

	s.logger.Info("signing started", "session", string(h), "channel", signer.ChannelID(), "rate", rate.String())
	return h, nil
}

// claimMode returns an error unless the service streams channel claims.
func (s *Service) claimMode() error {
	if s.conf.Mode != ModeChannel {
		return errors.Wrapf(errors.ErrInvalidState, "no claim sessions in %s mode", s.conf.Mode)
	}
	return nil
}

func (s *Service) signer(h Handle) (*Signer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	signer, ok := s.signers[h]
	if !ok {
		return nil, errors.Wrapf(errors.ErrSessionNotFound, "signing session %q", h)
	}
	return signer, nil
}

// StopSigning stops and closes the sending session. It returns the final
// authorized amount.
func (s *Service) StopSigning(h Handle) (amount.Amount, error) {
	s.mu.Lock()
	signer, ok := s.signers[h]
	delete(s.signers, h)
	s.mu.Unlock()
	if !ok {
		return amount.Zero(), errors.Wrapf(errors.ErrSessionNotFound, "signing session %q", h)
	}
	final := signer.Stop()
	s.logger.Info("signing stopped", "session", string(h), "amount", final.String())
	return final, nil
}

// PauseSigning freezes the authorized amount of the session without
// closing it.
func (s *Service) PauseSigning(h Handle) (amount.Amount, error) {
	signer, err := s.signer(h)
	if err != nil {
		return amount.Zero(), err
	}
	return signer.Stop(), nil
}

// ResumeSigning resumes accrual of a paused session.
func (s *Service) ResumeSigning(h Handle) error {
	signer, err := s.signer(h)
	if err != nil {
		return err
	}
	signer.Start()
	return nil
}

// SignClaim returns a claim for the amount currently authorized by the
// session.
func (s *Service) SignClaim(h Handle) (*paychan.Claim, error) {
	signer, err := s.signer(h)
	if err != nil {
		return nil, err
	}
	return signer.SignCurrentClaim()
}

// SignPayment returns the current claim of the session as a Payment.
func (s *Service) SignPayment(h Handle) (Payment, error) {
	claim, err := s.SignClaim(h)
	if err != nil {
		return nil, err
	}
	return &ChannelClaim{Claim: *claim}, nil
}

// StartValidating starts a receiving session accepting claims signed with
// given key. Channel capacity and on-chain key not provided in options are
// fetched from the backend, if one is configured. The ledger record of the
// channel is created when missing.
func (s *Service) StartValidating(ctx context.Context, channelID string, pub *crypto.PublicKey, opts ValidatingOptions) (Handle, error) {
	if err := s.claimMode(); err != nil {
		return "", err
	}
	if s.backend != nil && (opts.Capacity == nil || opts.SenderPublicKey == nil) {
		info, err := s.backend.ChannelInfo(ctx, channelID)
		if err != nil {
			return "", errors.Wrap(err, "channel info")
		}
		if info == nil {
			return "", errors.Wrapf(errors.ErrNotFound, "no info of channel %s", channelID)
		}
		if err := info.Validate(); err != nil {
			return "", errors.Wrap(err, "channel info")
		}
		if !strings.EqualFold(info.ID, channelID) {
			return "", errors.Wrapf(errors.ErrInvalidState, "info of channel %s returned for %s", info.ID, channelID)
		}
		if opts.Capacity == nil {
			capacity := info.Capacity
			opts.Capacity = &capacity
		}
		if opts.SenderPublicKey == nil {
			opts.SenderPublicKey = info.SenderPublicKey
		}
	}

	vopts := ValidatorOptions{
		Capacity:           opts.Capacity,
		SenderPublicKey:    opts.SenderPublicKey,
		MaxClaimsPerMinute: s.conf.MaxClaimsPerMinute,
		Window:             s.conf.RateWindow,
	}
	if opts.MaxClaimsPerMinute > 0 {
		vopts.MaxClaimsPerMinute = opts.MaxClaimsPerMinute
	}
	if opts.VerifyWithBackend {
		if s.backend == nil {
			return "", errors.Wrap(errors.ErrInvalidState, "no backend to verify claims with")
		}
		vopts.Verifier = s.backend
	}
	v, err := NewValidator(s.ledger, channelID, pub, vopts)
	if err != nil {
		return "", err
	}
	v.WithLogger(s.logger).WithMetrics(s.metrics)

	meta := paychan.ChannelMeta{Capacity: opts.Capacity, SenderPublicKey: opts.SenderPublicKey}
	if _, err := s.ledger.InitializeChannel(v.ChannelID(), meta); err != nil {
		return "", errors.Wrap(err, "initialize channel")
	}

	h, err := newHandle()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.validators[h] = v
	s.mu.Unlock()

	s.logger.Info("validation started", "session", string(h), "channel", v.ChannelID())
	return h, nil
}

// StopValidating closes the receiving session. Already accepted claims are
// kept in the ledger.
func (s *Service) StopValidating(h Handle) error {
	s.mu.Lock()
	_, ok := s.validators[h]
	delete(s.validators, h)
	s.mu.Unlock()
	if !ok {
		return errors.Wrapf(errors.ErrSessionNotFound, "validating session %q", h)
	}
	s.logger.Info("validation stopped", "session", string(h))
	return nil
}

// ValidateClaim checks and records a claim received in the session.
func (s *Service) ValidateClaim(ctx context.Context, h Handle, amt amount.Amount, sig []byte) (*Acceptance, error) {
	s.mu.Lock()
	v, ok := s.validators[h]
	s.mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrSessionNotFound, "validating session %q", h)
	}
	return v.ValidateClaim(ctx, amt, sig)
}

// GetChannelStats returns the ledger summary of the channel.
func (s *Service) GetChannelStats(channelID string) (*Stats, error) {
	rec, err := s.ledger.Channel(channelID)
	if err != nil {
		return nil, err
	}
	return StatsOf(rec), nil
}

// StatsOf summarizes given record.
func StatsOf(rec *paychan.Record) *Stats {
	return &Stats{
		ChannelID:           rec.ChannelID,
		LastValidAmount:     rec.LastValidAmount,
		LastFinalizedAmount: rec.LastFinalizedAmount,
		UnclaimedAmount:     rec.Unclaimed(),
		TotalClaims:         rec.TotalClaims,
	}
}
