package paychan

import (
	"sync"
	"time"

	"github.com/tendermint/tendermint/libs/log"

	"github.com/iov-one/paystream"
	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/crypto"
	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/store"
)

// DefaultRetention is the default number of claims kept in the history of a
// single channel.
const DefaultRetention = 1000

// recordPrefix is the key prefix of all ledger records.
const recordPrefix = "pch:"

// ChannelMeta is the optional on-chain information about a channel that can
// be stored together with its ledger record.
type ChannelMeta struct {
	Capacity        *amount.Amount
	SenderPublicKey *crypto.PublicKey
}

// Update describes a partial modification of a ledger record. Only non nil
// fields are applied.
type Update struct {
	LastValidAmount *amount.Amount
	LastSignature   []byte
	LastPublicKey   *crypto.PublicKey
	Capacity        *amount.Amount
	SenderPublicKey *crypto.PublicKey
	// Claim, when set, is appended to the channel history and counted.
	Claim *ClaimEntry
}

// Ledger is the durable store of per channel claim state.
//
// All mutations of a single channel are serialized using a lock owned by
// that channel. Different channels never block each other. Every mutation
// is written to the underlying store before returning.
type Ledger struct {
	db        store.KVStore
	clock     paystream.Clock
	retention int
	logger    log.Logger

	locks sync.Map // channel ID -> *sync.Mutex
}

// NewLedger returns a ledger that persists records in given store. A non
// positive retention falls back to DefaultRetention.
func NewLedger(db store.KVStore, clock paystream.Clock, retention int) *Ledger {
	if clock == nil {
		clock = paystream.SystemClock{}
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Ledger{
		db:        db,
		clock:     clock,
		retention: retention,
		logger:    log.NewNopLogger(),
	}
}

// WithLogger sets the logger used by the ledger.
func (l *Ledger) WithLogger(logger log.Logger) *Ledger {
	l.logger = logger.With("module", "paychan")
	return l
}

// Retention returns the maximum number of history entries kept per channel.
func (l *Ledger) Retention() int {
	return l.retention
}

func (l *Ledger) lock(channelID string) func() {
	m, _ := l.locks.LoadOrStore(channelID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// InitializeChannel creates a zeroed record for the channel. If a record
// already exists it is returned unchanged.
func (l *Ledger) InitializeChannel(channelID string, meta ChannelMeta) (*Record, error) {
	id, err := NormalizeChannelID(channelID)
	if err != nil {
		return nil, err
	}
	defer l.lock(id)()

	switch rec, err := l.load(id); {
	case err == nil:
		return rec, nil
	case !errors.ErrChannelNotFound.Is(err):
		return nil, err
	}

	rec := newRecord(id, paystream.AsUnixMillis(l.clock.Now()))
	rec.Capacity = meta.Capacity
	rec.SenderPublicKey = meta.SenderPublicKey
	if err := rec.Validate(); err != nil {
		return nil, errors.Wrap(err, "channel meta")
	}
	if err := l.save(rec); err != nil {
		return nil, err
	}
	l.logger.Debug("channel initialized", "channel", id)
	return rec, nil
}

// UpdateChannel applies the update to the channel record. A missing record
// is created.
func (l *Ledger) UpdateChannel(channelID string, u Update) (*Record, error) {
	return l.Apply(channelID, func(rec *Record, now time.Time) error {
		if u.LastValidAmount != nil {
			rec.LastValidAmount = *u.LastValidAmount
		}
		if u.LastSignature != nil {
			rec.LastSignature = u.LastSignature
		}
		if u.LastPublicKey != nil {
			rec.LastPublicKey = u.LastPublicKey
		}
		if u.Capacity != nil {
			rec.Capacity = u.Capacity
		}
		if u.SenderPublicKey != nil {
			rec.SenderPublicKey = u.SenderPublicKey
		}
		if u.Claim != nil {
			rec.History = append(rec.History, *u.Claim)
			rec.TotalClaims++
		}
		return nil
	})
}

// UpdateFinalizedAmount records that given amount was settled on the
// chain. The amount must not be greater than the last accepted amount and
// must not be less than the previously settled amount.
func (l *Ledger) UpdateFinalizedAmount(channelID string, amt amount.Amount) (*Record, error) {
	id, err := NormalizeChannelID(channelID)
	if err != nil {
		return nil, err
	}
	defer l.lock(id)()

	rec, err := l.load(id)
	if err != nil {
		return nil, err
	}
	if amt.GreaterThan(rec.LastValidAmount) {
		return nil, errors.Wrapf(errors.ErrInvalidAmount,
			"finalized amount %s greater than last valid amount %s", amt, rec.LastValidAmount)
	}
	if rec.LastFinalizedAmount.GreaterThan(amt) {
		return nil, errors.Wrapf(errors.ErrInvalidAmount,
			"finalized amount %s less than already finalized %s", amt, rec.LastFinalizedAmount)
	}
	now := paystream.AsUnixMillis(l.clock.Now())
	rec.LastFinalizedAmount = amt
	rec.LastFinalizationTime = now
	rec.LastUpdateTime = now
	if err := l.save(rec); err != nil {
		return nil, err
	}
	l.logger.Info("channel finalized", "channel", id, "amount", amt.String())
	return rec, nil
}

// GetRecentClaims returns the accepted claims of the channel that are not
// older than given window, oldest first.
func (l *Ledger) GetRecentClaims(channelID string, window time.Duration) ([]ClaimEntry, error) {
	rec, err := l.Channel(channelID)
	if err != nil {
		return nil, err
	}
	return rec.RecentClaims(l.clock.Now(), window), nil
}

// Channel returns the record of given channel or ErrChannelNotFound.
func (l *Ledger) Channel(channelID string) (*Record, error) {
	id, err := NormalizeChannelID(channelID)
	if err != nil {
		return nil, err
	}
	return l.load(id)
}

// Channels returns all records, ordered by channel ID.
func (l *Ledger) Channels() ([]*Record, error) {
	it, err := l.db.Iterator(store.PrefixRange([]byte(recordPrefix)))
	if err != nil {
		return nil, errors.Wrap(err, "iterator")
	}
	models, err := store.ReadAll(it)
	if err != nil {
		return nil, errors.Wrap(err, "read records")
	}
	res := make([]*Record, 0, len(models))
	for _, m := range models {
		var rec Record
		if err := rec.Unmarshal(m.Value); err != nil {
			return nil, errors.Wrapf(err, "record %q", m.Key)
		}
		res = append(res, &rec)
	}
	return res, nil
}

// DeleteChannel removes the channel record. Deleting a missing channel
// returns ErrChannelNotFound.
func (l *Ledger) DeleteChannel(channelID string) error {
	id, err := NormalizeChannelID(channelID)
	if err != nil {
		return err
	}
	defer l.lock(id)()

	key := recordKey(id)
	switch ok, err := l.db.Has(key); {
	case err != nil:
		return errors.Wrap(errors.ErrDatabase, err.Error())
	case !ok:
		return errors.Wrapf(errors.ErrChannelNotFound, "channel %s", id)
	}
	if err := l.db.Delete(key); err != nil {
		return errors.Wrap(errors.ErrPersistence, err.Error())
	}
	l.logger.Info("channel deleted", "channel", id)
	return nil
}

// Apply executes fn on the channel record while holding the channel lock.
// A missing record is created zeroed. When fn returns an error nothing is
// written and the error is returned. Otherwise the modified record is
// validated, its history is trimmed to the retention limit and it is
// written to the store.
//
// The record passed to fn is a private copy. Now is the time of the
// modification, as provided by the ledger clock.
func (l *Ledger) Apply(channelID string, fn func(rec *Record, now time.Time) error) (*Record, error) {
	id, err := NormalizeChannelID(channelID)
	if err != nil {
		return nil, err
	}
	defer l.lock(id)()

	now := l.clock.Now()
	rec, err := l.load(id)
	switch {
	case errors.ErrChannelNotFound.Is(err):
		rec = newRecord(id, paystream.AsUnixMillis(now))
	case err != nil:
		return nil, err
	}

	if err := fn(rec, now); err != nil {
		return nil, err
	}
	rec.LastUpdateTime = paystream.AsUnixMillis(now)
	if n := len(rec.History); n > l.retention {
		history := make([]ClaimEntry, l.retention)
		copy(history, rec.History[n-l.retention:])
		rec.History = history
	}
	if err := rec.Validate(); err != nil {
		return nil, errors.Wrap(err, "record")
	}
	if err := l.save(rec); err != nil {
		return nil, err
	}
	return rec.Copy(), nil
}

func (l *Ledger) load(id string) (*Record, error) {
	raw, err := l.db.Get(recordKey(id))
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	if raw == nil {
		return nil, errors.Wrapf(errors.ErrChannelNotFound, "channel %s", id)
	}
	var rec Record
	if err := rec.Unmarshal(raw); err != nil {
		return nil, errors.Wrapf(err, "channel %s", id)
	}
	return &rec, nil
}

func (l *Ledger) save(rec *Record) error {
	raw, err := rec.Marshal()
	if err != nil {
		return err
	}
	if err := l.db.Set(recordKey(rec.ChannelID), raw); err != nil {
		l.logger.Error("cannot persist channel record", "channel", rec.ChannelID, "err", err)
		return errors.Wrap(errors.ErrPersistence, err.Error())
	}
	return nil
}

func recordKey(id string) []byte {
	return []byte(recordPrefix + id)
}
