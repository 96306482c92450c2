package paychan

import (
	"fmt"
	"time"

	amino "github.com/tendermint/go-amino"

	"github.com/iov-one/paystream"
	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/crypto"
	"github.com/iov-one/paystream/errors"
)

// Channel describes a payment channel as known to the ledger backend.
type Channel struct {
	ID              string
	SenderAddress   crypto.Address
	ReceiverAddress crypto.Address
	SenderPublicKey *crypto.PublicKey
	// Amount is the value already settled to the receiver on the chain.
	Amount amount.Amount
	// Capacity is the total value locked in the channel. It never
	// changes after the channel was opened.
	Capacity amount.Amount
}

// Validate ensures the channel description is valid.
func (c *Channel) Validate() error {
	var errs error
	if _, err := ParseChannelID(c.ID); err != nil {
		errs = errors.AppendField(errs, "ID", err)
	}
	if err := c.SenderPublicKey.Validate(); err != nil {
		errs = errors.AppendField(errs, "SenderPublicKey", err)
	}
	if !c.Capacity.IsPositive() {
		errs = errors.Append(errs,
			errors.Field("Capacity", errors.ErrInvalidAmount, "must be positive"))
	}
	if c.Amount.GreaterThan(c.Capacity) {
		errs = errors.Append(errs,
			errors.Field("Amount", errors.ErrInvalidAmount, "greater than capacity"))
	}
	return errs
}

// ClaimEntry is a single accepted claim kept in the channel history.
type ClaimEntry struct {
	Amount    amount.Amount
	Signature []byte
	Timestamp paystream.UnixMillis
}

// Record is the durable state of a single channel. It holds the highest
// accepted claim, the highest amount settled on the chain and a bounded
// history of accepted claims.
type Record struct {
	ChannelID            string
	LastValidAmount      amount.Amount
	LastSignature        []byte
	LastPublicKey        *crypto.PublicKey
	LastFinalizedAmount  amount.Amount
	LastUpdateTime       paystream.UnixMillis
	LastFinalizationTime paystream.UnixMillis
	CreatedAt            paystream.UnixMillis

	// Capacity is nil when the channel capacity is not known.
	Capacity *amount.Amount
	// SenderPublicKey is the key bound to the channel on the chain. It
	// is nil when not known.
	SenderPublicKey *crypto.PublicKey

	// TotalClaims counts all claims ever accepted. Unlike History it is
	// never truncated.
	TotalClaims uint64
	// History holds the most recent accepted claims, oldest first.
	History []ClaimEntry
}

// newRecord returns a zeroed record created at given time.
func newRecord(channelID string, now paystream.UnixMillis) *Record {
	return &Record{
		ChannelID:            channelID,
		LastUpdateTime:       now,
		LastFinalizationTime: now,
		CreatedAt:            now,
	}
}

// Validate ensures the record is consistent.
func (r *Record) Validate() error {
	var errs error
	if _, err := ParseChannelID(r.ChannelID); err != nil {
		errs = errors.AppendField(errs, "ChannelID", err)
	}
	if r.LastFinalizedAmount.GreaterThan(r.LastValidAmount) {
		errs = errors.Append(errs,
			errors.Field("LastFinalizedAmount", errors.ErrInvalidAmount, "greater than last valid amount"))
	}
	if r.Capacity != nil && r.LastValidAmount.GreaterThan(*r.Capacity) {
		errs = errors.Append(errs,
			errors.Field("LastValidAmount", errors.ErrInvalidAmount, "greater than capacity"))
	}
	if r.LastPublicKey != nil {
		errs = errors.AppendField(errs, "LastPublicKey", r.LastPublicKey.Validate())
	}
	if r.SenderPublicKey != nil {
		errs = errors.AppendField(errs, "SenderPublicKey", r.SenderPublicKey.Validate())
	}
	errs = errors.AppendField(errs, "CreatedAt", r.CreatedAt.Validate())
	for i, e := range r.History {
		var prev *ClaimEntry
		if i > 0 {
			prev = &r.History[i-1]
		}
		errs = errors.Append(errs, errors.Nest(fmt.Sprintf("History[%d]", i), e.validate(prev)))
	}
	return errs
}

// validate checks the entry against the entry accepted before it.
func (e ClaimEntry) validate(prev *ClaimEntry) error {
	if err := e.Timestamp.Validate(); err != nil {
		return errors.Field("Timestamp", err, "")
	}
	if prev != nil && e.Timestamp < prev.Timestamp {
		return errors.Field("Timestamp", errors.ErrInvalidState, "before previous claim")
	}
	return nil
}

// Unclaimed returns the accepted amount that was not settled yet.
func (r *Record) Unclaimed() amount.Amount {
	diff, err := r.LastValidAmount.Sub(r.LastFinalizedAmount)
	if err != nil {
		// Finalized amount is never greater than the valid amount.
		return amount.Zero()
	}
	return diff
}

// RecentClaims returns history entries accepted no earlier than window
// before now.
func (r *Record) RecentClaims(now time.Time, window time.Duration) []ClaimEntry {
	since := paystream.AsUnixMillis(now.Add(-window))
	// History is ordered by time, find the first entry within the window.
	i := len(r.History)
	for i > 0 && r.History[i-1].Timestamp >= since {
		i--
	}
	res := make([]ClaimEntry, len(r.History)-i)
	copy(res, r.History[i:])
	return res
}

// Copy returns a deep copy of this record.
func (r *Record) Copy() *Record {
	c := *r
	c.LastSignature = append([]byte(nil), r.LastSignature...)
	if r.LastPublicKey != nil {
		c.LastPublicKey = &crypto.PublicKey{Ed25519: append([]byte(nil), r.LastPublicKey.Ed25519...)}
	}
	if r.SenderPublicKey != nil {
		c.SenderPublicKey = &crypto.PublicKey{Ed25519: append([]byte(nil), r.SenderPublicKey.Ed25519...)}
	}
	if r.Capacity != nil {
		capacity := *r.Capacity
		c.Capacity = &capacity
	}
	c.History = make([]ClaimEntry, len(r.History))
	copy(c.History, r.History)
	return &c
}

// cdc is the binary codec of the persisted records.
var cdc = amino.NewCodec()

// recordWire is the persisted representation of a Record. Amounts are kept
// as decimal text so that no precision is lost.
type recordWire struct {
	ChannelID            string
	LastValidAmount      string
	LastSignature        []byte
	LastPublicKey        []byte
	LastFinalizedAmount  string
	LastUpdateTime       int64
	LastFinalizationTime int64
	CreatedAt            int64
	Capacity             string
	SenderPublicKey      []byte
	TotalClaims          uint64
	History              []claimEntryWire
}

type claimEntryWire struct {
	Amount    string
	Signature []byte
	Timestamp int64
}

// Marshal returns the binary representation of this record.
func (r *Record) Marshal() ([]byte, error) {
	w := recordWire{
		ChannelID:            r.ChannelID,
		LastValidAmount:      r.LastValidAmount.String(),
		LastSignature:        r.LastSignature,
		LastFinalizedAmount:  r.LastFinalizedAmount.String(),
		LastUpdateTime:       int64(r.LastUpdateTime),
		LastFinalizationTime: int64(r.LastFinalizationTime),
		CreatedAt:            int64(r.CreatedAt),
		TotalClaims:          r.TotalClaims,
	}
	if r.LastPublicKey != nil {
		w.LastPublicKey = r.LastPublicKey.Ed25519
	}
	if r.SenderPublicKey != nil {
		w.SenderPublicKey = r.SenderPublicKey.Ed25519
	}
	if r.Capacity != nil {
		w.Capacity = r.Capacity.String()
	}
	if len(r.History) > 0 {
		w.History = make([]claimEntryWire, len(r.History))
		for i, h := range r.History {
			w.History[i] = claimEntryWire{
				Amount:    h.Amount.String(),
				Signature: h.Signature,
				Timestamp: int64(h.Timestamp),
			}
		}
	}
	raw, err := cdc.MarshalBinaryBare(w)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidModel, err.Error())
	}
	return raw, nil
}

// Unmarshal loads the state of this record from its binary representation.
func (r *Record) Unmarshal(raw []byte) error {
	var w recordWire
	if err := cdc.UnmarshalBinaryBare(raw, &w); err != nil {
		return errors.Wrap(errors.ErrInvalidModel, err.Error())
	}

	var err error
	res := Record{
		ChannelID:            w.ChannelID,
		LastSignature:        w.LastSignature,
		LastUpdateTime:       paystream.UnixMillis(w.LastUpdateTime),
		LastFinalizationTime: paystream.UnixMillis(w.LastFinalizationTime),
		CreatedAt:            paystream.UnixMillis(w.CreatedAt),
		TotalClaims:          w.TotalClaims,
	}
	if res.LastValidAmount, err = amount.Parse(w.LastValidAmount); err != nil {
		return errors.Wrap(err, "last valid amount")
	}
	if res.LastFinalizedAmount, err = amount.Parse(w.LastFinalizedAmount); err != nil {
		return errors.Wrap(err, "last finalized amount")
	}
	if len(w.LastPublicKey) > 0 {
		res.LastPublicKey = &crypto.PublicKey{Ed25519: w.LastPublicKey}
	}
	if len(w.SenderPublicKey) > 0 {
		res.SenderPublicKey = &crypto.PublicKey{Ed25519: w.SenderPublicKey}
	}
	if w.Capacity != "" {
		capacity, err := amount.Parse(w.Capacity)
		if err != nil {
			return errors.Wrap(err, "capacity")
		}
		res.Capacity = &capacity
	}
	if len(w.History) > 0 {
		res.History = make([]ClaimEntry, len(w.History))
		for i, h := range w.History {
			a, err := amount.Parse(h.Amount)
			if err != nil {
				return errors.Wrapf(err, "history %d", i)
			}
			res.History[i] = ClaimEntry{
				Amount:    a,
				Signature: h.Signature,
				Timestamp: paystream.UnixMillis(h.Timestamp),
			}
		}
	}
	*r = res
	return nil
}
