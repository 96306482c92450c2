package paychan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iov-one/paystream"
	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/crypto"
	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/paytest"
	"github.com/iov-one/paystream/paytest/assert"
)

func TestRecordSerialization(t *testing.T) {
	key := paytest.SeedKey(1)
	now := paystream.AsUnixMillis(paytest.Epoch)
	capacity := amount.MustParse("100000000000000000000")

	rec := &Record{
		ChannelID:            paytest.ChannelID(1),
		LastValidAmount:      amount.New(5000),
		LastSignature:        []byte("signature"),
		LastPublicKey:        key.PublicKey(),
		LastFinalizedAmount:  amount.New(1000),
		LastUpdateTime:       now.Add(time.Minute),
		LastFinalizationTime: now.Add(time.Second),
		CreatedAt:            now,
		Capacity:             &capacity,
		SenderPublicKey:      key.PublicKey(),
		TotalClaims:          1234,
		History: []ClaimEntry{
			{Amount: amount.New(4000), Signature: []byte("a"), Timestamp: now.Add(10 * time.Second)},
			{Amount: amount.New(5000), Signature: []byte("b"), Timestamp: now.Add(time.Minute)},
		},
	}
	raw, err := rec.Marshal()
	require.NoError(t, err)

	var got Record
	require.NoError(t, got.Unmarshal(raw))
	require.Equal(t, rec.ChannelID, got.ChannelID)
	require.True(t, rec.LastValidAmount.Equals(got.LastValidAmount))
	require.True(t, rec.LastFinalizedAmount.Equals(got.LastFinalizedAmount))
	require.True(t, capacity.Equals(*got.Capacity))
	require.True(t, key.PublicKey().Equals(got.LastPublicKey))
	require.True(t, key.PublicKey().Equals(got.SenderPublicKey))
	require.Equal(t, rec.LastSignature, got.LastSignature)
	require.Equal(t, rec.LastUpdateTime, got.LastUpdateTime)
	require.Equal(t, rec.LastFinalizationTime, got.LastFinalizationTime)
	require.Equal(t, rec.CreatedAt, got.CreatedAt)
	require.Equal(t, rec.TotalClaims, got.TotalClaims)
	require.Len(t, got.History, 2)
	require.True(t, got.History[1].Amount.Equals(amount.New(5000)))
	require.Equal(t, []byte("b"), got.History[1].Signature)
	require.Equal(t, now.Add(time.Minute), got.History[1].Timestamp)
}

func TestEmptyRecordSerialization(t *testing.T) {
	rec := newRecord(paytest.ChannelID(2), paystream.AsUnixMillis(paytest.Epoch))
	raw, err := rec.Marshal()
	require.NoError(t, err)

	var got Record
	require.NoError(t, got.Unmarshal(raw))
	require.Nil(t, got.Capacity)
	require.Nil(t, got.LastPublicKey)
	require.Nil(t, got.SenderPublicKey)
	require.Empty(t, got.History)
	require.True(t, got.LastValidAmount.IsZero())
	require.Equal(t, rec.CreatedAt, got.LastFinalizationTime)
}

func TestRecordUnmarshalGarbage(t *testing.T) {
	var rec Record
	err := rec.Unmarshal([]byte{0xff, 0xff, 0xff})
	assert.IsErr(t, errors.ErrInvalidModel, err)
}

func TestRecordValidate(t *testing.T) {
	capacity := amount.New(100)

	cases := map[string]struct {
		Record    Record
		WantField string
		WantErr   *errors.Error
	}{
		"valid": {
			Record: Record{
				ChannelID:           paytest.ChannelID(1),
				LastValidAmount:     amount.New(100),
				LastFinalizedAmount: amount.New(10),
				Capacity:            &capacity,
			},
		},
		"bad channel ID": {
			Record:    Record{ChannelID: "nope"},
			WantField: "ChannelID",
			WantErr:   errors.ErrInvalidInput,
		},
		"finalized above valid": {
			Record: Record{
				ChannelID:           paytest.ChannelID(1),
				LastValidAmount:     amount.New(5),
				LastFinalizedAmount: amount.New(10),
			},
			WantField: "LastFinalizedAmount",
			WantErr:   errors.ErrInvalidAmount,
		},
		"above capacity": {
			Record: Record{
				ChannelID:       paytest.ChannelID(1),
				LastValidAmount: amount.New(101),
				Capacity:        &capacity,
			},
			WantField: "LastValidAmount",
			WantErr:   errors.ErrInvalidAmount,
		},
		"malformed key": {
			Record: Record{
				ChannelID:     paytest.ChannelID(1),
				LastPublicKey: &crypto.PublicKey{Ed25519: []byte{1, 2, 3}},
			},
			WantField: "LastPublicKey",
			WantErr:   errors.ErrInvalidInput,
		},
		"history out of order": {
			Record: Record{
				ChannelID:       paytest.ChannelID(1),
				LastValidAmount: amount.New(3),
				History: []ClaimEntry{
					{Amount: amount.New(1), Timestamp: 2000},
					{Amount: amount.New(2), Timestamp: 3000},
					{Amount: amount.New(3), Timestamp: 2500},
				},
			},
			WantField: "History[2].Timestamp",
			WantErr:   errors.ErrInvalidState,
		},
		"negative history timestamp": {
			Record: Record{
				ChannelID: paytest.ChannelID(1),
				History:   []ClaimEntry{{Amount: amount.New(1), Timestamp: -1}},
			},
			WantField: "History[0]",
			WantErr:   errors.ErrInvalidState,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			err := tc.Record.Validate()
			if tc.WantErr == nil {
				assert.Nil(t, err)
				return
			}
			assert.FieldError(t, err, tc.WantField, tc.WantErr)
		})
	}
}

func TestRecentClaims(t *testing.T) {
	start := paystream.AsUnixMillis(paytest.Epoch)
	rec := Record{
		ChannelID: paytest.ChannelID(1),
		History: []ClaimEntry{
			{Amount: amount.New(1), Timestamp: start},
			{Amount: amount.New(2), Timestamp: start.Add(30 * time.Second)},
			{Amount: amount.New(3), Timestamp: start.Add(59 * time.Second)},
		},
	}

	got := rec.RecentClaims(paytest.Epoch.Add(time.Minute), time.Minute)
	require.Len(t, got, 3)

	got = rec.RecentClaims(paytest.Epoch.Add(time.Minute+time.Millisecond), time.Minute)
	require.Len(t, got, 2)
	require.True(t, got[0].Amount.Equals(amount.New(2)))

	got = rec.RecentClaims(paytest.Epoch.Add(2*time.Minute), time.Minute)
	require.Len(t, got, 0)
}

func TestRecordCopy(t *testing.T) {
	capacity := amount.New(100)
	rec := &Record{
		ChannelID:     paytest.ChannelID(1),
		LastSignature: []byte{1, 2, 3},
		Capacity:      &capacity,
		History:       []ClaimEntry{{Amount: amount.New(1)}},
	}
	c := rec.Copy()
	c.LastSignature[0] = 9
	c.History[0].Amount = amount.New(2)
	*c.Capacity = amount.New(7)

	require.Equal(t, byte(1), rec.LastSignature[0])
	require.True(t, rec.History[0].Amount.Equals(amount.New(1)))
	require.True(t, rec.Capacity.Equals(amount.New(100)))
}

func TestChannelValidate(t *testing.T) {
	key := paytest.SeedKey(1)

	valid := Channel{
		ID:              paytest.ChannelID(1),
		SenderPublicKey: key.PublicKey(),
		Capacity:        amount.New(1000),
		Amount:          amount.New(10),
	}
	assert.Nil(t, valid.Validate())

	invalid := Channel{
		ID:       "xx",
		Capacity: amount.New(10),
		Amount:   amount.New(20),
	}
	err := invalid.Validate()
	assert.FieldError(t, err, "ID", errors.ErrInvalidInput)
	assert.FieldError(t, err, "SenderPublicKey", errors.ErrEmpty)
	assert.FieldError(t, err, "Amount", errors.ErrInvalidAmount)
	assert.FieldError(t, err, "Capacity", nil)
}
