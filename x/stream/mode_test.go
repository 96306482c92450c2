package stream

import (
	"testing"

	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/paytest/assert"
	"github.com/iov-one/paystream/x/paychan"
)

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeChannel, ModeDirect} {
		got, err := ParseMode(m.String())
		assert.Nil(t, err)
		assert.Equal(t, m, got)
	}
	got, err := ParseMode("DIRECT")
	assert.Nil(t, err)
	assert.Equal(t, ModeDirect, got)

	_, err = ParseMode("carrier pigeon")
	assert.IsErr(t, errors.ErrInvalidInput, err)
	assert.Equal(t, "unknown", Mode(42).String())
}

func TestPaymentVariants(t *testing.T) {
	payments := []Payment{
		&ChannelClaim{Claim: paychan.Claim{Amount: amount.New(300)}},
		&DirectPayment{TxID: "ABC", Amount: amount.New(5)},
	}
	var total uint64
	for _, p := range payments {
		switch p := p.(type) {
		case *ChannelClaim:
			assert.Equal(t, ModeChannel, p.Mode())
		case *DirectPayment:
			assert.Equal(t, ModeDirect, p.Mode())
			assert.Equal(t, "ABC", p.TxID)
		}
		v, err := p.Value().Uint64()
		assert.Nil(t, err)
		total += v
	}
	assert.Equal(t, uint64(305), total)
}
