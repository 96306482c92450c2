package stream

import (
	"strings"

	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/x/paychan"
)

// Mode is the way value is streamed to the receiver.
type Mode int

const (
	// ModeChannel streams signed off-chain claims of a payment channel.
	ModeChannel Mode = iota
	// ModeDirect streams individual on-chain transfers.
	ModeDirect
)

func (m Mode) String() string {
	switch m {
	case ModeChannel:
		return "channel"
	case ModeDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// ParseMode returns the mode of given name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "channel":
		return ModeChannel, nil
	case "direct":
		return ModeDirect, nil
	default:
		return 0, errors.Wrapf(errors.ErrInvalidInput, "unknown streaming mode %q", s)
	}
}

// Payment is a single unit of streamed value. It is implemented only by
// ChannelClaim and DirectPayment.
type Payment interface {
	Mode() Mode
	// Value returns the amount this payment authorizes or transfers.
	// Channel claims are cumulative, direct payments are not.
	Value() amount.Amount

	isPayment()
}

// ChannelClaim is a payment made by signing a channel claim.
type ChannelClaim struct {
	Claim paychan.Claim
}

var _ Payment = (*ChannelClaim)(nil)

// Mode implements Payment.
func (*ChannelClaim) Mode() Mode { return ModeChannel }

// Value implements Payment.
func (c *ChannelClaim) Value() amount.Amount { return c.Claim.Amount }

func (*ChannelClaim) isPayment() {}

// DirectPayment is a payment made with an on-chain transfer. Transfers are
// executed by the ledger client, this only describes the outcome.
type DirectPayment struct {
	TxID   string
	Amount amount.Amount
}

var _ Payment = (*DirectPayment)(nil)

// Mode implements Payment.
func (*DirectPayment) Mode() Mode { return ModeDirect }

// Value implements Payment.
func (p *DirectPayment) Value() amount.Amount { return p.Amount }

func (*DirectPayment) isPayment() {}
