package paychan

import (
	"github.com/iov-one/paystream"
	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/crypto"
	"github.com/iov-one/paystream/errors"
)

// Claim is a signed authorization for the receiver to withdraw up to Amount
// from the channel. Amount is cumulative.
type Claim struct {
	ChannelID string            `json:"channelId"`
	Amount    amount.Amount     `json:"amount"`
	Signature []byte            `json:"signature"`
	PublicKey *crypto.PublicKey `json:"publicKey"`
	// Timestamp is informational only and not covered by the signature.
	Timestamp paystream.UnixMillis `json:"timestamp"`
}

// Validate ensures the claim is well formed. It does not verify the
// signature.
func (c *Claim) Validate() error {
	var errs error
	if _, err := ParseChannelID(c.ChannelID); err != nil {
		errs = errors.AppendField(errs, "ChannelID", err)
	}
	if _, err := c.Amount.Uint64(); err != nil {
		errs = errors.AppendField(errs, "Amount", err)
	}
	if len(c.Signature) == 0 {
		errs = errors.Append(errs,
			errors.Field("Signature", errors.ErrEmpty, "required"))
	}
	if err := c.PublicKey.Validate(); err != nil {
		errs = errors.AppendField(errs, "PublicKey", err)
	}
	return errs
}

// Verify returns true if the claim signature was created by the claim
// public key.
func (c *Claim) Verify() bool {
	return VerifyClaim(c.ChannelID, c.Amount, c.Signature, c.PublicKey)
}
