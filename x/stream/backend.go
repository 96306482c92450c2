package stream

import (
	"context"

	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/crypto"
	"github.com/iov-one/paystream/x/paychan"
)

// Backend is the ledger client used to look up channels and settle claims
// on the chain. All amounts are in the smallest unit of the ledger
// currency.
type Backend interface {
	// VerifyClaim checks the claim signature the same way the ledger
	// would when the claim is submitted.
	VerifyClaim(ctx context.Context, channelID string, amt amount.Amount, sig []byte, pub *crypto.PublicKey) (bool, error)

	// ChannelInfo returns the on-chain description of the channel.
	ChannelInfo(ctx context.Context, channelID string) (*paychan.Channel, error)

	// SubmitSettlement redeems the claim on the chain and returns the
	// transaction ID.
	SubmitSettlement(ctx context.Context, channelID string, amt amount.Amount, sig []byte, pub *crypto.PublicKey) (txID string, err error)
}

// ClaimVerifier verifies claim signatures. Backend implements it.
type ClaimVerifier interface {
	VerifyClaim(ctx context.Context, channelID string, amt amount.Amount, sig []byte, pub *crypto.PublicKey) (bool, error)
}

// LocalVerifier verifies claims using the claim encoding, without
// contacting the ledger.
type LocalVerifier struct{}

var _ ClaimVerifier = LocalVerifier{}

// VerifyClaim implements ClaimVerifier.
func (LocalVerifier) VerifyClaim(_ context.Context, channelID string, amt amount.Amount, sig []byte, pub *crypto.PublicKey) (bool, error) {
	return paychan.VerifyClaim(channelID, amt, sig, pub), nil
}
