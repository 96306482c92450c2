package paychan

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/crypto"
	"github.com/iov-one/paystream/errors"
)

const (
	// ChannelIDLength is the size of the raw channel identifier.
	ChannelIDLength = 32

	// EncodedClaimLength is the size of an encoded claim message.
	EncodedClaimLength = len(claimPrefix) + ChannelIDLength + 8
)

// claimPrefix separates claim messages from any other payload signed with
// the same key.
const claimPrefix = "CLM\x00"

// ParseChannelID decodes the hex representation of a channel identifier.
// Both lower and upper case are accepted.
func ParseChannelID(id string) ([]byte, error) {
	if len(id) != 2*ChannelIDLength {
		return nil, errors.Wrapf(errors.ErrInvalidInput,
			"channel ID must be %d hex characters, got %d", 2*ChannelIDLength, len(id))
	}
	raw, err := hex.DecodeString(id)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "channel ID is not hex encoded")
	}
	return raw, nil
}

// NormalizeChannelID returns the canonical, upper case form of a channel
// identifier.
func NormalizeChannelID(id string) (string, error) {
	if _, err := ParseChannelID(id); err != nil {
		return "", err
	}
	return strings.ToUpper(id), nil
}

// EncodeClaim returns the message that is signed to authorize given
// cumulative amount in the channel. The encoding is deterministic.
func EncodeClaim(channelID string, amt amount.Amount) ([]byte, error) {
	rawID, err := ParseChannelID(channelID)
	if err != nil {
		return nil, err
	}
	value, err := amt.Uint64()
	if err != nil {
		return nil, errors.Wrap(err, "claim amount")
	}
	msg := make([]byte, 0, EncodedClaimLength)
	msg = append(msg, claimPrefix...)
	msg = append(msg, rawID...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	return append(msg, buf[:]...), nil
}

// SignClaim returns the signature authorizing given cumulative amount.
func SignClaim(channelID string, amt amount.Amount, signer crypto.Signer) ([]byte, error) {
	msg, err := EncodeClaim(channelID, amt)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(msg)
	if err != nil {
		return nil, errors.Wrap(err, "sign claim")
	}
	return sig, nil
}

// VerifyClaim returns true if the signature authorizes given amount in the
// channel and was created with the private counterpart of the public key.
// Malformed input never verifies.
func VerifyClaim(channelID string, amt amount.Amount, sig []byte, pub *crypto.PublicKey) bool {
	if pub == nil {
		return false
	}
	msg, err := EncodeClaim(channelID, amt)
	if err != nil {
		return false
	}
	return pub.Verify(msg, sig)
}
