package crypto

import (
	"github.com/btcsuite/btcutil/bech32"

	"github.com/iov-one/paystream/errors"
)

// AddressLength is the length of all addresses.
const AddressLength = 20

// AddressPrefix is the bech32 human readable part of all addresses.
const AddressPrefix = "pay"

// Address represents a collision-free, one-way digest of a public key.
type Address []byte

// Validate returns an error if the address is not the valid size.
func (a Address) Validate() error {
	if len(a) != AddressLength {
		return errors.Wrapf(errors.ErrInvalidInput, "address: invalid length %d", len(a))
	}
	return nil
}

// String returns the bech32 representation of this address, using the
// AddressPrefix as the human readable part.
func (a Address) String() string {
	if len(a) == 0 {
		return ""
	}
	// Regrouping 8 bit bytes into 5 bit words with padding cannot fail.
	words, err := bech32.ConvertBits(a, 8, 5, true)
	if err != nil {
		return "invalid address"
	}
	s, err := bech32.Encode(AddressPrefix, words)
	if err != nil {
		return "invalid address"
	}
	return s
}

// ParseAddress decodes the bech32 representation of an address. Only
// addresses of this network, prefixed with AddressPrefix, are accepted.
func ParseAddress(s string) (Address, error) {
	hrp, words, err := bech32.Decode(s)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "address %q: %s", s, err)
	}
	if hrp != AddressPrefix {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "address prefix %q, want %q", hrp, AddressPrefix)
	}
	payload, err := bech32.ConvertBits(words, 5, 8, false)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "address %q: %s", s, err)
	}
	a := Address(payload)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}
