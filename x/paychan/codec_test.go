package paychan

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/paytest"
	"github.com/iov-one/paystream/paytest/assert"
)

func TestEncodeClaim(t *testing.T) {
	id := strings.Repeat("AB", 32)
	msg, err := EncodeClaim(id, amount.New(0x0102030405060708))
	assert.Nil(t, err)
	assert.Equal(t, EncodedClaimLength, len(msg))

	want := "434C4D00" + id + "0102030405060708"
	assert.Equal(t, want, strings.ToUpper(hex.EncodeToString(msg)))

	// Lower case identifier is the same channel.
	lower, err := EncodeClaim(strings.ToLower(id), amount.New(0x0102030405060708))
	assert.Nil(t, err)
	assert.Equal(t, msg, lower)
}

func TestEncodeClaimErrors(t *testing.T) {
	tooBig := amount.MustParse("18446744073709551616")

	cases := map[string]struct {
		ChannelID string
		Amount    amount.Amount
		WantErr   *errors.Error
	}{
		"short channel ID": {
			ChannelID: "ABCD",
			Amount:    amount.New(1),
			WantErr:   errors.ErrInvalidInput,
		},
		"not hex channel ID": {
			ChannelID: strings.Repeat("ZZ", 32),
			Amount:    amount.New(1),
			WantErr:   errors.ErrInvalidInput,
		},
		"amount does not fit": {
			ChannelID: paytest.ChannelID(1),
			Amount:    tooBig,
			WantErr:   errors.ErrOverflow,
		},
		"max amount": {
			ChannelID: paytest.ChannelID(1),
			Amount:    amount.MustParse("18446744073709551615"),
			WantErr:   nil,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			_, err := EncodeClaim(tc.ChannelID, tc.Amount)
			if tc.WantErr == nil {
				assert.Nil(t, err)
				return
			}
			assert.IsErr(t, tc.WantErr, err)
		})
	}
}

func TestSignAndVerifyClaim(t *testing.T) {
	key := paytest.SeedKey(1)
	other := paytest.SeedKey(2)
	id := paytest.ChannelID(1)
	amt := amount.New(5000)

	sig, err := SignClaim(id, amt, key)
	assert.Nil(t, err)

	if !VerifyClaim(id, amt, sig, key.PublicKey()) {
		t.Fatal("valid claim signature rejected")
	}
	if !VerifyClaim(strings.ToLower(id), amt, sig, key.PublicKey()) {
		t.Fatal("lower case channel ID rejected")
	}

	cases := map[string]struct {
		ChannelID string
		Amount    amount.Amount
		Signature []byte
		Key       interface{}
	}{
		"different amount": {
			ChannelID: id,
			Amount:    amount.New(5001),
			Signature: sig,
		},
		"different channel": {
			ChannelID: paytest.ChannelID(2),
			Amount:    amt,
			Signature: sig,
		},
		"different key": {
			ChannelID: id,
			Amount:    amt,
			Signature: sig,
			Key:       other,
		},
		"malformed channel": {
			ChannelID: "xyz",
			Amount:    amt,
			Signature: sig,
		},
		"truncated signature": {
			ChannelID: id,
			Amount:    amt,
			Signature: sig[:32],
		},
		"missing signature": {
			ChannelID: id,
			Amount:    amt,
			Signature: nil,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			pub := key.PublicKey()
			if tc.Key != nil {
				pub = other.PublicKey()
			}
			if VerifyClaim(tc.ChannelID, tc.Amount, tc.Signature, pub) {
				t.Fatal("invalid claim verified")
			}
		})
	}

	if VerifyClaim(id, amt, sig, nil) {
		t.Fatal("claim verified without a key")
	}
}

func TestVerifyClaimTamperedBytes(t *testing.T) {
	key := paytest.SeedKey(3)
	id := paytest.ChannelID(7)
	amt := amount.New(123456789)

	sig, err := SignClaim(id, amt, key)
	assert.Nil(t, err)

	// Flipping any single bit of the signature must break it.
	for i := range sig {
		tampered := append([]byte(nil), sig...)
		tampered[i] ^= 0x01
		if VerifyClaim(id, amt, tampered, key.PublicKey()) {
			t.Fatalf("tampered signature byte %d verified", i)
		}
	}

	// Changing any byte of the channel ID must break it.
	raw, err := ParseChannelID(id)
	assert.Nil(t, err)
	for i := range raw {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x80
		if VerifyClaim(hex.EncodeToString(tampered), amt, sig, key.PublicKey()) {
			t.Fatalf("tampered channel byte %d verified", i)
		}
	}

	// Changing any byte of the amount must break it.
	for i := uint(0); i < 64; i += 8 {
		tampered := amount.New(123456789 ^ (1 << i))
		if VerifyClaim(id, tampered, sig, key.PublicKey()) {
			t.Fatalf("tampered amount bit %d verified", i)
		}
	}
}

func TestNormalizeChannelID(t *testing.T) {
	id := paytest.ChannelID(3)
	got, err := NormalizeChannelID(strings.ToLower(id))
	assert.Nil(t, err)
	assert.Equal(t, id, got)

	_, err = NormalizeChannelID("")
	assert.IsErr(t, errors.ErrInvalidInput, err)
}

func TestClaimValidate(t *testing.T) {
	key := paytest.SeedKey(1)
	id := paytest.ChannelID(1)
	sig, err := SignClaim(id, amount.New(10), key)
	assert.Nil(t, err)

	valid := Claim{
		ChannelID: id,
		Amount:    amount.New(10),
		Signature: sig,
		PublicKey: key.PublicKey(),
	}
	assert.Nil(t, valid.Validate())
	if !valid.Verify() {
		t.Fatal("valid claim does not verify")
	}

	var empty Claim
	err = empty.Validate()
	assert.FieldError(t, err, "ChannelID", errors.ErrInvalidInput)
	assert.FieldError(t, err, "Signature", errors.ErrEmpty)
	assert.FieldError(t, err, "PublicKey", errors.ErrEmpty)
	assert.FieldError(t, err, "Amount", nil)
	if empty.Verify() {
		t.Fatal("empty claim verified")
	}
}
