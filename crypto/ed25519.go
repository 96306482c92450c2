package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/iov-one/paystream/errors"
	"github.com/stellar/go/exp/crypto/derivation"
	"golang.org/x/crypto/ed25519"
)

// keyPrefix marks the textual representation of an ed25519 public key, so
// that the key type is visible when keys are exchanged as text.
const keyPrefix = "ED"

// DefaultDerivationPath is the SLIP-10 path used to derive sender keys from
// a master seed.
const DefaultDerivationPath = "m/44'/144'/0'"

// Signer is the functionality we use from a private key.
// No serializing to support hardware devices as well.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	PublicKey() *PublicKey
}

// PublicKey is an ed25519 public key.
type PublicKey struct {
	Ed25519 []byte
}

// Verify verifies the signature was created with this message and public
// key. Malformed keys and signatures never verify.
func (p *PublicKey) Verify(message []byte, sig []byte) bool {
	if p == nil || len(p.Ed25519) != ed25519.PublicKeySize {
		return false
	}
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(p.Ed25519), message, sig)
}

// Validate returns an error if this is not a well formed public key.
func (p *PublicKey) Validate() error {
	if p == nil || len(p.Ed25519) == 0 {
		return errors.Wrap(errors.ErrEmpty, "public key")
	}
	if len(p.Ed25519) != ed25519.PublicKeySize {
		return errors.Wrapf(errors.ErrInvalidInput, "public key must be %d bytes", ed25519.PublicKeySize)
	}
	return nil
}

// Equals returns true if both keys are of the same value.
func (p *PublicKey) Equals(o *PublicKey) bool {
	if p == nil || o == nil {
		return p == o
	}
	return bytes.Equal(p.Ed25519, o.Ed25519)
}

// String returns the hex representation of the key, prefixed with the key
// type marker.
func (p *PublicKey) String() string {
	if p == nil {
		return ""
	}
	return keyPrefix + strings.ToUpper(hex.EncodeToString(p.Ed25519))
}

// MarshalText implements encoding.TextMarshaler.
func (p *PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PublicKey) UnmarshalText(raw []byte) error {
	k, err := ParsePublicKey(string(raw))
	if err != nil {
		return err
	}
	*p = *k
	return nil
}

// Address returns the address of the owner of this key.
func (p *PublicKey) Address() Address {
	h := sha256.Sum256(append([]byte("ed25519/"), p.Ed25519...))
	return Address(h[:AddressLength])
}

// ParsePublicKey decodes the hex representation of an ed25519 public key.
// The type marker prefix is optional.
func ParsePublicKey(s string) (*PublicKey, error) {
	s = strings.TrimSpace(s)
	if len(s) == 2*ed25519.PublicKeySize+len(keyPrefix) && strings.EqualFold(s[:len(keyPrefix)], keyPrefix) {
		s = s[len(keyPrefix):]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "public key is not hex encoded")
	}
	key := &PublicKey{Ed25519: raw}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}

// PrivateKey is an ed25519 private key.
type PrivateKey struct {
	Ed25519 []byte
}

var _ Signer = (*PrivateKey)(nil)

// Sign returns a matching signature for this private key.
func (p *PrivateKey) Sign(message []byte) ([]byte, error) {
	if p == nil || len(p.Ed25519) != ed25519.PrivateKeySize {
		return nil, errors.Wrap(errors.ErrInvalidInput, "malformed private key")
	}
	return ed25519.Sign(ed25519.PrivateKey(p.Ed25519), message), nil
}

// PublicKey returns the corresponding PublicKey.
func (p *PrivateKey) PublicKey() *PublicKey {
	privateKey := ed25519.PrivateKey(p.Ed25519)
	pub := privateKey.Public().(ed25519.PublicKey)
	return &PublicKey{Ed25519: pub}
}

// Seed returns the 32 bytes seed this key was created from.
func (p *PrivateKey) Seed() []byte {
	return ed25519.PrivateKey(p.Ed25519).Seed()
}

// GenPrivKeyEd25519 returns a random new private key.
func GenPrivKeyEd25519() *PrivateKey {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(err)
	}
	return &PrivateKey{Ed25519: priv}
}

// PrivKeyEd25519FromSeed will deterministically generate a private key from
// a given seed. Use if you have a strong source of external randomness,
// or for deterministic keys in test cases.
func PrivKeyEd25519FromSeed(seed []byte) *PrivateKey {
	priv := ed25519.NewKeyFromSeed(seed)
	return &PrivateKey{Ed25519: priv}
}

// DeriveKey derives a private key from a master seed using SLIP-10 hardened
// derivation for given path, for example DefaultDerivationPath.
func DeriveKey(seed []byte, path string) (*PrivateKey, error) {
	if len(seed) < 16 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "seed too short")
	}
	k, err := derivation.DeriveForPath(path, seed)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "derive path %q: %s", path, err)
	}
	return PrivKeyEd25519FromSeed(k.Key), nil
}
