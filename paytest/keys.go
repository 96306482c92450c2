package paytest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/iov-one/paystream/crypto"
)

// NewKey returns a random private key.
func NewKey() *crypto.PrivateKey {
	return crypto.GenPrivKeyEd25519()
}

// SeedKey returns a deterministic private key. The same seed byte always
// produces the same key.
func SeedKey(seed byte) *crypto.PrivateKey {
	return crypto.PrivKeyEd25519FromSeed(bytes.Repeat([]byte{seed}, 32))
}

// ChannelID returns a deterministic, well formed channel identifier.
func ChannelID(n int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("channel-%d", n)))
	return strings.ToUpper(hex.EncodeToString(h[:]))
}
