package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iov-one/paystream/crypto"
	"github.com/iov-one/paystream/errors"
)

func keygenCmd() *cobra.Command {
	var (
		seedHex string
		path    string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a sender key",
		Long: `Generate an ed25519 sender key and print its seed, public key and address.

When a master seed is given, the key is derived from it using SLIP-10
with the given derivation path. Otherwise a random key is created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := generateKey(seedHex, path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seed:       %s\n", hex.EncodeToString(key.Seed()))
			fmt.Fprintf(out, "public key: %s\n", key.PublicKey())
			fmt.Fprintf(out, "address:    %s\n", key.PublicKey().Address())
			return nil
		},
	}
	cmd.Flags().StringVar(&seedHex, "seed", "", "hex encoded master seed to derive the key from")
	cmd.Flags().StringVar(&path, "path", crypto.DefaultDerivationPath, "SLIP-10 derivation path")
	return cmd
}

func generateKey(seedHex, path string) (*crypto.PrivateKey, error) {
	if seedHex == "" {
		return crypto.GenPrivKeyEd25519(), nil
	}
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "seed is not hex encoded")
	}
	return crypto.DeriveKey(seed, path)
}

// loadKey returns the private key of given hex encoded 32 byte seed.
func loadKey(seedHex string) (*crypto.PrivateKey, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "key seed is not hex encoded")
	}
	if len(seed) != 32 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "key seed must be 32 bytes, got %d", len(seed))
	}
	return crypto.PrivKeyEd25519FromSeed(seed), nil
}
