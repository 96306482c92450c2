package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iov-one/paystream"
	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/crypto"
	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/x/paychan"
)

func claimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Sign and verify channel claims",
	}
	cmd.AddCommand(claimSignCmd(), claimVerifyCmd())
	return cmd
}

func claimSignCmd() *cobra.Command {
	var seedHex string
	cmd := &cobra.Command{
		Use:   "sign <channel-id> <amount>",
		Short: "Sign a claim for a cumulative amount",
		Long: `Sign a claim authorizing the receiver to withdraw up to the given cumulative
amount, in smallest units, from the channel. The claim is printed as JSON.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(seedHex)
			if err != nil {
				return err
			}
			id, err := paychan.NormalizeChannelID(args[0])
			if err != nil {
				return err
			}
			amt, err := amount.Parse(args[1])
			if err != nil {
				return err
			}
			sig, err := paychan.SignClaim(id, amt, key)
			if err != nil {
				return err
			}
			claim := paychan.Claim{
				ChannelID: id,
				Amount:    amt,
				Signature: sig,
				PublicKey: key.PublicKey(),
				Timestamp: paystream.AsUnixMillis(paystream.SystemClock{}.Now()),
			}
			return printJSON(cmd, claimView(claim))
		},
	}
	cmd.Flags().StringVar(&seedHex, "key", "", "hex encoded 32 byte key seed (required)")
	return cmd
}

func claimVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <channel-id> <amount> <signature-hex> <public-key>",
		Short: "Verify a claim signature",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := amount.Parse(args[1])
			if err != nil {
				return err
			}
			sig, err := hex.DecodeString(args[2])
			if err != nil {
				return errors.Wrap(errors.ErrInvalidInput, "signature is not hex encoded")
			}
			pub, err := crypto.ParsePublicKey(args[3])
			if err != nil {
				return err
			}
			if !paychan.VerifyClaim(args[0], amt, sig, pub) {
				return errors.Wrap(errors.ErrInvalidSignature, "claim")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
}

// claimJSON is the printed representation of a claim. Signature is hex
// encoded so it can be passed to verify.
type claimJSON struct {
	ChannelID string               `json:"channelId"`
	Amount    amount.Amount        `json:"amount"`
	Signature string               `json:"signature"`
	PublicKey *crypto.PublicKey    `json:"publicKey"`
	Timestamp paystream.UnixMillis `json:"timestamp"`
}

func claimView(c paychan.Claim) claimJSON {
	return claimJSON{
		ChannelID: c.ChannelID,
		Amount:    c.Amount,
		Signature: hex.EncodeToString(c.Signature),
		PublicKey: c.PublicKey,
		Timestamp: c.Timestamp,
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrInternal, err.Error())
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return nil
}
