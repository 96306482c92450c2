package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iov-one/paystream/x/paychan"
	"github.com/iov-one/paystream/x/stream"
)

func channelsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List all channels of the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ledger, closeFn, err := openLedger(flags, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			recs, err := ledger.Channels()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHANNEL\tLAST VALID\tFINALIZED\tCLAIMS\tUPDATED")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					r.ChannelID, r.LastValidAmount, r.LastFinalizedAmount,
					r.TotalClaims, r.LastUpdateTime.Time().UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func statsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <channel-id>",
		Short: "Print ledger statistics of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ledger, closeFn, err := openLedger(flags, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := ledger.Channel(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, stream.StatsOf(rec))
		},
	}
}

func checkCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check [channel-id]",
		Short: "Check which channels are due for settlement",
		Long: `Evaluate the finalization policy for a single channel, or for all channels
of the ledger when no channel is given. Nothing is submitted to the chain.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, ledger, closeFn, err := openLedger(flags, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			var recs []*paychan.Record
			if len(args) == 1 {
				rec, err := ledger.Channel(args[0])
				if err != nil {
					return err
				}
				recs = append(recs, rec)
			} else if recs, err = ledger.Channels(); err != nil {
				return err
			}

			policy := conf.Policy()
			now := time.Now()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHANNEL\tUNCLAIMED\tFINALIZE\tREASON")
			for _, r := range recs {
				rc := policy.Evaluate(r, now)
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", r.ChannelID, rc.UnclaimedAmount, rc.ShouldFinalize, rc.Reason)
			}
			return w.Flush()
		},
	}
}
