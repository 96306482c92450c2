package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iov-one/paystream"
	"github.com/iov-one/paystream/config"
	"github.com/iov-one/paystream/x/paychan"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

// rootFlags are shared by all commands.
type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:   "paychanctl",
		Short: "Payment channel claim ledger operator tool",
		Long: `Inspect the local ledger of payment channel claims, generate sender keys,
sign and verify claims, and check which channels are due for settlement.

Configuration is read from the file given with --config and can be
overridden with PAYSTREAM_ prefixed environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "configuration file")

	root.AddCommand(
		keygenCmd(),
		claimCmd(),
		channelsCmd(&flags),
		statsCmd(&flags),
		checkCmd(&flags),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), paystream.Version())
		},
	}
}

// openLedger loads the configuration and opens the ledger it points to.
// Returned function must be called to release the store.
func openLedger(flags *rootFlags, cmd *cobra.Command) (*config.Config, *paychan.Ledger, func(), error) {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := conf.Logger(os.Stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := conf.OpenStore()
	if err != nil {
		return nil, nil, nil, err
	}
	ledger := paychan.NewLedger(db, paystream.SystemClock{}, conf.Ledger.HistoryRetention).
		WithLogger(logger)
	closeFn := func() {
		if err := db.Close(); err != nil {
			logger.Error("cannot close store", "err", err)
		}
	}
	return conf, ledger, closeFn, nil
}
