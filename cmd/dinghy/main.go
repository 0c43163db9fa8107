package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vulpemventures/dinghy/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	networkFlag  string
	providerFlag string
	dbTypeFlag   string

	rootCmd = &cobra.Command{
		Use:   "dinghy",
		Short: "CLI to send bitcoins from a single address",
		Long: "This CLI lets you send funds from a legacy address by signing " +
			"locally with a WIF key or a mnemonic and broadcasting through a " +
			"public chain data provider",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if networkFlag != "" {
				config.Set(config.NetworkKey, networkFlag)
			}
			if providerFlag != "" {
				config.Set(config.ChainDataProviderKey, providerFlag)
			}
			if dbTypeFlag != "" {
				config.Set(config.DatabaseTypeKey, dbTypeFlag)
			}
			if err := config.Validate(); err != nil {
				return fmt.Errorf("invalid config: %s", err)
			}
			if err := config.InitDatadir(); err != nil {
				return fmt.Errorf("error while creating datadir: %s", err)
			}
			log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))
			return nil
		},
		SilenceUsage: true,
		Version:      formatVersion(),
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(
		&networkFlag, "network", "",
		fmt.Sprintf("bitcoin network, one of %s", config.SupportedNetworks),
	)
	rootCmd.PersistentFlags().StringVar(
		&providerFlag, "provider", "",
		fmt.Sprintf(
			"chain data provider, one of %s", config.SupportedChainDataProviders,
		),
	)
	rootCmd.PersistentFlags().StringVar(
		&dbTypeFlag, "db", "",
		fmt.Sprintf("database for send records, one of %s", config.SupportedDbs),
	)

	rootCmd.AddCommand(
		configCmd, sendCmd, balanceCmd, utxosCmd, historyCmd, feeCmd,
		txCmd, txsCmd, keysCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func formatVersion() string {
	return fmt.Sprintf(
		"\nVersion: %s\nCommit: %s\nDate: %s",
		version, commit, date,
	)
}
