package main

import (
	"github.com/spf13/cobra"
	"github.com/vulpemventures/dinghy/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "print the current configuration",
	Long: "this command shows the configuration resulting from the DINGHY_* " +
		"environment variables and the global flags, with secrets masked",
	Args: cobra.NoArgs,
	RunE: configPrint,
}

func configPrint(cmd *cobra.Command, _ []string) error {
	return printJSON(cmd, config.Settings())
}
