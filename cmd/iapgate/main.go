package main

import (
	"os"

	"github.com/spf13/cobra"

	"iapgate/internal/interfaces/cli/bootstrap"
	"iapgate/internal/interfaces/cli/configcmd"
	"iapgate/internal/interfaces/cli/migrate"
	"iapgate/internal/interfaces/cli/run"
	"iapgate/internal/interfaces/cli/sandbox"
	"iapgate/internal/interfaces/cli/validate"
	"iapgate/internal/interfaces/cli/validator"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "iapgate",
		Short: "iapgate - subscription gating demo",
		Long: `iapgate gates an application behind an in-app subscription: it
discovers products from the store, restores past purchases, validates
receipts against a remote endpoint and unlocks the content.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP(bootstrap.ConfigFlag, "c", "", "Path to config file (default: ./configs/config.yaml)")

	rootCmd.AddCommand(
		run.NewCommand(),
		validate.NewCommand(),
		validator.NewCommand(),
		sandbox.NewCommand(),
		migrate.NewCommand(),
		configcmd.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
