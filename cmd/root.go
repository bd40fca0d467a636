package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"partsledger/internal/config"
	"partsledger/internal/logger"
)

var version = "1.0.0"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "partsledger",
	Short: "Spare-parts inventory and sales invoice server",
	Long: `partsledger tracks a parts counter's catalog and stock, and records sales
invoices whose completion and deletion move stock in one transaction.

Without a subcommand it runs the HTTP API (same as "partsledger serve").
Configuration is read from the environment and an optional .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.Initialize(cfg.Environment)
	},
	RunE: runServe,
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		logger.Log.Error("❌ command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}
