package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"partsledger/internal/app"
	"partsledger/internal/config"
)

var receiptCmd = &cobra.Command{
	Use:   "receipt [invoice-id]",
	Short: "Print the 48-column thermal receipt of an invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StoreDriver != config.StorePostgres {
			return fmt.Errorf("receipt needs a persistent store; set DATABASE_URL")
		}
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		text, err := a.Invoices.Receipt(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(receiptCmd)
}
