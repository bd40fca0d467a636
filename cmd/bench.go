package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"partsledger/internal/loadtest"
)

var benchCfg loadtest.Config

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Hammer a running server with concurrent sales of one item",
	Long: `Creates completed invoices for one item from many goroutines until the
stock runs out or the duration elapses, then checks that the final stock equals
the starting stock minus every accepted sale.`,
	Example: `  partsledger bench --item 6f1c... --workers 200 --duration 30s`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "🚀 Bench: %d workers against %s\n", benchCfg.Workers, benchCfg.BaseURL)
		report, err := loadtest.Run(cmd.Context(), benchCfg)
		if err != nil {
			return err
		}
		fmt.Fprint(out, report.String())
		if report.Oversold {
			return fmt.Errorf("stock accounting mismatch")
		}
		return nil
	},
}

func init() {
	f := benchCmd.Flags()
	f.StringVar(&benchCfg.BaseURL, "url", "http://localhost:8080/api/v1", "API base URL")
	f.StringVar(&benchCfg.ItemID, "item", "", "item id to sell")
	f.IntVar(&benchCfg.Workers, "workers", 50, "concurrent clients")
	f.DurationVar(&benchCfg.Duration, "duration", 30*time.Second, "maximum run time")
	f.IntVar(&benchCfg.Quantity, "quantity", 1, "units per invoice")
	_ = benchCmd.MarkFlagRequired("item")
	rootCmd.AddCommand(benchCmd)
}
