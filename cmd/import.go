package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"partsledger/internal/app"
	"partsledger/internal/config"
	"partsledger/internal/services"
)

var (
	importFormat  string
	importCharset string
	importJSON    bool
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Bulk-load catalog items from a .csv or .xlsx sheet",
	Long: `Reads a catalog sheet whose header row names the columns (sku, name,
category, sub_category, brand, cost_price, selling_price, stock, min_stock)
and adds every valid row. Invalid rows are reported and skipped.`,
	Example: `  partsledger import parts.xlsx
  partsledger import legacy.csv --charset windows-1251 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFormat, "format", "", "csv or xlsx (default: from the file extension)")
	importCmd.Flags().StringVar(&importCharset, "charset", "", "fallback charset for non-UTF-8 CSV (overrides IMPORT_CHARSET)")
	importCmd.Flags().BoolVar(&importJSON, "json", false, "print the full per-row result as JSON")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	format := services.ImportFormat(importFormat)
	if format == "" {
		var err error
		if format, err = services.FormatFromFilename(path); err != nil {
			return err
		}
	}
	if importCharset != "" {
		cfg.ImportCharset = importCharset
	}
	if cfg.StoreDriver != config.StorePostgres {
		return fmt.Errorf("import needs a persistent store; set DATABASE_URL")
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := a.Catalog.Import(cmd.Context(), f, format)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if importJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintf(out, "%s: %d imported, %d rejected\n", filepath.Base(path), result.ImportedCount, result.ErrorCount)
	for _, row := range result.Rows {
		if row.Status != "imported" {
			fmt.Fprintf(out, "  row %d: %v\n", row.Row, row.Errors)
		}
	}
	return nil
}
