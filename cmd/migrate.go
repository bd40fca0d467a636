package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"partsledger/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the PostgreSQL schema and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("migrate needs DATABASE_URL")
		}
		db, err := database.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.ClosePostgres(db)
		return database.Migrate(db)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
