package cli

import (
	"github.com/spf13/cobra"

	"github.com/z316data/salespipe/internal/cli/output"
	"github.com/z316data/salespipe/internal/warehouse"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply destination table migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := warehouse.Migrate(cfg.Warehouse.DSN); err != nil {
		return err
	}
	output.Success("migrations applied")
	return nil
}
