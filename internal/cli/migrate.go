package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"splitledger/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("list", false, "List migration files without applying them")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	names, err := migrations.Names()
	if err != nil {
		return err
	}
	if list, _ := cmd.Flags().GetBool("list"); list {
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}

	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Apply(cmd.Context(), db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", len(names))
	return nil
}
