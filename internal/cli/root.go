// Package cli implements the ledgerctl operator commands.
package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operator tooling for the split ledger",
	Long: `ledgerctl runs maintenance tasks against the ledger database:
schema migrations, expense status reconciliation, participation checks,
exchange rate lookups and event receipt pruning.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("dsn", "", "postgres DSN (defaults to DATABASE_URL or PG_DSN)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func resolveDSN(cmd *cobra.Command) string {
	dsn, _ := cmd.Flags().GetString("dsn")
	if dsn != "" {
		return dsn
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	return os.Getenv("PG_DSN")
}

func openDB(cmd *cobra.Command) (*sql.DB, error) {
	dsn := resolveDSN(cmd)
	if dsn == "" {
		return nil, errors.New("database DSN required: pass --dsn or set DATABASE_URL")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(cmd.Context()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}
