package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	eventingrepo "splitledger/internal/eventing/infrastructure/postgres"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Event delivery maintenance",
}

var eventsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete consumer receipts older than --older-than",
	Args:  cobra.NoArgs,
	RunE:  runEventsPrune,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsPruneCmd)
	eventsPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "Receipt age to keep")
}

func runEventsPrune(cmd *cobra.Command, args []string) error {
	age, _ := cmd.Flags().GetDuration("older-than")
	if age <= 0 {
		return errors.New("--older-than must be positive")
	}
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	pruned, err := eventingrepo.NewProcessedStore(db).Prune(cmd.Context(), time.Now().Add(-age))
	if err != nil {
		return fmt.Errorf("prune receipts: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d consumer receipts older than %s\n", pruned, age)
	return nil
}
