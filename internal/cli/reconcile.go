package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"splitledger/internal/eventing"
	eventingrepo "splitledger/internal/eventing/infrastructure/postgres"
	"splitledger/internal/ledger/application"
	ledgerrepo "splitledger/internal/ledger/infrastructure/postgres"
	ledgerinterfaces "splitledger/internal/ledger/interfaces"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute expense statuses and report drift",
	Long: `Recompute the status of every live expense of a project from its
obligations. Without --fix the command only reports. With --fix drifted
expenses are rewritten and status change events are queued in the outbox.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().StringP("project", "p", "", "Project id (required)")
	reconcileCmd.Flags().Bool("fix", false, "Rewrite drifted statuses")
	reconcileCmd.Flags().StringP("out", "o", "", "Write the report as CSV to this file")
	reconcileCmd.Flags().String("tenant", "tenant-demo", "Tenant recorded on queued events")
	_ = reconcileCmd.MarkFlagRequired("project")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	projectID, _ := cmd.Flags().GetString("project")
	fix, _ := cmd.Flags().GetBool("fix")
	outPath, _ := cmd.Flags().GetString("out")
	tenantID, _ := cmd.Flags().GetString("tenant")

	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := ledgerrepo.NewStore(db)
	if err != nil {
		return err
	}
	outbox := eventingrepo.NewOutboxStore(db)
	publisher := ledgerinterfaces.NewOutboxPublisher(eventing.NewPublisher(outbox, nil, tenantID, nil), tenantID)
	svc, err := application.NewReconcileService(store, publisher, application.SystemClock{})
	if err != nil {
		return err
	}

	drifts, err := svc.Reconcile(eventing.WithActor(cmd.Context(), "ledgerctl"), projectID, fix)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := writeDriftCSV(f, drifts); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	printDrifts(cmd.OutOrStdout(), projectID, drifts)
	return nil
}

func printDrifts(w io.Writer, projectID string, drifts []application.StatusDrift) {
	if len(drifts) == 0 {
		fmt.Fprintf(w, "project %s: no status drift\n", projectID)
		return
	}
	fixed := 0
	for _, d := range drifts {
		mark := ""
		if d.Fixed {
			mark = " (fixed)"
			fixed++
		}
		fmt.Fprintf(w, "  %s %q: %s -> %s [%d/%d paid]%s\n", d.ExpenseID, d.Description, d.Stored, d.Computed, d.Paid, d.Obligations, mark)
	}
	fmt.Fprintf(w, "project %s: %d drifted, %d fixed\n", projectID, len(drifts), fixed)
}

var driftCSVHeader = []string{"project_id", "expense_id", "description", "stored", "computed", "obligations", "paid", "fixed"}

func writeDriftCSV(w io.Writer, drifts []application.StatusDrift) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(driftCSVHeader); err != nil {
		return err
	}
	for _, d := range drifts {
		record := []string{
			d.ProjectID,
			d.ExpenseID,
			d.Description,
			string(d.Stored),
			string(d.Computed),
			strconv.Itoa(d.Obligations),
			strconv.Itoa(d.Paid),
			strconv.FormatBool(d.Fixed),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
