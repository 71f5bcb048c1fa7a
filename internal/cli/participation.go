package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	ledger "splitledger/internal/ledger/domain"
	ledgerrepo "splitledger/internal/ledger/infrastructure/postgres"
)

var errParticipationInvalid = errors.New("participation does not add up to 100%")

var participationCmd = &cobra.Command{
	Use:   "participation",
	Short: "Inspect project participation",
}

var participationValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that active percentages add up to 100%",
	Args:  cobra.NoArgs,
	RunE:  runParticipationValidate,
}

func init() {
	rootCmd.AddCommand(participationCmd)
	participationCmd.AddCommand(participationValidateCmd)
	participationValidateCmd.Flags().StringP("project", "p", "", "Project id (required)")
	_ = participationValidateCmd.MarkFlagRequired("project")
}

func runParticipationValidate(cmd *cobra.Command, args []string) error {
	projectID, _ := cmd.Flags().GetString("project")

	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := ledgerrepo.NewStore(db)
	if err != nil {
		return err
	}
	if _, err := store.Projects().Get(cmd.Context(), projectID); err != nil {
		return fmt.Errorf("project %s: %w", projectID, err)
	}
	members, err := store.Members().ListByProject(cmd.Context(), projectID)
	if err != nil {
		return err
	}
	return printParticipation(cmd.OutOrStdout(), members)
}

func printParticipation(w io.Writer, members []ledger.Member) error {
	for _, m := range ledger.ActiveMembers(members) {
		admin := ""
		if m.IsAdmin {
			admin = " admin"
		}
		fmt.Fprintf(w, "  %-24s %6s%%%s\n", m.UserID, m.Percentage.StringFixed(2), admin)
	}
	report := ledger.ValidateParticipation(members)
	fmt.Fprintln(w, report.Message)
	if !report.IsValid {
		return errParticipationInvalid
	}
	return nil
}
