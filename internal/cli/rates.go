package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	rateapp "splitledger/internal/exchangerate/application"
	exchangerate "splitledger/internal/exchangerate/domain"
	"splitledger/internal/exchangerate/infrastructure/bluelytics"
	ratememory "splitledger/internal/exchangerate/infrastructure/memory"
	raterepo "splitledger/internal/exchangerate/infrastructure/postgres"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "USD to ARS exchange rate tools",
}

var ratesCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Fetch the current blue-market rate",
	Long: `Fetch the current USD->ARS blue sell rate. When a database is
configured the fetch is appended to the rate history.`,
	Args: cobra.NoArgs,
	RunE: runRatesCurrent,
}

var ratesHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List logged rate fetches, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRatesHistory,
}

func init() {
	rootCmd.AddCommand(ratesCmd)
	ratesCmd.AddCommand(ratesCurrentCmd)
	ratesCmd.AddCommand(ratesHistoryCmd)
	ratesCmd.PersistentFlags().String("url", bluelytics.DefaultURL, "Rate provider endpoint")
	ratesCmd.PersistentFlags().Duration("timeout", 10*time.Second, "Upstream fetch timeout")
	ratesHistoryCmd.Flags().IntP("limit", "n", 20, "Number of entries")
}

func runRatesCurrent(cmd *cobra.Command, args []string) error {
	var history exchangerate.HistoryRepository = ratememory.NewHistoryRepository()
	if resolveDSN(cmd) != "" {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()
		history = raterepo.NewHistoryRepository(db)
	}
	source, err := newRateSource(cmd, history)
	if err != nil {
		return err
	}
	rate, err := source.Current(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s ARS per USD (source=%s fetched_at=%s)\n",
		rate.Value.String(), rate.Source, rate.FetchedAt.UTC().Format(time.RFC3339))
	return nil
}

func runRatesHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	source, err := newRateSource(cmd, raterepo.NewHistoryRepository(db))
	if err != nil {
		return err
	}
	entries, err := source.History(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no rate history")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", e.FetchedAt.UTC().Format(time.RFC3339), e.RateUSDToARS.String(), e.Source)
	}
	return nil
}

func newRateSource(cmd *cobra.Command, history exchangerate.HistoryRepository) (*rateapp.CachedSource, error) {
	url, _ := cmd.Flags().GetString("url")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	client, err := bluelytics.NewClient(url, timeout)
	if err != nil {
		return nil, err
	}
	return rateapp.NewCachedSource(client, history, rateapp.SystemClock{},
		rateapp.WithFetchTimeout(timeout),
		rateapp.WithLogger(log.New(cmd.ErrOrStderr(), "", log.LstdFlags)),
	)
}
