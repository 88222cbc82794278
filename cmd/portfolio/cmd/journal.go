package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portfolio/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the backtest journal",
	Long: `Query and display backtest runs recorded in the SQLite journal.

Subcommands:
  runs   - List recorded runs
  trades - List the trades of a run
  org    - Export a run with its trades as an Org-mode report

Examples:
  portfolio journal runs
  portfolio journal trades <run-id>
  portfolio journal org <run-id> -o run.org`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "List the trades of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalOrgCmd = &cobra.Command{
	Use:   "org <run-id>",
	Short: "Export a run as an Org-mode report",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalOrg,
}

var (
	journalDBPath string
	journalOrgOut string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalOrgCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./portfolio.db", "path to SQLite journal DB")
	journalOrgCmd.Flags().StringVarP(&journalOrgOut, "output", "o", "", "write the report to a file instead of stdout")
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	runs, err := j.ListRuns(cmd.Context())
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tCREATED\tSTRATEGY\tCONTRACTS\tSTATUS\tNET P/L\tRETURN%\tSHARPE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%.2f\t%.2f\n",
			r.RunID, r.Created.Format(time.DateTime), r.Strategy, strings.Join(r.Contracts, ","),
			r.Status, r.NetPnL, r.ReturnPct, r.Sharpe)
	}
	return tw.Flush()
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListTradesByRunID(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalOrg(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	report, err := j.ExportRunOrg(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("export run: %w", err)
	}
	if journalOrgOut == "" {
		fmt.Fprint(cmd.OutOrStdout(), report)
		return nil
	}
	if err := os.WriteFile(journalOrgOut, []byte(report), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", journalOrgOut)
	return nil
}
