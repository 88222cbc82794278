package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/position"
	"github.com/rustyeddy/portfolio/store"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect persisted position snapshots",
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print the saved ledger and targets of a strategy",
	Long: `Show loads a snapshot from the store configured under live.store, or
from --store/--path when given.

Example:
  portfolio ledger show pair -c portfolio.yaml
  portfolio ledger show pair --store file --path ./snapshots`,
	Args: cobra.ExactArgs(1),
	RunE: runLedgerShow,
}

var (
	ledgerStoreKind string
	ledgerStorePath string
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)

	ledgerShowCmd.Flags().StringVar(&ledgerStoreKind, "store", "", "store kind: file, sqlite or postgres")
	ledgerShowCmd.Flags().StringVar(&ledgerStorePath, "path", "", "store directory, database path or DSN")
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	kind, target := ledgerStoreKind, ledgerStorePath
	if kind == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		kind, target = cfg.Live.Store, cfg.Live.StoreTarget()
	}
	st, err := store.Open(kind, target)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("no snapshot store configured")
	}

	snap, err := st.LoadSnapshot(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if snap.IsEmpty() {
		fmt.Fprintf(cmd.OutOrStdout(), "No snapshot for %s\n", args[0])
		return nil
	}
	printSnapshot(cmd.OutOrStdout(), snap)
	return nil
}

func printSnapshot(w io.Writer, snap position.Snapshot) {
	seen := map[market.Contract]bool{}
	var cs []market.Contract
	for c := range snap.Positions {
		seen[c] = true
		cs = append(cs, c)
	}
	for c := range snap.Targets {
		if !seen[c] {
			cs = append(cs, c)
		}
	}
	cs = market.SortContracts(cs)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTRACT\tLONG TD\tLONG YD\tSHORT TD\tSHORT YD\tNET\tTARGET")
	for _, c := range cs {
		e := snap.Positions[c]
		target := "-"
		if t, ok := snap.Targets.Get(c); ok {
			target = fmt.Sprint(t)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n", c, e.LongToday, e.LongYesterday, e.ShortToday, e.ShortYesterday, e.Net(), target)
	}
	tw.Flush()
}
