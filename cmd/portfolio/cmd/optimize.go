package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portfolio/backtest"
	"github.com/rustyeddy/portfolio/optimize"
	"github.com/rustyeddy/portfolio/strategy"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Grid search strategy parameters",
	Long: `Optimize runs one backtest per combination of optimize.grid and
optimize.ranges, in parallel, and ranks them by optimize.metric.

Runs are not journaled.

Example:
  portfolio optimize -c portfolio.yaml --workers 8 --top 5`,
	RunE: runOptimize,
}

var (
	optWorkers int
	optMetric  string
	optTop     int
)

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().IntVarP(&optWorkers, "workers", "w", 0, "override optimize.workers (0 = GOMAXPROCS)")
	optimizeCmd.Flags().StringVarP(&optMetric, "metric", "m", "", "override optimize.metric")
	optimizeCmd.Flags().IntVarP(&optTop, "top", "n", 10, "number of results to print")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if optWorkers > 0 {
		cfg.Optimize.Workers = optWorkers
	}
	if optMetric != "" {
		cfg.Optimize.Metric = optMetric
	}
	metricName := cfg.Optimize.Metric
	if metricName == "" {
		metricName = "sharpe"
	}
	metric, err := optimize.MetricByName(metricName)
	if err != nil {
		return err
	}
	grid, err := cfg.Grid()
	if err != nil {
		return err
	}

	cfg.Journal.Type = "none"
	cfg.Journal.OrgDir = ""

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Optimizing %s over %d combinations by %s\n\n", cfg.Strategy.Name, max(grid.Size(), 1), metricName)

	opt := optimize.Optimizer{
		Workers: cfg.Optimize.Workers,
		Metric:  metric,
		Base:    cfg.Params(),
	}
	outcomes, err := opt.Run(cmd.Context(), grid, func(ctx context.Context, p strategy.Params) (*backtest.Result, error) {
		res, _, err := backtestOnce(ctx, cfg, p, backtest.DiscardLogger)
		return res, err
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tNET P/L\tMAX DD%\tTRADES\tPARAMS")
	for i, o := range outcomes {
		if optTop > 0 && i >= optTop {
			break
		}
		if o.Err != nil {
			fmt.Fprintf(tw, "%d\t-\t-\t-\t-\t%s (%v)\n", i+1, o.Params, o.Err)
			continue
		}
		s := o.Result.Stats
		fmt.Fprintf(tw, "%d\t%.4f\t%.2f\t%.2f\t%d\t%s\n", i+1, o.Score, s.NetPnL, s.MaxDrawdownPct*100, s.ClosingTrades, o.Params)
	}
	return tw.Flush()
}
