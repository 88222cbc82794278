package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portfolio/backtest"
	"github.com/rustyeddy/portfolio/broker/paper"
	"github.com/rustyeddy/portfolio/live"
	"github.com/rustyeddy/portfolio/position"
	"github.com/rustyeddy/portfolio/store"
	"github.com/rustyeddy/portfolio/strategy"
)

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Paper trade a strategy through the live engine",
	Long: `Paper feeds CSV bars to the live execution engine, which routes orders
to an in-process gateway that fills them at their price hint. The strategy's
ledger is restored from and saved to the configured snapshot store, so
repeated runs continue where the last one stopped.

Example:
  portfolio paper -c portfolio.yaml`,
	RunE: runPaper,
}

var (
	paperDataDir string
	paperQuiet   bool
)

func init() {
	rootCmd.AddCommand(paperCmd)

	paperCmd.Flags().StringVarP(&paperDataDir, "data", "d", "", "override data.dir")
	paperCmd.Flags().BoolVarP(&paperQuiet, "quiet", "q", false, "silence engine logging")
}

func runPaper(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if paperDataDir != "" {
		cfg.Data.Dir = paperDataDir
	}
	logger := log.Default()
	if paperQuiet {
		logger = backtest.DiscardLogger
	}
	ctx := cmd.Context()

	contracts, err := cfg.StrategyContracts()
	if err != nil {
		return err
	}
	strat, err := strategy.New(cfg.Strategy.Name, contracts, cfg.Params())
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	policy, err := position.ParsePolicy(cfg.Backtest.Policy)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Live.Store, cfg.Live.StoreTarget())
	if err != nil {
		return err
	}
	bc, err := cfg.BacktestConfig()
	if err != nil {
		return err
	}

	gw := paper.New(true)
	eng, err := live.NewEngine(live.Options{
		Policy:          policy,
		Specs:           cfg.Specs(),
		Gateway:         gw,
		Store:           st,
		Risk:            cfg.Live.Risk,
		OrdersPerSecond: cfg.Live.OrdersPerSecond,
		OrderBurst:      cfg.Live.OrderBurst,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	gw.Bind(eng)

	name := strat.Name()
	if err := eng.AddStrategy(strat); err != nil {
		return err
	}
	if err := eng.InitStrategy(ctx, name); err != nil {
		return err
	}
	if err := eng.StartStrategy(name); err != nil {
		return err
	}

	timeline, gaps, err := backtest.LoadTimeline(ctx, backtest.CSVProvider{Dir: cfg.Data.Dir}, contracts, bc.Start, bc.End, bc.Interval, bc.FillForward)
	if err != nil {
		return err
	}
	for _, g := range gaps {
		logger.Printf("%s: %v", name, g)
	}

	var day string
	for _, sl := range timeline {
		d := sl.Time.Format(time.DateOnly)
		if bc.DailyRollover && day != "" && d != day {
			if err := eng.Rollover(ctx); err != nil {
				return err
			}
		}
		day = d
		if err := eng.OnBars(ctx, sl); err != nil {
			logger.Printf("%s: %v", name, err)
		}
		if !eng.Trading(name) {
			break
		}
	}

	snap, err := eng.Snapshot(name)
	if err != nil {
		return err
	}
	if err := eng.Close(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Paper run: %d bars, %d orders, %d fills\n\n", len(timeline), len(gw.Sent()), len(gw.Fills()))
	printSnapshot(out, snap)
	return nil
}
