package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portfolio/backtest"
	"github.com/rustyeddy/portfolio/config"
	"github.com/rustyeddy/portfolio/internal/id"
	"github.com/rustyeddy/portfolio/journal"
	"github.com/rustyeddy/portfolio/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy over historical bars",
	Long: `Backtest replays CSV bars (one <contract>.csv per contract under the
data directory) through the configured strategy and prints the result.

Registered strategies: noop, open_once, ema_cross, pair.

Examples:
  portfolio backtest -c portfolio.yaml
  portfolio backtest -c portfolio.yaml --strategy ema_cross --data ./bars`,
	RunE: runBacktest,
}

var (
	btStrategy string
	btDataDir  string
	btDBPath   string
	btQuiet    bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "", "override strategy.name")
	backtestCmd.Flags().StringVarP(&btDataDir, "data", "d", "", "override data.dir")
	backtestCmd.Flags().StringVar(&btDBPath, "db", "", "override journal.db_path (sqlite journal)")
	backtestCmd.Flags().BoolVarP(&btQuiet, "quiet", "q", false, "silence engine logging")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if btStrategy != "" {
		cfg.Strategy.Name = btStrategy
	}
	if btDataDir != "" {
		cfg.Data.Dir = btDataDir
	}
	if btDBPath != "" {
		cfg.Journal.Type = "sqlite"
		cfg.Journal.DBPath = btDBPath
	}

	logger := log.Default()
	if btQuiet {
		logger = backtest.DiscardLogger
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running backtest with strategy: %s\n", cfg.Strategy.Name)
	fmt.Fprintf(out, "  Data:    %s\n", cfg.Data.Dir)
	fmt.Fprintf(out, "  Journal: %s\n\n", cfg.Journal.Type)

	res, run, err := backtestOnce(cmd.Context(), cfg, cfg.Params(), logger)
	if res != nil {
		backtest.PrintResult(out, res)
	}
	if run != nil && run.OrgPath != "" {
		fmt.Fprintf(out, "Org Report:    %s\n", run.OrgPath)
	}
	return err
}

// backtestOnce runs one backtest with params and journals it as configured.
// The partial result is returned when the run aborts.
func backtestOnce(ctx context.Context, cfg *config.Config, params strategy.Params, logger *log.Logger) (*backtest.Result, *journal.BacktestRun, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	contracts, err := cfg.StrategyContracts()
	if err != nil {
		return nil, nil, err
	}
	strat, err := strategy.New(cfg.Strategy.Name, contracts, params)
	if err != nil {
		return nil, nil, fmt.Errorf("strategy: %w", err)
	}
	bc, err := cfg.BacktestConfig()
	if err != nil {
		return nil, nil, err
	}
	bc.Logger = logger

	created := time.Now().UTC()
	meta := journal.BacktestRun{
		RunID:     id.New(),
		Created:   created,
		Strategy:  strat.Name(),
		Contracts: cfg.Strategy.Contracts,
		Interval:  cfg.Backtest.Interval,
		Dataset:   cfg.Data.Dir,
		Params:    params.String(),
		Start:     bc.Start,
		End:       bc.End,

		StartBalance: bc.Capital,
		Status:       "running",
	}

	var sqlJ *journal.SQLiteJournal
	switch cfg.Journal.Type {
	case "sqlite":
		sqlJ, err = journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		defer sqlJ.Close()
		if err := sqlJ.BeginRun(ctx, meta); err != nil {
			return nil, nil, err
		}
		bc.Journal = sqlJ
	case "csv":
		csvJ, err := journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open csv journal: %w", err)
		}
		defer csvJ.Close()
		bc.Journal = csvJ
	}

	res, runErr := backtest.NewEngine(bc, strat, backtest.CSVProvider{Dir: cfg.Data.Dir}).Run(ctx)
	var abort *backtest.AbortError
	if runErr != nil && !errors.As(runErr, &abort) {
		return nil, nil, runErr
	}

	run := res.Run(meta.RunID, created)
	run.Interval = meta.Interval
	run.Dataset = meta.Dataset
	run.Params = meta.Params
	if cfg.Journal.OrgDir != "" {
		if err := os.MkdirAll(cfg.Journal.OrgDir, 0o755); err != nil {
			return res, &run, err
		}
		run.OrgPath = filepath.Join(cfg.Journal.OrgDir, "backtest-"+run.RunID+".org")
		if err := run.WriteBacktestOrg(); err != nil {
			return res, &run, fmt.Errorf("write org report: %w", err)
		}
	}
	if sqlJ != nil {
		if err := sqlJ.FinishRun(ctx, run); err != nil {
			return res, &run, err
		}
	}
	return res, &run, runErr
}
