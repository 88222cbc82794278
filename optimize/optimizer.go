package optimize

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/portfolio/backtest"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/stats"
	"github.com/rustyeddy/portfolio/strategy"
)

// RunFunc runs one backtest with params. Each call must build its own
// engine; bar data and contract specs may be shared read-only.
type RunFunc func(ctx context.Context, params strategy.Params) (*backtest.Result, error)

// Metric scores a report. Higher is better.
type Metric func(stats.Report) float64

var metrics = map[string]Metric{
	"sharpe":        func(r stats.Report) float64 { return r.Sharpe },
	"net_pnl":       func(r stats.Report) float64 { return r.NetPnL },
	"total_return":  func(r stats.Report) float64 { return r.TotalReturn },
	"annual_return": func(r stats.Report) float64 { return r.AnnualReturn },
	"profit_factor": func(r stats.Report) float64 { return r.ProfitFactor },
	"win_rate":      func(r stats.Report) float64 { return r.WinRate },
	"max_drawdown":  func(r stats.Report) float64 { return -r.MaxDrawdownPct },
}

// MetricByName looks up a built-in metric.
func MetricByName(name string) (Metric, error) {
	m, ok := metrics[name]
	if !ok {
		return nil, &market.ConfigError{Field: "optimize.metric", Reason: fmt.Sprintf("unknown metric %q", name)}
	}
	return m, nil
}

func MetricNames() []string {
	out := make([]string, 0, len(metrics))
	for k := range metrics {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Outcome is one grid point. Err is set when the run failed; Result then
// holds the partial result if the engine produced one.
type Outcome struct {
	Params strategy.Params
	Result *backtest.Result
	Score  float64
	Err    error
}

type Optimizer struct {
	// Workers bounds parallel runs. Zero means GOMAXPROCS.
	Workers int
	Metric  Metric
	Base    strategy.Params
	Logger  *log.Logger
}

// Run executes fn for every grid combination and returns the outcomes best
// first. Failed runs sort last and do not stop the others; only context
// cancellation aborts the sweep.
func (o Optimizer) Run(ctx context.Context, grid Grid, fn RunFunc) ([]Outcome, error) {
	if fn == nil {
		return nil, fmt.Errorf("optimize: RunFunc is required")
	}
	metric := o.Metric
	if metric == nil {
		metric = metrics["sharpe"]
	}
	workers := o.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	lg := o.Logger
	if lg == nil {
		lg = log.Default()
	}

	points := grid.Expand(o.Base)
	outcomes := make([]Outcome, len(points))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range points {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := fn(gctx, p)
			out := Outcome{Params: p, Result: res, Err: err}
			if err == nil && res != nil {
				out.Score = metric(res.Stats)
			}
			if err != nil {
				lg.Printf("optimize: %s: %v", p, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(outcomes, func(a, b int) bool {
		oa, ob := outcomes[a], outcomes[b]
		if (oa.Err == nil) != (ob.Err == nil) {
			return oa.Err == nil
		}
		return oa.Score > ob.Score
	})
	return outcomes, nil
}
