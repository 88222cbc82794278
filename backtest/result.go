package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/portfolio/journal"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/position"
	"github.com/rustyeddy/portfolio/stats"
)

// Result is everything one run produced. Trades and Equity are in the
// order they happened.
type Result struct {
	Name      string
	State     State
	Contracts []market.Contract
	Capital   float64

	Start time.Time
	End   time.Time
	Steps int

	Trades []journal.TradeRecord
	Equity []journal.EquitySnapshot
	Stats  stats.Report

	Gaps   []*DataGapError
	Bursts []BurstEvent
	// Unfilled counts orders still pending when the run ended.
	Unfilled int
	// Positions is the final ledger and targets.
	Positions position.Snapshot
}

// BurstRejected is the total number of orders dropped by the burst check.
func (r *Result) BurstRejected() int {
	n := 0
	for _, b := range r.Bursts {
		n += b.Rejected
	}
	return n
}

// Run converts the result into a journal row.
func (r *Result) Run(runID string, created time.Time) journal.BacktestRun {
	contracts := make([]string, len(r.Contracts))
	for i, c := range r.Contracts {
		contracts[i] = string(c)
	}
	s := r.Stats
	run := journal.BacktestRun{
		RunID:        runID,
		Created:      created,
		Strategy:     r.Name,
		Contracts:    contracts,
		Start:        r.Start,
		End:          r.End,
		Trades:       s.ClosingTrades,
		Wins:         s.Wins,
		Losses:       s.Losses,
		StartBalance: s.StartBalance,
		EndBalance:   s.EndBalance,
		NetPnL:       s.NetPnL,
		ReturnPct:    s.TotalReturn * 100,
		WinRate:      s.WinRate,
		ProfitFactor: s.ProfitFactor,
		MaxDDPct:     s.MaxDrawdownPct * 100,
		Sharpe:       s.Sharpe,
		Commission:   s.Commission,
		Unfilled:     r.Unfilled,
		Status:       r.State.String(),
	}
	for _, g := range r.Gaps {
		run.Notes = append(run.Notes, g.Error())
	}
	if n := r.BurstRejected(); n > 0 {
		run.Notes = append(run.Notes, fmt.Sprintf("%d orders dropped by the per-step order limit", n))
	}
	return run
}

func PrintResult(w io.Writer, r *Result) {
	s := r.Stats

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Strategy:      %s\n", r.Name)
	fmt.Fprintf(w, "Contracts:     %v\n", r.Contracts)
	fmt.Fprintf(w, "State:         %s\n", r.State)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", fmtTime(r.Start))
	fmt.Fprintf(w, "End:           %s\n", fmtTime(r.End))
	fmt.Fprintf(w, "Steps:         %d\n", r.Steps)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Fills:         %d\n", s.Trades)
	fmt.Fprintf(w, "Closing:       %d\n", s.ClosingTrades)
	fmt.Fprintf(w, "Wins:          %d\n", s.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", s.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", s.WinRate*100)
	fmt.Fprintf(w, "Avg Win:       %.2f\n", s.AvgWin)
	fmt.Fprintf(w, "Avg Loss:      %.2f\n", s.AvgLoss)
	if s.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", s.ProfitFactor)
	}
	fmt.Fprintf(w, "Unfilled:      %d\n", r.Unfilled)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Balance: %.2f\n", s.StartBalance)
	fmt.Fprintf(w, "End Equity:    %.2f\n", s.EndBalance)
	fmt.Fprintf(w, "Net PnL:       %.2f\n", s.NetPnL)
	fmt.Fprintf(w, "Commission:    %.2f\n", s.Commission)
	fmt.Fprintf(w, "Return:        %.2f%%\n", s.TotalReturn*100)
	fmt.Fprintf(w, "Annual Return: %.2f%%\n", s.AnnualReturn*100)
	fmt.Fprintf(w, "Max Drawdown:  %.2f (%.2f%%)\n", s.MaxDrawdown, s.MaxDrawdownPct*100)
	fmt.Fprintf(w, "Sharpe:        %.2f\n", s.Sharpe)

	if len(r.Gaps) > 0 || len(r.Bursts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, g := range r.Gaps {
			fmt.Fprintf(w, "- %v\n", g)
		}
		for _, b := range r.Bursts {
			fmt.Fprintf(w, "- %s\n", b)
		}
	}

	if len(r.Positions.Positions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Open Positions")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, c := range r.Contracts {
			if e, ok := r.Positions.Positions[c]; ok {
				fmt.Fprintf(w, "%-14s %s\n", c, e)
			}
		}
	}

	fmt.Fprintln(w)
}
