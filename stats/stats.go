// Package stats derives performance figures from an equity curve and a
// trade ledger. Every figure is finite: empty or flat inputs give zeros.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/portfolio/journal"
)

// MaxProfitFactor is reported when a run has winning trades and no losers.
const MaxProfitFactor = 999

const year = 365.25 * 24 * time.Hour

type Report struct {
	Start time.Time
	End   time.Time

	StartBalance float64
	EndBalance   float64
	NetPnL       float64

	// Returns and drawdown percentages are fractions: 0.05 is 5%.
	TotalReturn  float64
	AnnualReturn float64

	MaxDrawdown    float64
	MaxDrawdownPct float64
	PeakTime       time.Time
	TroughTime     time.Time

	Sharpe         float64
	PeriodsPerYear float64

	Trades        int
	ClosingTrades int
	Wins          int
	Losses        int
	WinRate       float64
	AvgWin        float64
	AvgLoss       float64
	ProfitFactor  float64
	Commission    float64
}

// Compute builds a Report. curve must be in time order.
func Compute(curve []journal.EquitySnapshot, trades []journal.TradeRecord, startBalance float64) Report {
	r := Report{StartBalance: startBalance, EndBalance: startBalance}
	if len(curve) > 0 {
		r.Start = curve[0].Time
		r.End = curve[len(curve)-1].Time
		r.EndBalance = curve[len(curve)-1].Equity
	}
	r.NetPnL = r.EndBalance - startBalance

	if startBalance > 0 {
		r.TotalReturn = r.EndBalance/startBalance - 1
		r.AnnualReturn = annualize(startBalance, r.EndBalance, r.End.Sub(r.Start))
	}

	drawdown(&r, curve, startBalance)

	r.PeriodsPerYear = periodsPerYear(curve)
	r.Sharpe = sharpe(curve, startBalance, r.PeriodsPerYear)

	tradeStats(&r, trades)
	return r
}

func annualize(start, end float64, span time.Duration) float64 {
	if span <= 0 {
		return 0
	}
	if end <= 0 {
		return -1
	}
	v := math.Pow(end/start, float64(year)/float64(span)) - 1
	return finite(v)
}

// drawdown finds the largest drop from a running peak. The peak starts at
// the starting balance.
func drawdown(r *Report, curve []journal.EquitySnapshot, startBalance float64) {
	peak := startBalance
	var peakTime time.Time
	if len(curve) > 0 {
		peakTime = curve[0].Time
	}
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
			peakTime = p.Time
		}
		dd := peak - p.Equity
		if dd > r.MaxDrawdown {
			r.MaxDrawdown = dd
			r.PeakTime = peakTime
			r.TroughTime = p.Time
			if peak > 0 {
				r.MaxDrawdownPct = dd / peak
			}
		}
	}
}

// periodsPerYear uses the most common spacing between snapshots.
func periodsPerYear(curve []journal.EquitySnapshot) float64 {
	counts := make(map[time.Duration]int)
	for i := 1; i < len(curve); i++ {
		if d := curve[i].Time.Sub(curve[i-1].Time); d > 0 {
			counts[d]++
		}
	}
	if len(counts) == 0 {
		return 0
	}
	steps := make([]time.Duration, 0, len(counts))
	for d := range counts {
		steps = append(steps, d)
	}
	// ties go to the shorter interval
	sort.Slice(steps, func(i, j int) bool {
		if counts[steps[i]] != counts[steps[j]] {
			return counts[steps[i]] > counts[steps[j]]
		}
		return steps[i] < steps[j]
	})
	return float64(year) / float64(steps[0])
}

func sharpe(curve []journal.EquitySnapshot, startBalance, ppy float64) float64 {
	if ppy <= 0 || len(curve) == 0 {
		return 0
	}
	rets := make([]float64, 0, len(curve))
	prev := startBalance
	for _, p := range curve {
		if prev > 0 {
			rets = append(rets, p.Equity/prev-1)
		}
		prev = p.Equity
	}
	mean, sd := meanStd(rets)
	if sd == 0 {
		return 0
	}
	return finite(mean / sd * math.Sqrt(ppy))
}

// meanStd returns the mean and the sample standard deviation.
func meanStd(xs []float64) (mean, sd float64) {
	if len(xs) < 2 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}

// tradeStats scores closing trades net of their commission.
func tradeStats(r *Report, trades []journal.TradeRecord) {
	var grossWin, grossLoss float64
	r.Trades = len(trades)
	for _, t := range trades {
		r.Commission += t.Commission
		if !t.IsClose() {
			continue
		}
		r.ClosingTrades++
		net := t.RealizedPnL - t.Commission
		switch {
		case net > 0:
			r.Wins++
			grossWin += net
		case net < 0:
			r.Losses++
			grossLoss -= net
		}
	}
	if r.ClosingTrades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.ClosingTrades)
	}
	if r.Wins > 0 {
		r.AvgWin = grossWin / float64(r.Wins)
	}
	if r.Losses > 0 {
		r.AvgLoss = -grossLoss / float64(r.Losses)
	}
	switch {
	case grossLoss > 0:
		r.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		r.ProfitFactor = MaxProfitFactor
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
