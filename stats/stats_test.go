package stats

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rustyeddy/portfolio/journal"
	"github.com/rustyeddy/portfolio/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func curveOf(step time.Duration, equity ...float64) []journal.EquitySnapshot {
	out := make([]journal.EquitySnapshot, len(equity))
	for i, e := range equity {
		out[i] = journal.EquitySnapshot{Time: t0.Add(time.Duration(i) * step), Equity: e, Balance: e}
	}
	return out
}

func assertFinite(t *testing.T, r Report) {
	t.Helper()
	for name, v := range map[string]float64{
		"TotalReturn": r.TotalReturn, "AnnualReturn": r.AnnualReturn, "MaxDrawdownPct": r.MaxDrawdownPct,
		"Sharpe": r.Sharpe, "WinRate": r.WinRate, "ProfitFactor": r.ProfitFactor, "AvgWin": r.AvgWin, "AvgLoss": r.AvgLoss,
	} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s = %v", name, v)
	}
}

func TestComputeEmpty(t *testing.T) {
	t.Parallel()

	r := Compute(nil, nil, 1000)
	assert.Equal(t, 1000.0, r.EndBalance)
	assert.Zero(t, r.TotalReturn)
	assert.Zero(t, r.Sharpe)
	assert.Zero(t, r.MaxDrawdown)
	assertFinite(t, r)

	zero := Compute(nil, nil, 0)
	assertFinite(t, zero)
}

func TestComputeFlat(t *testing.T) {
	t.Parallel()

	r := Compute(curveOf(24*time.Hour, 1000, 1000, 1000), nil, 1000)
	assert.Zero(t, r.TotalReturn)
	assert.Zero(t, r.AnnualReturn)
	assert.Zero(t, r.Sharpe)
	assert.Zero(t, r.MaxDrawdown)
	assert.InDelta(t, 365.25, r.PeriodsPerYear, 1e-9)
	assertFinite(t, r)
}

func TestComputeReturnsAndDrawdown(t *testing.T) {
	t.Parallel()

	curve := curveOf(24*time.Hour, 1000, 1200, 900, 1100, 1300)
	r := Compute(curve, nil, 1000)

	assert.InDelta(t, 0.3, r.TotalReturn, 1e-12)
	assert.InDelta(t, 300, r.NetPnL, 1e-9)
	assert.InDelta(t, 300, r.MaxDrawdown, 1e-9)
	assert.InDelta(t, 0.25, r.MaxDrawdownPct, 1e-12)
	assert.Equal(t, t0.Add(24*time.Hour), r.PeakTime)
	assert.Equal(t, t0.Add(48*time.Hour), r.TroughTime)
	assert.Greater(t, r.AnnualReturn, r.TotalReturn)
	assert.Greater(t, r.Sharpe, 0.0)
	assertFinite(t, r)
}

func TestAnnualReturnWipedOut(t *testing.T) {
	t.Parallel()

	r := Compute(curveOf(time.Hour, 1000, -50), nil, 1000)
	assert.Equal(t, -1.0, r.AnnualReturn)
	assertFinite(t, r)
}

func TestSharpeDominantInterval(t *testing.T) {
	t.Parallel()

	curve := curveOf(time.Hour, 100, 101, 100, 102)
	// one odd gap must not change the dominant interval
	curve = append(curve, journal.EquitySnapshot{Time: curve[3].Time.Add(65 * time.Hour), Equity: 103})
	r := Compute(curve, nil, 100)
	assert.InDelta(t, 365.25*24, r.PeriodsPerYear, 1e-9)

	rets := []float64{0, 0.01, 100.0/101 - 1, 0.02, 103.0/102 - 1}
	mean, sd := meanStd(rets)
	assert.InDelta(t, mean/sd*math.Sqrt(365.25*24), r.Sharpe, 1e-9)
}

func TestTradeStats(t *testing.T) {
	t.Parallel()

	trades := []journal.TradeRecord{
		{Offset: market.Open, Commission: 1},
		{Offset: market.Close, RealizedPnL: 50, Commission: 1},
		{Offset: market.CloseToday, RealizedPnL: -20, Commission: 1},
		{Offset: market.CloseYesterday, RealizedPnL: 1, Commission: 1},
		{Offset: market.Close, RealizedPnL: 11, Commission: 1},
	}
	r := Compute(nil, trades, 1000)

	assert.Equal(t, 5, r.Trades)
	assert.Equal(t, 4, r.ClosingTrades)
	assert.Equal(t, 2, r.Wins)
	assert.Equal(t, 1, r.Losses)
	assert.InDelta(t, 0.5, r.WinRate, 1e-12)
	assert.InDelta(t, 29.5, r.AvgWin, 1e-12)
	assert.InDelta(t, -21, r.AvgLoss, 1e-12)
	assert.InDelta(t, 59.0/21.0, r.ProfitFactor, 1e-12)
	assert.InDelta(t, 5, r.Commission, 1e-12)

	onlyWins := Compute(nil, trades[1:2], 1000)
	assert.Equal(t, float64(MaxProfitFactor), onlyWins.ProfitFactor)
}

// No two points on the curve may drop further than the reported drawdown.
func TestMaxDrawdownBoundsObservedDrops(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		eq := make([]float64, 2+rng.Intn(40))
		v := 1000.0
		for i := range eq {
			v += rng.Float64()*200 - 100
			eq[i] = v
		}
		r := Compute(curveOf(time.Minute, eq...), nil, 1000)
		assertFinite(t, r)
		for i := range eq {
			for j := i + 1; j < len(eq); j++ {
				require.GreaterOrEqual(t, r.MaxDrawdown+1e-9, eq[i]-eq[j])
			}
		}
	}
}
