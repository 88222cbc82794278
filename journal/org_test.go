package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rustyeddy/portfolio/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	trade := sampleTrade("T000001-abcdef", market.CloseToday, 250)
	result := FormatTradeOrg(trade)

	assert.Contains(t, result, "*** Trade: rb2410.SHFE short close_today (T000001-)")
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":TRADE_ID: T000001-abcdef")
	assert.Contains(t, result, ":TIME: 2024-01-02T09:00:00Z")
	assert.Contains(t, result, ":VOLUME: 2")
	assert.Contains(t, result, ":PRICE: 3712")
	assert.Contains(t, result, ":REALIZED_PNL: 250.00")
	assert.Contains(t, result, ":END:")
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	out := FormatTradesOrg([]TradeRecord{sampleTrade("a", market.Open, 0), sampleTrade("b", market.Close, 1)})
	assert.Equal(t, 2, strings.Count(out, ":PROPERTIES:"))
	assert.Empty(t, FormatTradesOrg(nil))
}

func TestWriteBacktestOrg(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.org")
	r := &BacktestRun{
		RunID:     "01HRUN",
		Strategy:  "ema_cross",
		Contracts: []string{"a.X", "b.X"},
		Interval:  "H1",
		WinRate:   0.5,
		Status:    "aborted",
		OrgPath:   path,
		Notes:     []string{"data gap on b.X"},
	}
	require.NoError(t, r.WriteBacktestOrg())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, "* BACKTEST: ema_cross a.X b.X H1")
	assert.Contains(t, s, ":CONTRACTS:   a.X,b.X")
	assert.Contains(t, s, ":STATUS:      aborted")
	assert.Contains(t, s, ":WIN_RATE:    50.00")
	assert.Contains(t, s, "- data gap on b.X")
}
