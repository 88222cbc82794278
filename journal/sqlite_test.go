package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/portfolio/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLiteJournal, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	return j, path
}

var t0 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func sampleTrade(id string, off market.Offset, pnl float64) TradeRecord {
	return TradeRecord{
		TradeID:     id,
		Contract:    "rb2410.SHFE",
		Time:        t0,
		Direction:   market.Short,
		Offset:      off,
		Volume:      2,
		Price:       3712,
		Commission:  1.5,
		Multiplier:  10,
		RealizedPnL: pnl,
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('runs','trades','equity')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["runs"])
	assert.True(t, found["trades"])
	assert.True(t, found["equity"])
}

func TestSQLiteRecordsNeedRun(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	assert.Error(t, j.RecordTrade(sampleTrade("T000001", market.Open, 0)))
	assert.Error(t, j.RecordEquity(EquitySnapshot{Time: t0}))
	assert.Error(t, j.BeginRun(context.Background(), BacktestRun{}))
}

func TestSQLiteRunRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	defer j.Close()

	run := BacktestRun{
		RunID:        "01HRUN",
		Created:      t0,
		Strategy:     "pair",
		Contracts:    []string{"rb2410.SHFE", "hc2410.SHFE"},
		Interval:     "M1",
		Dataset:      "testdata",
		Params:       "boll_window=20",
		StartBalance: 1_000_000,
	}
	require.NoError(t, j.BeginRun(ctx, run))

	require.NoError(t, j.RecordTrade(sampleTrade("T000001", market.Open, 0)))
	require.NoError(t, j.RecordTrade(sampleTrade("T000002", market.CloseYesterday, -40)))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: t0, Balance: 1_000_000, Equity: 1_000_000}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: t0.Add(time.Minute), RealizedPnL: -40, Commission: 3, Balance: 999_957, Equity: 999_957}))

	run.End = t0.Add(time.Minute)
	run.Start = t0
	run.EndBalance = 999_957
	run.Trades = 1
	run.Losses = 1
	require.NoError(t, j.FinishRun(ctx, run))

	got, err := j.GetRun(ctx, "01HRUN")
	require.NoError(t, err)
	assert.Equal(t, "pair", got.Strategy)
	assert.Equal(t, []string{"rb2410.SHFE", "hc2410.SHFE"}, got.Contracts)
	assert.Equal(t, "finished", got.Status)
	assert.InDelta(t, 999_957, got.EndBalance, 1e-9)
	assert.True(t, got.End.Equal(t0.Add(time.Minute)))

	trades, err := j.ListTradesByRunID(ctx, "01HRUN")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "T000001", trades[0].TradeID)
	assert.Equal(t, market.CloseYesterday, trades[1].Offset)
	assert.Equal(t, market.Short, trades[1].Direction)
	assert.True(t, trades[1].Time.Equal(t0))
	assert.InDelta(t, -40, trades[1].RealizedPnL, 1e-9)

	curve, err := j.ListEquityByRunID(ctx, "01HRUN")
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.InDelta(t, 999_957, curve[1].Equity, 1e-9)

	runs, err := j.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	org, err := j.ExportRunOrg(ctx, "01HRUN")
	require.NoError(t, err)
	assert.Contains(t, org, ":RUN_ID:      01HRUN")
	assert.Contains(t, org, "** Trades")
	assert.Contains(t, org, ":TRADE_ID: T000002")

	_, err = j.GetRun(ctx, "missing")
	assert.Error(t, err)
}
