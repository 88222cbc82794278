package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal stores runs, trades and equity snapshots in one SQLite
// file. Trades and equity are written under the run opened by BeginRun.
type SQLiteJournal struct {
	db *sql.DB

	mu    sync.Mutex
	runID string
	seq   int64
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

// BeginRun inserts r and makes it the run later records belong to.
func (j *SQLiteJournal) BeginRun(ctx context.Context, r BacktestRun) error {
	if r.RunID == "" {
		return fmt.Errorf("journal: RunID is required")
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, created, strategy, contracts, bar_interval, dataset, params, start_time, end_time, start_balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Strategy, strings.Join(r.Contracts, ","), r.Interval,
		r.Dataset, r.Params, r.Start, r.End, r.StartBalance,
	)
	if err != nil {
		return fmt.Errorf("journal: begin run %s: %w", r.RunID, err)
	}

	j.mu.Lock()
	j.runID = r.RunID
	j.seq = 0
	j.mu.Unlock()
	return nil
}

// FinishRun stores the results of r.
func (j *SQLiteJournal) FinishRun(ctx context.Context, r BacktestRun) error {
	status := r.Status
	if status == "" {
		status = "finished"
	}
	_, err := j.db.ExecContext(ctx, `
		UPDATE runs SET
			start_time = ?, end_time = ?, end_balance = ?, net_pnl = ?, return_pct = ?,
			max_dd_pct = ?, sharpe = ?, trades = ?, wins = ?, losses = ?, win_rate = ?,
			profit_factor = ?, commission = ?, unfilled = ?, status = ?
		WHERE run_id = ?`,
		r.Start, r.End, r.EndBalance, r.NetPnL, r.ReturnPct,
		r.MaxDDPct, r.Sharpe, r.Trades, r.Wins, r.Losses, r.WinRate,
		r.ProfitFactor, r.Commission, r.Unfilled, status,
		r.RunID,
	)
	if err != nil {
		return fmt.Errorf("journal: finish run %s: %w", r.RunID, err)
	}
	return nil
}

func (j *SQLiteJournal) currentRun() (string, error) {
	if j.runID == "" {
		return "", fmt.Errorf("journal: no run started")
	}
	return j.runID, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	runID, err := j.currentRun()
	j.mu.Unlock()
	if err != nil {
		return err
	}
	_, err = j.db.Exec(`
		INSERT INTO trades
		(run_id, trade_id, contract, time, direction, offset_kind, volume, price, commission, multiplier, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, t.TradeID, string(t.Contract), t.Time, t.Direction.String(), t.Offset.String(),
		t.Volume, t.Price, t.Commission, t.Multiplier, t.RealizedPnL,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	j.mu.Lock()
	runID, err := j.currentRun()
	if err != nil {
		j.mu.Unlock()
		return err
	}
	j.seq++
	seq := j.seq
	j.mu.Unlock()
	_, err = j.db.Exec(`
		INSERT INTO equity
		(run_id, seq, time, realized_pnl, unrealized_pnl, commission, balance, equity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, e.Time, e.RealizedPnL, e.UnrealizedPnL, e.Commission, e.Balance, e.Equity,
	)
	return err
}

// ExportRunOrg loads a run with its trades and returns the Org report.
func (j *SQLiteJournal) ExportRunOrg(ctx context.Context, runID string) (string, error) {
	r, err := j.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesByRunID(ctx, runID)
	if err != nil {
		return "", err
	}
	body, err := r.RenderOrg()
	if err != nil {
		return "", err
	}
	if len(trades) == 0 {
		return body, nil
	}
	return body + "\n** Trades\n" + FormatTradesOrg(trades) + "\n", nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
