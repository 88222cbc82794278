package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rustyeddy/portfolio/market"
)

const runColumns = `run_id, created, strategy, contracts, bar_interval, dataset, params,
	start_time, end_time, start_balance, end_balance, net_pnl, return_pct, max_dd_pct,
	sharpe, trades, wins, losses, win_rate, profit_factor, commission, unfilled, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (BacktestRun, error) {
	var (
		r         BacktestRun
		contracts string
		start     sql.NullTime
		end       sql.NullTime
	)
	err := s.Scan(
		&r.RunID, &r.Created, &r.Strategy, &contracts, &r.Interval, &r.Dataset, &r.Params,
		&start, &end, &r.StartBalance, &r.EndBalance, &r.NetPnL, &r.ReturnPct, &r.MaxDDPct,
		&r.Sharpe, &r.Trades, &r.Wins, &r.Losses, &r.WinRate, &r.ProfitFactor, &r.Commission,
		&r.Unfilled, &r.Status,
	)
	if err != nil {
		return BacktestRun{}, err
	}
	if contracts != "" {
		r.Contracts = strings.Split(contracts, ",")
	}
	r.Start = start.Time
	r.End = end.Time
	return r, nil
}

// GetRun returns a single run by ID.
func (j *SQLiteJournal) GetRun(ctx context.Context, runID string) (BacktestRun, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BacktestRun{}, fmt.Errorf("run %q not found", runID)
		}
		return BacktestRun{}, err
	}
	return r, nil
}

// ListRuns returns every run, newest first.
func (j *SQLiteJournal) ListRuns(ctx context.Context) ([]BacktestRun, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created DESC, run_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BacktestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListTradesByRunID returns a run's trades in the order they were recorded.
func (j *SQLiteJournal) ListTradesByRunID(ctx context.Context, runID string) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT trade_id, contract, time, direction, offset_kind, volume, price, commission, multiplier, realized_pnl
		FROM trades
		WHERE run_id = ?
		ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			rec      TradeRecord
			contract string
			dir, off string
		)
		if err := rows.Scan(
			&rec.TradeID,
			&contract,
			&rec.Time,
			&dir,
			&off,
			&rec.Volume,
			&rec.Price,
			&rec.Commission,
			&rec.Multiplier,
			&rec.RealizedPnL,
		); err != nil {
			return nil, err
		}
		rec.Contract = market.Contract(contract)
		if rec.Direction, err = market.ParseDirection(dir); err != nil {
			return nil, err
		}
		if rec.Offset, err = market.ParseOffset(off); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEquityByRunID returns a run's equity curve in step order.
func (j *SQLiteJournal) ListEquityByRunID(ctx context.Context, runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, realized_pnl, unrealized_pnl, commission, balance, equity
		FROM equity
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.Time, &e.RealizedPnL, &e.UnrealizedPnL, &e.Commission, &e.Balance, &e.Equity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
