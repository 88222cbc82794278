// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	contracts TEXT NOT NULL,
	bar_interval TEXT NOT NULL,
	dataset TEXT NOT NULL,
	params TEXT NOT NULL,
	start_time DATETIME,
	end_time DATETIME,
	start_balance REAL NOT NULL,
	end_balance REAL NOT NULL DEFAULT 0,
	net_pnl REAL NOT NULL DEFAULT 0,
	return_pct REAL NOT NULL DEFAULT 0,
	max_dd_pct REAL NOT NULL DEFAULT 0,
	sharpe REAL NOT NULL DEFAULT 0,
	trades INTEGER NOT NULL DEFAULT 0,
	wins INTEGER NOT NULL DEFAULT 0,
	losses INTEGER NOT NULL DEFAULT 0,
	win_rate REAL NOT NULL DEFAULT 0,
	profit_factor REAL NOT NULL DEFAULT 0,
	commission REAL NOT NULL DEFAULT 0,
	unfilled INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'running'
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	contract TEXT NOT NULL,
	time DATETIME NOT NULL,
	direction TEXT NOT NULL,
	offset_kind TEXT NOT NULL,
	volume INTEGER NOT NULL,
	price REAL NOT NULL,
	commission REAL NOT NULL,
	multiplier REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	time DATETIME NOT NULL,
	realized_pnl REAL NOT NULL,
	unrealized_pnl REAL NOT NULL,
	commission REAL NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(run_id, time);
`
