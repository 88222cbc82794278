// Package config loads the portfolio configuration from YAML or JSON, with
// an optional .env overlay for deployment secrets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/portfolio/backtest"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/optimize"
	"github.com/rustyeddy/portfolio/position"
	"github.com/rustyeddy/portfolio/risk"
	"github.com/rustyeddy/portfolio/strategy"
)

// Config is the complete configuration for backtests, optimisation and
// paper trading.
type Config struct {
	Backtest  BacktestConfig         `json:"backtest" yaml:"backtest"`
	Contracts map[string]market.Spec `json:"contracts" yaml:"contracts"`
	Strategy  StrategyConfig         `json:"strategy" yaml:"strategy"`
	Data      DataConfig             `json:"data" yaml:"data"`
	Journal   JournalConfig          `json:"journal" yaml:"journal"`
	Live      LiveConfig             `json:"live" yaml:"live"`
	Optimize  OptimizeConfig         `json:"optimize" yaml:"optimize"`
}

type BacktestConfig struct {
	Capital float64 `json:"capital" yaml:"capital"`
	// Start and End accept RFC3339 or 2006-01-02.
	Start            string              `json:"start,omitempty" yaml:"start,omitempty"`
	End              string              `json:"end,omitempty" yaml:"end,omitempty"`
	Interval         string              `json:"interval" yaml:"interval"`
	SlippageTicks    float64             `json:"slippage_ticks" yaml:"slippage_ticks"`
	Commission       backtest.Commission `json:"commission" yaml:"commission"`
	MaxOrdersPerStep int                 `json:"max_orders_per_step" yaml:"max_orders_per_step"`
	FillForward      bool                `json:"fill_forward" yaml:"fill_forward"`
	DailyRollover    bool                `json:"daily_rollover" yaml:"daily_rollover"`
	Policy           string              `json:"policy" yaml:"policy"`
}

type StrategyConfig struct {
	Name      string             `json:"name" yaml:"name"`
	Contracts []string           `json:"contracts" yaml:"contracts"`
	Params    map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// DataConfig points at the CSV bar files, one <contract>.csv per contract.
type DataConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrgDir     string `json:"org_dir,omitempty" yaml:"org_dir,omitempty"`
}

type LiveConfig struct {
	Store           string  `json:"store" yaml:"store"` // "file", "sqlite", "postgres" or "none"
	StorePath       string  `json:"store_path,omitempty" yaml:"store_path,omitempty"`
	PostgresDSN     string  `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
	OrdersPerSecond float64 `json:"orders_per_second" yaml:"orders_per_second"`
	OrderBurst      int     `json:"order_burst" yaml:"order_burst"`
	// Risk limits applied by the live engine before orders are sent.
	Risk risk.Limits `json:"risk" yaml:"risk"`
}

// StoreTarget is the path or DSN handed to store.Open.
func (l LiveConfig) StoreTarget() string {
	if l.Store == "postgres" {
		return l.PostgresDSN
	}
	return l.StorePath
}

type OptimizeConfig struct {
	Grid    map[string][]float64 `json:"grid,omitempty" yaml:"grid,omitempty"`
	Ranges  []RangeConfig        `json:"ranges,omitempty" yaml:"ranges,omitempty"`
	Workers int                  `json:"workers" yaml:"workers"`
	Metric  string               `json:"metric" yaml:"metric"`
}

// RangeConfig expands to start, start+step, ... end.
type RangeConfig struct {
	Name  string  `json:"name" yaml:"name"`
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Step  float64 `json:"step" yaml:"step"`
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
// and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration as YAML for .yaml/.yml paths and JSON
// otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks every section. Errors are *market.ConfigError.
func (c *Config) Validate() error {
	b := c.Backtest
	if b.Capital <= 0 {
		return &market.ConfigError{Field: "backtest.capital", Reason: "must be positive"}
	}
	if _, err := c.StartEnd(); err != nil {
		return err
	}
	if b.Interval != "" {
		if _, err := market.ParseInterval(b.Interval); err != nil {
			return &market.ConfigError{Field: "backtest.interval", Reason: err.Error()}
		}
	}
	if b.SlippageTicks < 0 {
		return &market.ConfigError{Field: "backtest.slippage_ticks", Reason: "must be >= 0"}
	}
	if err := b.Commission.Validate(); err != nil {
		return err
	}
	if b.MaxOrdersPerStep < 0 {
		return &market.ConfigError{Field: "backtest.max_orders_per_step", Reason: "must be >= 0"}
	}
	if _, err := position.ParsePolicy(b.Policy); err != nil {
		return err
	}

	if len(c.Contracts) == 0 {
		return &market.ConfigError{Field: "contracts", Reason: "is required"}
	}
	for name, spec := range c.Contracts {
		ct, err := market.ParseContract(name)
		if err != nil {
			return &market.ConfigError{Field: "contracts." + name, Reason: err.Error()}
		}
		if err := spec.Validate(ct); err != nil {
			return err
		}
	}

	if c.Strategy.Name == "" {
		return &market.ConfigError{Field: "strategy.name", Reason: "is required"}
	}
	cs, err := c.StrategyContracts()
	if err != nil {
		return err
	}
	specs := c.Specs()
	for _, ct := range cs {
		if _, err := specs.Spec(ct); err != nil {
			return err
		}
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return &market.ConfigError{Field: "journal", Reason: "trades_file and equity_file required for csv type"}
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return &market.ConfigError{Field: "journal.db_path", Reason: "is required for sqlite type"}
		}
	default:
		return &market.ConfigError{Field: "journal.type", Reason: "must be csv, sqlite or none"}
	}

	switch c.Live.Store {
	case "", "none":
	case "file", "sqlite":
		if c.Live.StorePath == "" {
			return &market.ConfigError{Field: "live.store_path", Reason: "is required for " + c.Live.Store + " store"}
		}
	case "postgres":
		if c.Live.PostgresDSN == "" {
			return &market.ConfigError{Field: "live.postgres_dsn", Reason: "is required for postgres store"}
		}
	default:
		return &market.ConfigError{Field: "live.store", Reason: "must be file, sqlite, postgres or none"}
	}
	if c.Live.OrdersPerSecond < 0 {
		return &market.ConfigError{Field: "live.orders_per_second", Reason: "must be >= 0"}
	}
	if err := c.Live.Risk.Validate(); err != nil {
		return err
	}

	if c.Optimize.Workers < 0 {
		return &market.ConfigError{Field: "optimize.workers", Reason: "must be >= 0"}
	}
	if c.Optimize.Metric != "" {
		if _, err := optimize.MetricByName(c.Optimize.Metric); err != nil {
			return err
		}
	}
	if _, err := c.Grid(); err != nil {
		return &market.ConfigError{Field: "optimize.ranges", Reason: err.Error()}
	}
	return nil
}

// Specs returns the contract table keyed by contract.
func (c *Config) Specs() market.Specs {
	out := make(market.Specs, len(c.Contracts))
	for name, spec := range c.Contracts {
		out[market.Contract(name)] = spec
	}
	return out
}

// StrategyContracts parses strategy.contracts in declared order.
func (c *Config) StrategyContracts() ([]market.Contract, error) {
	if len(c.Strategy.Contracts) == 0 {
		return nil, &market.ConfigError{Field: "strategy.contracts", Reason: "is required"}
	}
	out := make([]market.Contract, 0, len(c.Strategy.Contracts))
	for _, s := range c.Strategy.Contracts {
		ct, err := market.ParseContract(s)
		if err != nil {
			return nil, &market.ConfigError{Field: "strategy.contracts", Reason: err.Error()}
		}
		out = append(out, ct)
	}
	return out, nil
}

func (c *Config) Params() strategy.Params {
	return strategy.Params(c.Strategy.Params).Clone()
}

// StartEnd parses the backtest period. Zero times mean unbounded.
func (c *Config) StartEnd() ([2]time.Time, error) {
	var out [2]time.Time
	for i, f := range []struct{ field, v string }{
		{"backtest.start", c.Backtest.Start},
		{"backtest.end", c.Backtest.End},
	} {
		if f.v == "" {
			continue
		}
		t, err := parseTime(f.v)
		if err != nil {
			return out, &market.ConfigError{Field: f.field, Reason: err.Error()}
		}
		out[i] = t
	}
	if !out[0].IsZero() && !out[1].IsZero() && out[1].Before(out[0]) {
		return out, &market.ConfigError{Field: "backtest.end", Reason: "is before start"}
	}
	return out, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// BacktestConfig builds the engine configuration. Journal and Logger are
// left for the caller.
func (c *Config) BacktestConfig() (backtest.Config, error) {
	se, err := c.StartEnd()
	if err != nil {
		return backtest.Config{}, err
	}
	var iv market.Interval
	if c.Backtest.Interval != "" {
		if iv, err = market.ParseInterval(c.Backtest.Interval); err != nil {
			return backtest.Config{}, &market.ConfigError{Field: "backtest.interval", Reason: err.Error()}
		}
	}
	policy, err := position.ParsePolicy(c.Backtest.Policy)
	if err != nil {
		return backtest.Config{}, err
	}
	return backtest.Config{
		Name:             c.Strategy.Name,
		Capital:          c.Backtest.Capital,
		Start:            se[0],
		End:              se[1],
		Interval:         iv,
		SlippageTicks:    c.Backtest.SlippageTicks,
		Commission:       c.Backtest.Commission,
		MaxOrdersPerStep: c.Backtest.MaxOrdersPerStep,
		FillForward:      c.Backtest.FillForward,
		DailyRollover:    c.Backtest.DailyRollover,
		Policy:           policy,
		Specs:            c.Specs(),
	}, nil
}

// Grid merges optimize.grid and optimize.ranges. A range overrides a grid
// entry of the same name.
func (c *Config) Grid() (optimize.Grid, error) {
	g := optimize.Grid{}
	for k, v := range c.Optimize.Grid {
		vals := append([]float64(nil), v...)
		sort.Float64s(vals)
		g[k] = vals
	}
	for _, r := range c.Optimize.Ranges {
		if err := g.AddRange(r.Name, r.Start, r.End, r.Step); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Backtest: BacktestConfig{
			Capital:  1_000_000,
			Start:    "2024-01-02",
			End:      "2024-06-28",
			Interval: "M1",
			Commission: backtest.Commission{
				Mode:  backtest.CommissionRate,
				Value: 0.0001,
			},
			SlippageTicks: 1,
			DailyRollover: true,
			Policy:        string(position.PolicyTodayFirst),
		},
		Contracts: map[string]market.Spec{
			"rb2410.SHFE": {Multiplier: 10, PriceTick: 1},
			"hc2410.SHFE": {Multiplier: 10, PriceTick: 1},
		},
		Strategy: StrategyConfig{
			Name:      "pair",
			Contracts: []string{"rb2410.SHFE", "hc2410.SHFE"},
			Params: map[string]float64{
				"boll_window": 20,
				"boll_dev":    2,
				"fixed_size":  1,
			},
		},
		Data: DataConfig{Dir: "./data"},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./portfolio.db",
			OrgDir: "./reports",
		},
		Live: LiveConfig{
			Store:           "file",
			StorePath:       "./snapshots",
			OrdersPerSecond: 5,
			OrderBurst:      5,
			Risk:            risk.Limits{MaxPosition: 20, MaxOrderVolume: 10},
		},
		Optimize: OptimizeConfig{
			Ranges: []RangeConfig{
				{Name: "boll_window", Start: 10, End: 30, Step: 10},
				{Name: "boll_dev", Start: 1.5, End: 2.5, Step: 0.5},
			},
			Metric: "sharpe",
		},
	}
}

func envInt(s string) (int, bool) {
	i, err := strconv.Atoi(s)
	return i, err == nil
}
