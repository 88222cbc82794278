package backtest

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/rustyeddy/portfolio/journal"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/position"
)

type CommissionMode string

const (
	// CommissionFixed charges Value per trade.
	CommissionFixed CommissionMode = "fixed"
	// CommissionRate charges Value times turnover.
	CommissionRate CommissionMode = "rate"
)

type Commission struct {
	Mode  CommissionMode `json:"mode" yaml:"mode"`
	Value float64        `json:"value" yaml:"value"`
}

// Charge returns the commission for one fill.
func (c Commission) Charge(price float64, volume int64, multiplier float64) float64 {
	switch c.Mode {
	case CommissionFixed:
		return c.Value
	case CommissionRate:
		return c.Value * market.Turnover(price, volume, multiplier)
	}
	return 0
}

func (c Commission) Validate() error {
	switch c.Mode {
	case "", CommissionFixed, CommissionRate:
	default:
		return &market.ConfigError{Field: "backtest.commission.mode", Reason: fmt.Sprintf("unknown mode %q (want fixed or rate)", c.Mode)}
	}
	if c.Value < 0 {
		return &market.ConfigError{Field: "backtest.commission.value", Reason: "must be >= 0"}
	}
	if c.Mode == "" && c.Value != 0 {
		return &market.ConfigError{Field: "backtest.commission.mode", Reason: "is required when value is set"}
	}
	return nil
}

// Config controls one backtest run.
type Config struct {
	// Name prefixes log lines; defaults to the strategy name.
	Name    string
	Capital float64
	// Start and End bound the bars requested; zero means unbounded.
	Start    time.Time
	End      time.Time
	Interval market.Interval

	// SlippageTicks moves every fill this many price ticks against the trader.
	SlippageTicks float64
	Commission    Commission
	// MaxOrdersPerStep caps the orders one step may emit. 0 is unlimited.
	MaxOrdersPerStep int
	// FillForward inserts flat bars for contracts missing at a timestamp.
	FillForward bool
	// DailyRollover moves today's inventory to yesterday when the date changes.
	DailyRollover bool
	Policy        position.Policy

	Specs   market.SpecProvider
	Journal journal.Journal
	Logger  *log.Logger
}

// Validate checks c and that every contract has a usable specification.
func (c Config) Validate(contracts []market.Contract) (map[market.Contract]market.Spec, error) {
	if c.Capital <= 0 {
		return nil, &market.ConfigError{Field: "backtest.capital", Reason: "must be > 0"}
	}
	if c.SlippageTicks < 0 {
		return nil, &market.ConfigError{Field: "backtest.slippage_ticks", Reason: "must be >= 0"}
	}
	if err := c.Commission.Validate(); err != nil {
		return nil, err
	}
	if c.MaxOrdersPerStep < 0 {
		return nil, &market.ConfigError{Field: "backtest.max_orders_per_step", Reason: "must be >= 0"}
	}
	if !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start) {
		return nil, &market.ConfigError{Field: "backtest.end", Reason: "is before start"}
	}
	if err := c.Policy.Validate(); err != nil {
		return nil, err
	}
	if c.Specs == nil {
		return nil, &market.ConfigError{Field: "contracts", Reason: "is required"}
	}
	if len(contracts) == 0 {
		return nil, &market.ConfigError{Field: "strategy.contracts", Reason: "is required"}
	}

	specs := make(map[market.Contract]market.Spec, len(contracts))
	for _, ct := range contracts {
		if _, dup := specs[ct]; dup {
			return nil, &market.ConfigError{Field: "strategy.contracts", Reason: "lists " + string(ct) + " twice"}
		}
		s, err := c.Specs.Spec(ct)
		if err != nil {
			return nil, err
		}
		specs[ct] = s
	}
	return specs, nil
}

func (c Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// DiscardLogger silences engine logging.
var DiscardLogger = log.New(io.Discard, "", 0)
