// Package risk holds pre-trade limits checked before target changes turn
// into orders.
package risk

import (
	"github.com/rustyeddy/portfolio/broker"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/position"
)

// Limits are per-contract caps. A zero field disables its check.
type Limits struct {
	// MaxPosition caps the absolute net position of a contract.
	MaxPosition int64 `json:"max_position" yaml:"max_position"`
	// MaxOrderVolume caps the volume of a single order.
	MaxOrderVolume int64 `json:"max_order_volume" yaml:"max_order_volume"`
	// MaxNotional caps |target| x price x multiplier.
	MaxNotional float64 `json:"max_notional" yaml:"max_notional"`
}

func (l Limits) Validate() error {
	if l.MaxPosition < 0 {
		return &market.ConfigError{Field: "live.risk.max_position", Reason: "must be >= 0"}
	}
	if l.MaxOrderVolume < 0 {
		return &market.ConfigError{Field: "live.risk.max_order_volume", Reason: "must be >= 0"}
	}
	if l.MaxNotional < 0 {
		return &market.ConfigError{Field: "live.risk.max_notional", Reason: "must be >= 0"}
	}
	return nil
}

func (l Limits) IsZero() bool { return l == Limits{} }

// Intent is one target change with the orders planned for it.
type Intent struct {
	Contract market.Contract
	Current  position.Entry
	Target   int64
	Price    float64
	Spec     market.Spec
	Orders   []broker.OrderRequest
}
