// Package strategy defines the contract between portfolio strategies and the
// engines that drive them. A strategy sees one slice of bars per step and
// answers by declaring target net positions per contract.
package strategy

import (
	"context"
	"time"

	"github.com/rustyeddy/portfolio/market"
)

type EngineType string

const (
	EngineLive     EngineType = "live"
	EngineBacktest EngineType = "backtest"
)

// Engine is what a strategy may call from inside its callbacks. Calls are
// only valid for the duration of the callback that received the Engine.
type Engine interface {
	// SetTarget declares the desired signed net position for c.
	SetTarget(c market.Contract, target int64)
	// Target returns the last declared target for c, or 0.
	Target(c market.Contract) int64
	// Pos returns the current net position for c.
	Pos(c market.Contract) int64
	// Size returns the contract multiplier.
	Size(c market.Contract) float64
	PriceTick(c market.Contract) float64
	EngineType() EngineType
	Logf(format string, args ...any)
}

// Strategy is a multi-contract strategy.
type Strategy interface {
	Name() string
	Contracts() []market.Contract
	OnBars(ctx context.Context, e Engine, s Slice) error
}

// Initializer is implemented by strategies that need a hook before the
// first slice.
type Initializer interface {
	OnInit(ctx context.Context, e Engine) error
}

// Stopper is implemented by strategies that need a hook when they stop.
type Stopper interface {
	OnStop(ctx context.Context, e Engine) error
}

// Editor is implemented by strategies whose settings can change between
// runs. Keys absent from p keep their current value.
type Editor interface {
	UpdateParams(p Params) error
}

// Pricer lets a strategy choose the limit price hint of its orders.
// Engines call it with the contract's latest close as reference.
type Pricer interface {
	OrderPrice(c market.Contract, d market.Direction, reference, tick float64) float64
}

// Slice is every bar that closed at one timestamp.
type Slice struct {
	Time time.Time
	// Contracts lists the contracts present, in declared order.
	Contracts []market.Contract
	Bars      map[market.Contract]market.Bar
}

func (s Slice) Bar(c market.Contract) (market.Bar, bool) {
	b, ok := s.Bars[c]
	return b, ok
}

func (s Slice) Len() int { return len(s.Contracts) }
