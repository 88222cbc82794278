package strategy

import (
	"context"

	"github.com/rustyeddy/portfolio/market"
)

// Noop watches its contracts and never trades.
type Noop struct {
	Symbols []market.Contract
}

func (n *Noop) Name() string                                { return "noop" }
func (n *Noop) Contracts() []market.Contract                { return n.Symbols }
func (n *Noop) OnBars(context.Context, Engine, Slice) error { return nil }
