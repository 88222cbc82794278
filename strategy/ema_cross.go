package strategy

import (
	"context"
	"fmt"

	"github.com/rustyeddy/portfolio/indicators"
	"github.com/rustyeddy/portfolio/market"
)

// EMACross holds +Size on a contract while its fast EMA is above the slow
// EMA and -Size while below. Targets change only on the cross itself. With
// ADXMin set, a cross while ADX is below it is skipped.
type EMACross struct {
	Symbols []market.Contract
	Fast    int
	Slow    int
	Size    int64
	ADXMin  float64

	legs map[market.Contract]*emaLeg
}

type emaLeg struct {
	fast, slow *indicators.ExponentialMA
	adx        *indicators.ADX
	// -1 fast below slow, 0 not ready, +1 fast above slow
	rel int
}

// NewEMACross reads fast (10), slow (30), size (1), adx_min (0, off) and
// adx_window (14) from params.
func NewEMACross(cs []market.Contract, p Params) (Strategy, error) {
	x := &EMACross{
		Symbols: cs,
		Fast:    p.Int("fast", 10),
		Slow:    p.Int("slow", 30),
		Size:    p.Int64("size", 1),
		ADXMin:  p.Float("adx_min", 0),
		legs:    make(map[market.Contract]*emaLeg, len(cs)),
	}
	if x.Fast <= 0 || x.Slow <= 0 {
		return nil, fmt.Errorf("ema_cross: periods must be > 0")
	}
	if x.Fast >= x.Slow {
		return nil, fmt.Errorf("ema_cross: fast period %d must be below slow period %d", x.Fast, x.Slow)
	}
	if x.Size <= 0 {
		return nil, fmt.Errorf("ema_cross: size must be > 0")
	}
	if x.ADXMin < 0 {
		return nil, fmt.Errorf("ema_cross: adx_min must be >= 0")
	}
	for _, c := range cs {
		leg := &emaLeg{fast: indicators.NewEMA(x.Fast), slow: indicators.NewEMA(x.Slow)}
		if x.ADXMin > 0 {
			leg.adx = indicators.NewADX(p.Int("adx_window", 14))
		}
		x.legs[c] = leg
	}
	return x, nil
}

func (x *EMACross) Name() string                 { return fmt.Sprintf("ema_cross(%d,%d)", x.Fast, x.Slow) }
func (x *EMACross) Contracts() []market.Contract { return x.Symbols }

func (x *EMACross) OnBars(_ context.Context, e Engine, s Slice) error {
	for _, c := range s.Contracts {
		leg, ok := x.legs[c]
		if !ok {
			continue
		}
		b := s.Bars[c]
		leg.fast.Update(b)
		leg.slow.Update(b)
		if leg.adx != nil {
			leg.adx.Update(b)
		}
		if !leg.fast.Ready() || !leg.slow.Ready() {
			continue
		}

		rel := 0
		switch f, sl := leg.fast.Value(), leg.slow.Value(); {
		case f > sl:
			rel = 1
		case f < sl:
			rel = -1
		}
		if rel == 0 || rel == leg.rel {
			continue
		}
		leg.rel = rel
		if leg.adx != nil && (!leg.adx.Ready() || leg.adx.Value() < x.ADXMin) {
			e.Logf("%s: %s cross %+d skipped, %s %.1f", x.Name(), c, rel, leg.adx.Name(), leg.adx.Value())
			continue
		}
		e.SetTarget(c, int64(rel)*x.Size)
		e.Logf("%s: %s cross %+d at %g", x.Name(), c, rel, b.Close)
	}
	return nil
}
