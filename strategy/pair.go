package strategy

import (
	"context"
	"fmt"

	"github.com/rustyeddy/portfolio/indicators"
	"github.com/rustyeddy/portfolio/market"
)

// Pair trades the spread leg1*Leg1Ratio - leg2*Leg2Ratio against a
// Bollinger band. Above the upper band it sells the spread, below the lower
// band it buys it, and it flattens when the spread crosses back to the mid.
type Pair struct {
	Leg1, Leg2 market.Contract
	Leg1Ratio  int64
	Leg2Ratio  int64
	FixedSize  int64
	BollWindow int
	BollDev    float64
	// TickAdd moves order prices this many ticks through the reference.
	TickAdd float64

	boll   *indicators.Bollinger
	spread float64
}

// NewPair reads boll_window (20), boll_dev (2), fixed_size (1),
// leg1_ratio (1), leg2_ratio (1) and tick_add (1) from params.
func NewPair(cs []market.Contract, p Params) (Strategy, error) {
	if len(cs) != 2 {
		return nil, fmt.Errorf("pair: want exactly 2 contracts, got %d", len(cs))
	}
	s := &Pair{
		Leg1:       cs[0],
		Leg2:       cs[1],
		Leg1Ratio:  p.Int64("leg1_ratio", 1),
		Leg2Ratio:  p.Int64("leg2_ratio", 1),
		FixedSize:  p.Int64("fixed_size", 1),
		BollWindow: p.Int("boll_window", 20),
		BollDev:    p.Float("boll_dev", 2),
		TickAdd:    p.Float("tick_add", 1),
	}
	s.boll = indicators.NewBollinger(s.BollWindow, s.BollDev)
	if s.Leg1Ratio <= 0 || s.Leg2Ratio <= 0 || s.FixedSize <= 0 {
		return nil, fmt.Errorf("pair: leg ratios and fixed_size must be > 0")
	}
	return s, nil
}

func (s *Pair) Name() string                 { return "pair" }
func (s *Pair) Contracts() []market.Contract { return []market.Contract{s.Leg1, s.Leg2} }

// UpdateParams rebuilds the strategy with p laid over its current settings.
// The band starts over.
func (s *Pair) UpdateParams(p Params) error {
	cur := Params{
		"leg1_ratio":  float64(s.Leg1Ratio),
		"leg2_ratio":  float64(s.Leg2Ratio),
		"fixed_size":  float64(s.FixedSize),
		"boll_window": float64(s.BollWindow),
		"boll_dev":    s.BollDev,
		"tick_add":    s.TickAdd,
	}
	next, err := NewPair(s.Contracts(), cur.merge(p))
	if err != nil {
		return err
	}
	*s = *next.(*Pair)
	return nil
}

// Spread is the last computed spread.
func (s *Pair) Spread() float64 { return s.spread }

func (s *Pair) OnInit(_ context.Context, e Engine) error {
	e.Logf("pair: %s/%s initialized, %s", s.Leg1, s.Leg2, s.boll.Name())
	return nil
}

func (s *Pair) OnBars(_ context.Context, e Engine, sl Slice) error {
	b1, ok1 := sl.Bar(s.Leg1)
	b2, ok2 := sl.Bar(s.Leg2)
	if !ok1 || !ok2 {
		return nil
	}

	s.spread = b1.Close*float64(s.Leg1Ratio) - b2.Close*float64(s.Leg2Ratio)
	s.boll.Push(s.spread)
	if !s.boll.Ready() {
		return nil
	}
	mid, up, down := s.boll.Bands()

	switch pos := e.Pos(s.Leg1); {
	case pos == 0:
		if s.spread >= up {
			s.set(e, -1)
		} else if s.spread <= down {
			s.set(e, 1)
		}
	case pos > 0:
		if s.spread >= mid {
			s.set(e, 0)
		}
	default:
		if s.spread <= mid {
			s.set(e, 0)
		}
	}
	return nil
}

// set puts the spread position to sign*FixedSize units.
func (s *Pair) set(e Engine, sign int64) {
	e.SetTarget(s.Leg1, sign*s.FixedSize*s.Leg1Ratio)
	e.SetTarget(s.Leg2, -sign*s.FixedSize*s.Leg2Ratio)
}

func (s *Pair) OrderPrice(_ market.Contract, d market.Direction, reference, tick float64) float64 {
	return reference + float64(d)*s.TickAdd*tick
}
