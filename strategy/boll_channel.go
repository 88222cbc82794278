package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/rustyeddy/portfolio/indicators"
	"github.com/rustyeddy/portfolio/market"
)

// BollChannel enters each contract in the direction of its CCI once the
// Bollinger, CCI and ATR windows are warm, and exits on an ATR trailing
// stop measured from the best price seen since entry.
type BollChannel struct {
	Symbols      []market.Contract
	BollWindow   int
	BollDev      float64
	CCIWindow    int
	ATRWindow    int
	SLMultiplier float64
	FixedSize    int64
	// PriceAdd moves order prices this far through the reference, in price
	// units.
	PriceAdd float64

	legs map[market.Contract]*channelLeg
}

type channelLeg struct {
	boll      *indicators.Bollinger
	cci       *indicators.CCI
	atr       *indicators.ATR
	high, low float64
	target    int64
}

// NewBollChannel reads boll_window (18), boll_dev (3.4), cci_window (10),
// atr_window (30), sl_multiplier (5.2), fixed_size (1) and price_add (5)
// from params.
func NewBollChannel(cs []market.Contract, p Params) (Strategy, error) {
	s := &BollChannel{Symbols: cs}
	if err := s.apply(s.params().merge(p)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BollChannel) params() Params {
	if s.legs == nil {
		return Params{
			"boll_window": 18, "boll_dev": 3.4, "cci_window": 10, "atr_window": 30,
			"sl_multiplier": 5.2, "fixed_size": 1, "price_add": 5,
		}
	}
	return Params{
		"boll_window":   float64(s.BollWindow),
		"boll_dev":      s.BollDev,
		"cci_window":    float64(s.CCIWindow),
		"atr_window":    float64(s.ATRWindow),
		"sl_multiplier": s.SLMultiplier,
		"fixed_size":    float64(s.FixedSize),
		"price_add":     s.PriceAdd,
	}
}

// apply validates p and rebuilds the indicators; inventory-derived state
// starts over.
func (s *BollChannel) apply(p Params) error {
	bw, bd := p.Int("boll_window", 0), p.Float("boll_dev", 0)
	cw, aw := p.Int("cci_window", 0), p.Int("atr_window", 0)
	sl, size := p.Float("sl_multiplier", 0), p.Int64("fixed_size", 0)
	if bw < 2 || cw < 1 || aw < 1 {
		return fmt.Errorf("boll_channel: windows must be > 0 (boll_window >= 2)")
	}
	if bd <= 0 || sl <= 0 || size <= 0 {
		return fmt.Errorf("boll_channel: boll_dev, sl_multiplier and fixed_size must be > 0")
	}
	s.BollWindow, s.BollDev, s.CCIWindow, s.ATRWindow = bw, bd, cw, aw
	s.SLMultiplier, s.FixedSize, s.PriceAdd = sl, size, p.Float("price_add", 0)
	s.legs = make(map[market.Contract]*channelLeg, len(s.Symbols))
	for _, c := range s.Symbols {
		s.legs[c] = &channelLeg{
			boll: indicators.NewBollinger(bw, bd),
			cci:  indicators.NewCCI(cw),
			atr:  indicators.NewATR(aw),
		}
	}
	return nil
}

// UpdateParams changes the given settings and leaves the rest alone.
func (s *BollChannel) UpdateParams(p Params) error {
	return s.apply(s.params().merge(p))
}

func (s *BollChannel) Name() string                 { return "boll_channel" }
func (s *BollChannel) Contracts() []market.Contract { return s.Symbols }

func (s *BollChannel) OnInit(_ context.Context, e Engine) error {
	e.Logf("boll_channel: %d contracts initialized, BOLL(%d,%g) CCI(%d) ATR(%d)",
		len(s.Symbols), s.BollWindow, s.BollDev, s.CCIWindow, s.ATRWindow)
	return nil
}

func (s *BollChannel) OnBars(_ context.Context, e Engine, sl Slice) error {
	ready := true
	for _, c := range sl.Contracts {
		leg, ok := s.legs[c]
		if !ok {
			continue
		}
		b := sl.Bars[c]
		leg.boll.Push(b.Close)
		leg.cci.Update(b)
		leg.atr.Update(b)
		if !leg.boll.Ready() || !leg.cci.Ready() || !leg.atr.Ready() {
			ready = false
		}
	}
	if !ready {
		return nil
	}

	for _, c := range sl.Contracts {
		leg, ok := s.legs[c]
		if !ok {
			continue
		}
		b := sl.Bars[c]
		cci, atr := leg.cci.Value(), leg.atr.Value()

		switch pos := e.Pos(c); {
		case pos == 0:
			leg.high, leg.low = b.High, b.Low
			if cci > 0 {
				leg.target = s.FixedSize
			} else if cci < 0 {
				leg.target = -s.FixedSize
			}
		case pos > 0:
			leg.high = math.Max(leg.high, b.High)
			leg.low = b.Low
			if b.Close <= leg.high-atr*s.SLMultiplier {
				leg.target = 0
			}
		default:
			leg.low = math.Min(leg.low, b.Low)
			leg.high = b.High
			if b.Close >= leg.low+atr*s.SLMultiplier {
				leg.target = 0
			}
		}

		if leg.target != e.Pos(c) {
			e.SetTarget(c, leg.target)
		}
	}
	return nil
}

// Bands returns the last Bollinger bands of c.
func (s *BollChannel) Bands(c market.Contract) (mid, up, down float64) {
	if leg, ok := s.legs[c]; ok && leg.boll.Ready() {
		return leg.boll.Bands()
	}
	return 0, 0, 0
}

func (s *BollChannel) OrderPrice(_ market.Contract, d market.Direction, reference, _ float64) float64 {
	return reference + float64(d)*s.PriceAdd
}
