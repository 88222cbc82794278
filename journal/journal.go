// Package journal records what a run did: every fill as a TradeRecord and
// the account after every step as an EquitySnapshot.
package journal

import (
	"errors"
	"time"

	"github.com/rustyeddy/portfolio/market"
)

// TradeRecord is one simulated or live fill. Records are append-only.
type TradeRecord struct {
	TradeID     string
	Contract    market.Contract
	Time        time.Time
	Direction   market.Direction
	Offset      market.Offset
	Volume      int64
	Price       float64
	Commission  float64
	Multiplier  float64
	RealizedPnL float64
}

// IsClose reports whether the trade reduced inventory.
func (t TradeRecord) IsClose() bool { return t.Offset.IsClose() }

// EquitySnapshot is the account at the end of one step. Balance is
// capital + realized - commission; Equity adds unrealized PnL.
type EquitySnapshot struct {
	Time          time.Time
	RealizedPnL   float64
	UnrealizedPnL float64
	Commission    float64
	Balance       float64
	Equity        float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

type multi []Journal

// Multi fans every record out to all js.
func Multi(js ...Journal) Journal {
	var out multi
	for _, j := range js {
		if j != nil {
			out = append(out, j)
		}
	}
	return out
}

func (m multi) RecordTrade(t TradeRecord) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordTrade(t))
	}
	return errors.Join(errs...)
}

func (m multi) RecordEquity(e EquitySnapshot) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordEquity(e))
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.Close())
	}
	return errors.Join(errs...)
}
