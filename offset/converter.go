// Package offset turns a target net position into open/close tagged order
// requests against existing long/short inventory.
package offset

import (
	"github.com/rustyeddy/portfolio/broker"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/position"
)

// Converter is pure: the same entry, target and policy always produce the
// same orders. Policy must be the value later handed to position.ApplyFill.
type Converter struct {
	Policy position.Policy
}

func New(p position.Policy) (Converter, error) {
	if err := p.Validate(); err != nil {
		return Converter{}, err
	}
	return Converter{Policy: p}, nil
}

// Convert returns the orders that move e to target. Inventory on the
// opposite side is closed first, then any remainder is opened. Orders carry
// priceHint unchanged; callers round it.
func (cv Converter) Convert(c market.Contract, e position.Entry, target int64, priceHint float64) []broker.OrderRequest {
	delta := target - e.Net()
	if delta == 0 {
		return nil
	}

	dir := market.Long
	today, yesterday := e.ShortToday, e.ShortYesterday
	if delta < 0 {
		dir = market.Short
		today, yesterday = e.LongToday, e.LongYesterday
		delta = -delta
	}

	var out []broker.OrderRequest
	add := func(off market.Offset, vol int64) {
		if vol <= 0 {
			return
		}
		out = append(out, broker.OrderRequest{
			Contract:  c,
			Direction: dir,
			Offset:    off,
			Volume:    vol,
			Price:     priceHint,
		})
		delta -= vol
	}

	switch cv.Policy {
	case position.PolicyTodayFirst:
		add(market.CloseToday, min(delta, today))
		add(market.CloseYesterday, min(delta, yesterday))
	case position.PolicyYesterdayFirst:
		add(market.CloseYesterday, min(delta, yesterday))
		add(market.CloseToday, min(delta, today))
	default:
		add(market.Close, min(delta, today+yesterday))
	}
	add(market.Open, delta)
	return out
}
