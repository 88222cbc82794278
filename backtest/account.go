package backtest

import (
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/position"
)

// holding tracks the average open price of each side of one contract.
type holding struct {
	longAvg  float64
	shortAvg float64
}

// account is the simulated cash side of a run.
type account struct {
	capital    float64
	realized   float64
	commission float64
	holdings   map[market.Contract]*holding
}

func newAccount(capital float64) *account {
	return &account{capital: capital, holdings: make(map[market.Contract]*holding)}
}

func (a *account) holding(c market.Contract) *holding {
	h, ok := a.holdings[c]
	if !ok {
		h = &holding{}
		a.holdings[c] = h
	}
	return h
}

// fill books a fill given the entry before it and returns the realized PnL.
// Closing long inventory realizes (price-avg)*mult*vol; closing short
// inventory realizes the negative of that.
func (a *account) fill(c market.Contract, before position.Entry, dir market.Direction, off market.Offset, vol int64, price, mult, commission float64) float64 {
	h := a.holding(c)
	a.commission += commission

	if off == market.Open {
		if dir == market.Long {
			h.longAvg = average(h.longAvg, before.Long(), price, vol)
		} else {
			h.shortAvg = average(h.shortAvg, before.Short(), price, vol)
		}
		return 0
	}

	var pnl float64
	if dir == market.Short {
		pnl = (price - h.longAvg) * mult * float64(vol)
		if before.Long() == vol {
			h.longAvg = 0
		}
	} else {
		pnl = -(price - h.shortAvg) * mult * float64(vol)
		if before.Short() == vol {
			h.shortAvg = 0
		}
	}
	a.realized += pnl
	return pnl
}

func average(avg float64, qty int64, price float64, vol int64) float64 {
	total := qty + vol
	if total <= 0 {
		return 0
	}
	return (avg*float64(qty) + price*float64(vol)) / float64(total)
}

// unrealized marks every open position at its latest close.
func (a *account) unrealized(l *position.Ledger, last map[market.Contract]float64, specs map[market.Contract]market.Spec) float64 {
	var u float64
	for _, c := range l.Contracts() {
		e := l.Get(c)
		h := a.holding(c)
		px, ok := last[c]
		if !ok {
			continue
		}
		mult := specs[c].Multiplier
		u += float64(e.Long()) * (px - h.longAvg) * mult
		u += float64(e.Short()) * (h.shortAvg - px) * mult
	}
	return u
}

// balance is capital plus realized PnL less commission.
func (a *account) balance() float64 {
	return a.capital + a.realized - a.commission
}
