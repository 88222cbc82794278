package market

import "github.com/shopspring/decimal"

// RoundToTick rounds price to the nearest multiple of tick. Decimal math
// keeps 3712.0000000001 style float noise out of fill prices.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	t := decimal.NewFromFloat(tick)
	n := decimal.NewFromFloat(price).Div(t).Round(0)
	f, _ := n.Mul(t).Float64()
	return f
}

// Slip moves price by ticks*tick against the trader: up for buys, down for
// sells. The result is rounded to the tick.
func Slip(price float64, d Direction, ticks, tick float64) float64 {
	if ticks == 0 {
		return RoundToTick(price, tick)
	}
	adj := decimal.NewFromFloat(ticks).Mul(decimal.NewFromFloat(tick))
	p := decimal.NewFromFloat(price)
	if d == Long {
		p = p.Add(adj)
	} else {
		p = p.Sub(adj)
	}
	f, _ := p.Float64()
	return RoundToTick(f, tick)
}

// Turnover is price * volume * multiplier.
func Turnover(price float64, volume int64, multiplier float64) float64 {
	f, _ := decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(volume)).
		Mul(decimal.NewFromFloat(multiplier)).
		Float64()
	return f
}
