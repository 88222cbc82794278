package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/portfolio/market"
)

// ATR is a streaming Average True Range with Wilder smoothing.
type ATR struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prev      market.Bar
	havePrev  bool
}

// NewATR creates a new Average True Range indicator with the given period
func NewATR(period int) *ATR {
	if period < 1 {
		period = 1
	}
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

// Warmup is period+1 because the first true range needs a previous bar.
func (a *ATR) Warmup() int {
	return a.period + 1
}

func (a *ATR) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.havePrev = false
}

func (a *ATR) Update(b market.Bar) {
	if !a.havePrev {
		a.prev = b
		a.havePrev = true
		return
	}

	tr := trueRange(b, a.prev)
	a.prev = b

	if a.count < a.period {
		// seed with the simple average of the first period true ranges
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
		return
	}
	a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
}

func (a *ATR) Ready() bool {
	return a.count >= a.period
}

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}

// trueRange is the widest of high-low and the gaps from the previous close.
func trueRange(cur, prev market.Bar) float64 {
	highLow := cur.High - cur.Low
	highClose := math.Abs(cur.High - prev.Close)
	lowClose := math.Abs(cur.Low - prev.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}
