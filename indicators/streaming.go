package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/portfolio/market"
)

// SimpleMA is a streaming Simple Moving Average of bar closes.
type SimpleMA struct {
	w *Window
}

// NewMA creates a new Simple Moving Average indicator with the given period
func NewMA(period int) *SimpleMA {
	return &SimpleMA{w: NewWindow(period)}
}

func (m *SimpleMA) Name() string        { return fmt.Sprintf("MA(%d)", m.w.Size()) }
func (m *SimpleMA) Warmup() int         { return m.w.Size() }
func (m *SimpleMA) Reset()              { m.w.Reset() }
func (m *SimpleMA) Update(b market.Bar) { m.w.Push(b.Close) }
func (m *SimpleMA) Ready() bool         { return m.w.Full() }

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.w.Mean()
}

// ExponentialMA is a streaming Exponential Moving Average indicator
type ExponentialMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

// NewEMA creates a new Exponential Moving Average indicator with the given period
func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ExponentialMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

func (e *ExponentialMA) Warmup() int {
	return e.period
}

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}

func (e *ExponentialMA) Update(b market.Bar) {
	if e.count < e.period {
		// seed with the SMA of the first period closes
		e.warmupSum += b.Close
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (b.Close-e.ema)*e.multiplier + e.ema
}

func (e *ExponentialMA) Ready() bool {
	return e.count >= e.period
}

func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

// CCI is a streaming Commodity Channel Index over the typical price
// (high+low+close)/3.
type CCI struct {
	w *Window
}

func NewCCI(period int) *CCI {
	return &CCI{w: NewWindow(period)}
}

func (c *CCI) Name() string        { return fmt.Sprintf("CCI(%d)", c.w.Size()) }
func (c *CCI) Warmup() int         { return c.w.Size() }
func (c *CCI) Reset()              { c.w.Reset() }
func (c *CCI) Ready() bool         { return c.w.Full() }
func (c *CCI) Update(b market.Bar) { c.w.Push((b.High + b.Low + b.Close) / 3) }

// Value is 0 before Ready and when every typical price in the window is equal.
func (c *CCI) Value() float64 {
	if !c.Ready() {
		return 0
	}
	mean := c.w.Mean()
	dev := 0.0
	for _, v := range c.w.values() {
		dev += math.Abs(v - mean)
	}
	dev /= float64(c.w.n)
	if dev == 0 {
		return 0
	}
	return (c.w.Last() - mean) / (0.015 * dev)
}
