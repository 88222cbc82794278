package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/portfolio/market"
	"github.com/stretchr/testify/assert"
)

func testBars(closes ...float64) []market.Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Bar, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{Contract: "a.X", Time: base.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestSimpleMAStreaming(t *testing.T) {
	t.Parallel()

	bars := testBars(102, 105, 106, 108, 110)

	ma := NewMA(3)
	var _ Indicator = ma
	assert.Equal(t, "MA(3)", ma.Name())
	assert.Equal(t, 3, ma.Warmup())
	assert.False(t, ma.Ready())
	assert.Equal(t, 0.0, ma.Value())

	ma.Update(bars[0])
	ma.Update(bars[1])
	assert.False(t, ma.Ready())

	ma.Update(bars[2])
	assert.True(t, ma.Ready())
	assert.InDelta(t, (102.0+105.0+106.0)/3.0, ma.Value(), 0.001)

	ma.Update(bars[3])
	assert.InDelta(t, (105.0+106.0+108.0)/3.0, ma.Value(), 0.001)

	ma.Reset()
	assert.False(t, ma.Ready())
}

func TestExponentialMAStreaming(t *testing.T) {
	t.Parallel()

	bars := testBars(10, 20, 30, 40)

	ema := NewEMA(3)
	var _ Indicator = ema
	assert.Equal(t, "EMA(3)", ema.Name())
	for _, b := range bars[:3] {
		ema.Update(b)
	}
	assert.True(t, ema.Ready())
	assert.InDelta(t, 20.0, ema.Value(), 1e-9)

	ema.Update(bars[3])
	assert.InDelta(t, 30.0, ema.Value(), 1e-9)

	ema.Reset()
	assert.Equal(t, 0.0, ema.Value())
}

func TestWindow(t *testing.T) {
	t.Parallel()

	w := NewWindow(4)
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.Push(v)
	}
	assert.True(t, w.Full())
	assert.InDelta(t, 6.5, w.Mean(), 1e-9)
	assert.InDelta(t, math.Sqrt(2.75), w.StdDev(), 1e-9)

	single := NewWindow(3)
	single.Push(1)
	assert.Equal(t, 0.0, single.StdDev())
}

func TestBollinger(t *testing.T) {
	t.Parallel()

	b := NewBollinger(4, 2)
	assert.Equal(t, "BOLL(4,2)", b.Name())
	for _, v := range []float64{1, 2, 3} {
		b.Push(v)
	}
	assert.False(t, b.Ready())
	b.Push(4)
	assert.True(t, b.Ready())

	mid, up, down := b.Bands()
	std := math.Sqrt(1.25)
	assert.InDelta(t, 2.5, mid, 1e-9)
	assert.InDelta(t, 2.5+2*std, up, 1e-9)
	assert.InDelta(t, 2.5-2*std, down, 1e-9)
}
