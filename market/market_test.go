package market

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContract(t *testing.T) {
	t.Parallel()

	c := NewContract("rb2410", "shfe")
	assert.Equal(t, Contract("rb2410.SHFE"), c)
	assert.Equal(t, "rb2410", c.Symbol())
	assert.Equal(t, "SHFE", c.Exchange())

	_, err := ParseContract("rb2410")
	assert.Error(t, err)
	_, err = ParseContract("rb2410.")
	assert.Error(t, err)

	got, err := ParseContract(" IF2409.CFFEX ")
	require.NoError(t, err)
	assert.Equal(t, Contract("IF2409.CFFEX"), got)
}

func TestSortContracts(t *testing.T) {
	t.Parallel()

	cs := []Contract{"b.X", "c.X", "a.X"}
	assert.Equal(t, []Contract{"a.X", "b.X", "c.X"}, SortContracts(cs))
}

func TestDirectionOffsetText(t *testing.T) {
	t.Parallel()

	for _, d := range []Direction{Long, Short} {
		b, err := d.MarshalText()
		require.NoError(t, err)
		var back Direction
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, d, back)
	}
	for _, o := range []Offset{Open, Close, CloseToday, CloseYesterday} {
		b, err := o.MarshalText()
		require.NoError(t, err)
		var back Offset
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, o, back)
	}

	assert.Equal(t, Short, Long.Opposite())
	assert.False(t, Open.IsClose())
	assert.True(t, CloseYesterday.IsClose())

	_, err := ParseOffset("close_tomorrow")
	assert.Error(t, err)
}

func TestParseInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Interval
		str  string
	}{
		{"M1", Minute, "M1"},
		{"m15", Minute15, "M15"},
		{"H1", Hour, "H1"},
		{"H4", Hour4, "H4"},
		{"D1", Daily, "D1"},
		{"W1", Weekly, "W1"},
		{"90s", Interval(90 * time.Second), "1m30s"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseInterval(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.str, got.String())
		})
	}

	_, err := ParseInterval("fortnight")
	assert.Error(t, err)
}

func TestRoundToTick(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3712.0, RoundToTick(3711.9999999, 1))
	assert.Equal(t, 100.2, RoundToTick(100.21, 0.2))
	assert.Equal(t, 4.05, RoundToTick(4.049, 0.05))
	assert.Equal(t, 1.5, RoundToTick(1.5, 0))
}

func TestSlip(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 102.0, Slip(100, Long, 2, 1))
	assert.Equal(t, 98.0, Slip(100, Short, 2, 1))
	assert.Equal(t, 100.0, Slip(100.04, Long, 0, 0.2))
	assert.InDelta(t, 3500.4, Slip(3500, Long, 2, 0.2), 1e-9)
}

func TestTurnover(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 3000.0, Turnover(100, 3, 10), 1e-9)
}

func TestSpecs(t *testing.T) {
	t.Parallel()

	specs := Specs{"rb2410.SHFE": {Multiplier: 10, PriceTick: 1}, "bad.X": {Multiplier: 0, PriceTick: 1}}

	s, err := specs.Spec("rb2410.SHFE")
	require.NoError(t, err)
	assert.Equal(t, 10.0, s.Multiplier)

	_, err = specs.Spec("missing.X")
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "no contract specification")

	_, err = specs.Spec("bad.X")
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "contracts.bad.X.multiplier", cfgErr.Field)
}

func TestBarFlat(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	b := Bar{Contract: "a.X", Time: ts, Open: 1, High: 3, Low: 0.5, Close: 2, Volume: 10}
	f := b.Flat(ts.Add(time.Minute))
	assert.Equal(t, Bar{Contract: "a.X", Time: ts.Add(time.Minute), Open: 2, High: 2, Low: 2, Close: 2}, f)
}
