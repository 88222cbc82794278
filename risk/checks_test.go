package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/portfolio/broker"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/position"
)

var spec = market.Spec{Multiplier: 10, PriceTick: 1}

func orders(vols ...int64) []broker.OrderRequest {
	var out []broker.OrderRequest
	for _, v := range vols {
		out = append(out, broker.OrderRequest{Contract: "rb2410.SHFE", Volume: v})
	}
	return out
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	limits := Limits{MaxPosition: 5, MaxOrderVolume: 3, MaxNotional: 200_000}

	tests := []struct {
		name  string
		in    Intent
		codes []string
	}{
		{
			name: "within limits",
			in:   Intent{Target: 3, Price: 3500, Orders: orders(3)},
		},
		{
			name:  "position limit",
			in:    Intent{Target: -6, Price: 100, Orders: orders(3, 3)},
			codes: []string{"POSITION_LIMIT"},
		},
		{
			name:  "order too large",
			in:    Intent{Target: 4, Price: 100, Orders: orders(4)},
			codes: []string{"ORDER_TOO_LARGE"},
		},
		{
			name:  "notional",
			in:    Intent{Target: 5, Price: 5000, Orders: orders(2, 3)},
			codes: []string{"NOTIONAL_LIMIT"},
		},
		{
			name:  "everything",
			in:    Intent{Target: 9, Price: 5000, Orders: orders(9)},
			codes: []string{"POSITION_LIMIT", "ORDER_TOO_LARGE", "NOTIONAL_LIMIT"},
		},
		{
			name: "reducing is always allowed",
			in:   Intent{Current: position.Entry{LongYesterday: 9}, Target: 7, Price: 5000, Orders: orders(2)},
		},
		{
			name: "flattening is always allowed",
			in:   Intent{Current: position.Entry{ShortToday: 9}, Target: 0, Price: 5000, Orders: orders(9)},
		},
		{
			name:  "flipping side is checked",
			in:    Intent{Current: position.Entry{ShortToday: 9}, Target: 6, Price: 100, Orders: orders(9, 6)},
			codes: []string{"POSITION_LIMIT", "ORDER_TOO_LARGE"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.in.Contract = "rb2410.SHFE"
			tt.in.Spec = spec
			d := Evaluate(limits, tt.in)
			var codes []string
			for _, v := range d.Violations {
				codes = append(codes, v.Code)
			}
			assert.Equal(t, tt.codes, codes)
			assert.Equal(t, len(tt.codes) == 0, d.Allowed)
		})
	}
}

func TestZeroLimitsAllowEverything(t *testing.T) {
	t.Parallel()

	d := Evaluate(Limits{}, Intent{Contract: "a.X", Target: 1_000_000, Price: 1e6, Spec: spec, Orders: orders(1_000_000)})
	assert.True(t, d.Allowed)
	assert.Equal(t, "allowed", d.String())
	assert.True(t, Limits{}.IsZero())
}

func TestLimitsValidate(t *testing.T) {
	t.Parallel()

	var cfgErr *market.ConfigError
	require.True(t, errors.As(Limits{MaxPosition: -1}.Validate(), &cfgErr))
	assert.Equal(t, "live.risk.max_position", cfgErr.Field)
	assert.NoError(t, Limits{MaxPosition: 1}.Validate())
}
