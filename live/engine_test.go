package live

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/portfolio/broker"
	"github.com/rustyeddy/portfolio/broker/paper"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/position"
	"github.com/rustyeddy/portfolio/risk"
	"github.com/rustyeddy/portfolio/store"
	"github.com/rustyeddy/portfolio/strategy"
)

const (
	rb market.Contract = "rb2410.SHFE"
	hc market.Contract = "hc2410.SHFE"
)

var (
	t0    = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	specs = market.Specs{
		rb: {Multiplier: 10, PriceTick: 1},
		hc: {Multiplier: 10, PriceTick: 1},
	}
)

func slice(i int, prices map[market.Contract]float64) strategy.Slice {
	ts := t0.Add(time.Duration(i) * time.Minute)
	sl := strategy.Slice{Time: ts, Bars: map[market.Contract]market.Bar{}}
	for _, c := range []market.Contract{rb, hc} {
		p, ok := prices[c]
		if !ok {
			continue
		}
		sl.Contracts = append(sl.Contracts, c)
		sl.Bars[c] = market.Bar{Contract: c, Time: ts, Open: p, High: p, Low: p, Close: p}
	}
	return sl
}

type fixture struct {
	eng   *Engine
	gw    *paper.Gateway
	store store.Store
	logs  *bytes.Buffer
}

func newFixture(t *testing.T, autoFill bool, policy position.Policy) *fixture {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	gw := paper.New(autoFill)
	var buf bytes.Buffer
	eng, err := NewEngine(Options{
		Policy:  policy,
		Specs:   specs,
		Gateway: gw,
		Store:   st,
		Logger:  log.New(&buf, "", 0),
	})
	require.NoError(t, err)
	gw.Bind(eng)
	return &fixture{eng: eng, gw: gw, store: st, logs: &buf}
}

func (f *fixture) start(t *testing.T, s strategy.Strategy) {
	t.Helper()
	require.NoError(t, f.eng.AddStrategy(s))
	require.NoError(t, f.eng.InitStrategy(context.Background(), s.Name()))
	require.NoError(t, f.eng.StartStrategy(s.Name()))
}

func TestTargetsBecomeFills(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true, position.PolicyNet)
	s := &strategy.Schedule{
		Label:   "sched",
		Symbols: []market.Contract{rb, hc},
		Steps: map[int][]strategy.TargetCall{
			0: {{Contract: rb, Target: 3}, {Contract: hc, Target: -2}},
			1: {{Contract: rb, Target: -1}},
		},
	}
	f.start(t, s)
	ctx := context.Background()

	require.NoError(t, f.eng.OnBars(ctx, slice(0, map[market.Contract]float64{rb: 3500, hc: 3300})))
	e, err := f.eng.Position("sched", rb)
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.Net())
	e, _ = f.eng.Position("sched", hc)
	assert.Equal(t, int64(-2), e.Net())

	require.NoError(t, f.eng.OnBars(ctx, slice(1, map[market.Contract]float64{rb: 3510})))
	e, _ = f.eng.Position("sched", rb)
	assert.Equal(t, int64(-1), e.Net())

	sent := f.gw.Sent()
	require.Len(t, sent, 4)
	assert.Equal(t, market.Close, sent[2].Offset)
	assert.Equal(t, int64(3), sent[2].Volume)
	assert.Equal(t, market.Open, sent[3].Offset)
	assert.Equal(t, 3510.0, sent[3].Price)
	assert.Equal(t, "sched", sent[3].Reference)

	snap, err := f.store.LoadSnapshot(ctx, "sched")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), snap.Positions[rb].Net())
	assert.Equal(t, position.Targets{rb: -1, hc: -2}, snap.Targets)
}

func TestDuplicateFillIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true, position.PolicyNet)
	f.start(t, &strategy.Schedule{Label: "dup", Symbols: []market.Contract{rb},
		Steps: map[int][]strategy.TargetCall{0: {{Contract: rb, Target: 2}}}})

	require.NoError(t, f.eng.OnBars(context.Background(), slice(0, map[market.Contract]float64{rb: 100})))
	require.NoError(t, f.gw.Redeliver("PT000001"))

	e, _ := f.eng.Position("dup", rb)
	assert.Equal(t, position.Entry{LongToday: 2}, e)
}

func TestNewTargetCancelsWorkingOrders(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, position.PolicyNet)
	f.start(t, &strategy.Schedule{Label: "slow", Symbols: []market.Contract{rb},
		Steps: map[int][]strategy.TargetCall{
			0: {{Contract: rb, Target: 2}},
			1: {{Contract: rb, Target: 5}},
		}})
	ctx := context.Background()

	require.NoError(t, f.eng.OnBars(ctx, slice(0, map[market.Contract]float64{rb: 100})))
	first, err := f.eng.ActiveOrders("slow")
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, f.eng.OnBars(ctx, slice(1, map[market.Contract]float64{rb: 101})))
	active, _ := f.eng.ActiveOrders("slow")
	require.Len(t, active, 1)
	assert.NotEqual(t, first[0], active[0])
	assert.Equal(t, active, f.gw.Active())

	sent := f.gw.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, int64(5), sent[1].Volume)

	require.NoError(t, f.gw.Fill(active[0], 5, 101))
	e, _ := f.eng.Position("slow", rb)
	assert.Equal(t, int64(5), e.Net())
	active, _ = f.eng.ActiveOrders("slow")
	assert.Empty(t, active)
}

func TestStrategyErrorStopsOnlyThatStrategy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true, position.PolicyNet)
	bad := &strategy.Schedule{Label: "bad", Symbols: []market.Contract{rb}, FailAt: 0, Err: errors.New("boom")}
	good := &strategy.Schedule{Label: "good", Symbols: []market.Contract{rb},
		Steps: map[int][]strategy.TargetCall{0: {{Contract: rb, Target: 1}}}}
	f.start(t, bad)
	f.start(t, good)

	require.NoError(t, f.eng.OnBars(context.Background(), slice(0, map[market.Contract]float64{rb: 100})))

	assert.False(t, f.eng.Trading("bad"))
	assert.True(t, f.eng.Trading("good"))
	assert.Contains(t, f.logs.String(), "bad: stopped after error")

	e, _ := f.eng.Position("good", rb)
	assert.Equal(t, int64(1), e.Net())
}

func TestInventoryErrorStopsStrategy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, position.PolicyTodayFirst)
	f.start(t, &strategy.Schedule{Label: "inv", Symbols: []market.Contract{rb},
		Steps: map[int][]strategy.TargetCall{0: {{Contract: rb, Target: 1}}}})

	require.NoError(t, f.eng.OnBars(context.Background(), slice(0, map[market.Contract]float64{rb: 100})))
	active, _ := f.eng.ActiveOrders("inv")
	require.Len(t, active, 1)

	// a close fill the ledger has no inventory for
	f.eng.OnTrade(broker.Fill{TradeID: "x1", OrderID: active[0], Contract: rb, Direction: market.Short, Offset: market.CloseToday, Volume: 1, Price: 100})

	assert.False(t, f.eng.Trading("inv"))
	assert.Contains(t, f.logs.String(), "rejected by ledger")
	e, _ := f.eng.Position("inv", rb)
	assert.True(t, e.IsZero())
}

func TestRestoreAndStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, position.PolicyTodayFirst)
	ctx := context.Background()
	require.NoError(t, f.store.SaveSnapshot(ctx, "resume", position.Snapshot{
		Positions: map[market.Contract]position.Entry{rb: {ShortYesterday: 2}},
		Targets:   position.Targets{rb: -2},
	}))

	s := &strategy.Schedule{Label: "resume", Symbols: []market.Contract{rb},
		Steps: map[int][]strategy.TargetCall{0: {{Contract: rb, Target: 1}}}}
	require.NoError(t, f.eng.AddStrategy(s))
	assert.ErrorIs(t, f.eng.StartStrategy("resume"), ErrNotInited)
	require.NoError(t, f.eng.InitStrategy(ctx, "resume"))
	require.NoError(t, f.eng.StartStrategy("resume"))

	e, _ := f.eng.Position("resume", rb)
	assert.Equal(t, position.Entry{ShortYesterday: 2}, e)

	require.NoError(t, f.eng.OnBars(ctx, slice(0, map[market.Contract]float64{rb: 100})))
	sent := f.gw.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, market.CloseYesterday, sent[0].Offset)
	assert.Equal(t, int64(2), sent[0].Volume)
	assert.Equal(t, market.Open, sent[1].Offset)

	assert.ErrorIs(t, f.eng.RemoveStrategy("resume"), ErrTrading)
	require.NoError(t, f.eng.StopStrategy(ctx, "resume"))
	assert.Empty(t, f.gw.Active())

	snap, err := f.store.LoadSnapshot(ctx, "resume")
	require.NoError(t, err)
	assert.Equal(t, position.Targets{rb: 1}, snap.Targets)

	require.NoError(t, f.eng.RemoveStrategy("resume"))
	assert.Empty(t, f.eng.Strategies())
}

func TestAddStrategyValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true, position.PolicyNet)
	var cfgErr *market.ConfigError

	err := f.eng.AddStrategy(&strategy.Schedule{Label: "x", Symbols: []market.Contract{"zz.X"}})
	require.True(t, errors.As(err, &cfgErr))

	err = f.eng.AddStrategy(&strategy.Schedule{Label: "empty"})
	require.True(t, errors.As(err, &cfgErr))

	require.NoError(t, f.eng.AddStrategy(&strategy.Schedule{Label: "y", Symbols: []market.Contract{rb}}))
	assert.ErrorIs(t, f.eng.AddStrategy(&strategy.Schedule{Label: "y", Symbols: []market.Contract{rb}}), ErrDuplicate)
	assert.ErrorIs(t, f.eng.StartStrategy("nope"), ErrUnknownStrategy)

	_, err = NewEngine(Options{Policy: "sideways", Specs: specs, Gateway: paper.New(true)})
	require.True(t, errors.As(err, &cfgErr))
	_, err = NewEngine(Options{Policy: position.PolicyNet, Specs: specs})
	require.True(t, errors.As(err, &cfgErr))
}

func TestUndeclaredContractStopsStrategy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true, position.PolicyNet)
	f.start(t, &strategy.Schedule{Label: "rogue", Symbols: []market.Contract{rb},
		Steps: map[int][]strategy.TargetCall{0: {{Contract: hc, Target: 1}}}})

	require.NoError(t, f.eng.OnBars(context.Background(), slice(0, map[market.Contract]float64{rb: 100, hc: 200})))
	assert.False(t, f.eng.Trading("rogue"))
	assert.Empty(t, f.gw.Sent())
}

func TestRolloverAndThrottle(t *testing.T) {
	t.Parallel()

	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	gw := paper.New(true)
	eng, err := NewEngine(Options{
		Policy:          position.PolicyTodayFirst,
		Specs:           specs,
		Gateway:         gw,
		Store:           st,
		OrdersPerSecond: 1000,
		OrderBurst:      2,
		Logger:          log.New(&bytes.Buffer{}, "", 0),
	})
	require.NoError(t, err)
	gw.Bind(eng)

	s := &strategy.Schedule{Label: "roll", Symbols: []market.Contract{rb, hc},
		Steps: map[int][]strategy.TargetCall{0: {{Contract: rb, Target: 2}, {Contract: hc, Target: 1}}}}
	require.NoError(t, eng.AddStrategy(s))
	require.NoError(t, eng.InitStrategy(context.Background(), "roll"))
	require.NoError(t, eng.StartStrategy("roll"))

	require.NoError(t, eng.OnBars(context.Background(), slice(0, map[market.Contract]float64{rb: 100, hc: 50})))
	require.NoError(t, eng.Rollover(context.Background()))

	e, _ := eng.Position("roll", rb)
	assert.Equal(t, position.Entry{LongYesterday: 2}, e)
	snap, err := st.LoadSnapshot(context.Background(), "roll")
	require.NoError(t, err)
	assert.Equal(t, position.Entry{LongYesterday: 2}, snap.Positions[rb])

	require.NoError(t, eng.Close(context.Background()))
	assert.False(t, eng.Trading("roll"))
}

func TestCancelledContextDropsOrders(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, position.PolicyNet)
	f.start(t, &strategy.Schedule{Label: "ctx", Symbols: []market.Contract{rb},
		Steps: map[int][]strategy.TargetCall{0: {{Contract: rb, Target: 1}}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.eng.OnBars(ctx, slice(0, map[market.Contract]float64{rb: 100}))
	assert.ErrorIs(t, err, context.Canceled)

	active, _ := f.eng.ActiveOrders("ctx")
	assert.Empty(t, active)
}

func TestRiskLimitsBlockTargets(t *testing.T) {
	t.Parallel()

	gw := paper.New(true)
	var buf bytes.Buffer
	eng, err := NewEngine(Options{
		Policy:  position.PolicyNet,
		Specs:   specs,
		Gateway: gw,
		Risk:    risk.Limits{MaxPosition: 3},
		Logger:  log.New(&buf, "", 0),
	})
	require.NoError(t, err)
	gw.Bind(eng)

	s := &strategy.Schedule{Label: "capped", Symbols: []market.Contract{rb, hc},
		Steps: map[int][]strategy.TargetCall{0: {{Contract: rb, Target: 5}, {Contract: hc, Target: 2}}}}
	require.NoError(t, eng.AddStrategy(s))
	require.NoError(t, eng.InitStrategy(context.Background(), "capped"))
	require.NoError(t, eng.StartStrategy("capped"))

	require.NoError(t, eng.OnBars(context.Background(), slice(0, map[market.Contract]float64{rb: 100, hc: 50})))

	e, _ := eng.Position("capped", rb)
	assert.True(t, e.IsZero())
	e, _ = eng.Position("capped", hc)
	assert.Equal(t, int64(2), e.Net())
	assert.Contains(t, buf.String(), "POSITION_LIMIT")
	assert.True(t, eng.Trading("capped"))

	snap, err := eng.Snapshot("capped")
	require.NoError(t, err)
	assert.Equal(t, position.Targets{hc: 2}, snap.Targets)

	_, err = NewEngine(Options{Policy: position.PolicyNet, Specs: specs, Gateway: gw, Risk: risk.Limits{MaxOrderVolume: -1}})
	assert.Error(t, err)
}

func TestEditStrategy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true, position.PolicyNet)
	ctx := context.Background()

	st, err := strategy.New("boll_channel", []market.Contract{rb, hc}, strategy.Params{"fixed_size": 1})
	require.NoError(t, err)
	f.start(t, st)

	assert.ErrorIs(t, f.eng.EditStrategy("boll_channel", strategy.Params{"fixed_size": 4}), ErrTrading)
	require.NoError(t, f.eng.StopStrategy(ctx, "boll_channel"))

	require.NoError(t, f.eng.EditStrategy("boll_channel", strategy.Params{"fixed_size": 4}))
	assert.Equal(t, int64(4), st.(*strategy.BollChannel).FixedSize)
	assert.Contains(t, f.logs.String(), "settings updated: fixed_size=4")

	assert.Error(t, f.eng.EditStrategy("boll_channel", strategy.Params{"fixed_size": 0}))
	assert.Equal(t, int64(4), st.(*strategy.BollChannel).FixedSize)
	assert.ErrorIs(t, f.eng.EditStrategy("missing", nil), ErrUnknownStrategy)

	s := &strategy.Schedule{Label: "fixed", Symbols: []market.Contract{rb}}
	require.NoError(t, f.eng.AddStrategy(s))
	var cfgErr *market.ConfigError
	assert.True(t, errors.As(f.eng.EditStrategy("fixed", strategy.Params{"x": 1}), &cfgErr))
}
