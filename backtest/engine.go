// Package backtest replays historical bars through a portfolio strategy,
// simulating fills, inventory and account equity.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/rustyeddy/portfolio/broker"
	"github.com/rustyeddy/portfolio/internal/id"
	"github.com/rustyeddy/portfolio/journal"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/offset"
	"github.com/rustyeddy/portfolio/position"
	"github.com/rustyeddy/portfolio/stats"
	"github.com/rustyeddy/portfolio/strategy"
)

// Engine runs one strategy over historical data. A run is sequential and
// deterministic: the same config, data and strategy give the same trades
// and equity curve.
type Engine struct {
	cfg   Config
	strat strategy.Strategy
	data  DataProvider

	state atomic.Int32

	// per-run state, reset by Run
	log       *log.Logger
	name      string
	conv      offset.Converter
	contracts []market.Contract
	specs     map[market.Contract]market.Spec
	ledger    *position.Ledger
	targets   position.Targets
	acct      *account
	last      map[market.Contract]float64
	pending   map[market.Contract][]broker.OrderRequest
	requests  []strategy.TargetCall
	reqIndex  map[market.Contract]int
	callErr   error
	tradeIDs  id.Sequence
	orderIDs  id.Sequence
	res       *Result
}

func NewEngine(cfg Config, strat strategy.Strategy, data DataProvider) *Engine {
	return &Engine{cfg: cfg, strat: strat, data: data}
}

// State is safe to call from any goroutine.
func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) { e.state.Store(int32(s)) }

// Run executes the backtest. On success the state ends Finished. When the
// run aborts it returns the partial result together with an *AbortError.
// Configuration problems return a *market.ConfigError before any data is
// loaded.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.strat == nil {
		return nil, &market.ConfigError{Field: "backtest.strategy", Reason: "is required"}
	}
	if e.data == nil {
		return nil, &market.ConfigError{Field: "backtest.data", Reason: "is required"}
	}
	specs, err := e.cfg.Validate(e.strat.Contracts())
	if err != nil {
		return nil, err
	}
	e.reset(specs)

	e.setState(StateLoading)
	timeline, err := e.load(ctx)
	if err != nil {
		return e.abort(StateLoading, 0, err)
	}
	if len(timeline) > 0 {
		e.res.Start = timeline[0].Time
		e.res.End = timeline[len(timeline)-1].Time
	}

	e.setState(StateRunning)
	if init, ok := e.strat.(strategy.Initializer); ok {
		if err := init.OnInit(ctx, e); err != nil {
			return e.abort(StateRunning, 0, fmt.Errorf("strategy %s init: %w", e.name, err))
		}
	}

	var prevDay time.Time
	for i, sl := range timeline {
		if err := ctx.Err(); err != nil {
			return e.abort(StateRunning, i, err)
		}
		if err := e.step(ctx, i, sl, &prevDay); err != nil {
			return e.abort(StateRunning, i, err)
		}
		e.res.Steps = i + 1
	}

	if stop, ok := e.strat.(strategy.Stopper); ok {
		if err := stop.OnStop(ctx, e); err != nil {
			e.log.Printf("%s: stop: %v", e.name, err)
		}
	}

	e.finish(StateFinished)
	e.log.Printf("%s: finished %d steps, %d trades, equity %.2f", e.name, e.res.Steps, len(e.res.Trades), e.res.Stats.EndBalance)
	return e.res, nil
}

func (e *Engine) reset(specs map[market.Contract]market.Spec) {
	e.log = e.cfg.logger()
	e.name = e.cfg.Name
	if e.name == "" {
		e.name = e.strat.Name()
	}
	e.conv = offset.Converter{Policy: e.cfg.Policy}
	e.contracts = append([]market.Contract(nil), e.strat.Contracts()...)
	e.specs = specs
	e.ledger = position.NewLedger()
	e.targets = make(position.Targets)
	e.acct = newAccount(e.cfg.Capital)
	e.last = make(map[market.Contract]float64)
	e.pending = make(map[market.Contract][]broker.OrderRequest)
	e.requests = nil
	e.reqIndex = make(map[market.Contract]int)
	e.callErr = nil
	e.tradeIDs = id.Sequence{Prefix: "T"}
	e.orderIDs = id.Sequence{Prefix: "O"}
	e.res = &Result{Name: e.name, Contracts: e.contracts, Capital: e.cfg.Capital}
	e.setState(StateIdle)
}

// load fetches every contract once and merges them into one timeline.
func (e *Engine) load(ctx context.Context) ([]strategy.Slice, error) {
	timeline, gaps, err := LoadTimeline(ctx, e.data, e.contracts, e.cfg.Start, e.cfg.End, e.cfg.Interval, e.cfg.FillForward)
	for _, gap := range gaps {
		e.log.Printf("%s: %v", e.name, gap)
	}
	e.res.Gaps = append(e.res.Gaps, gaps...)
	return timeline, err
}

func (e *Engine) step(ctx context.Context, i int, sl strategy.Slice, prevDay *time.Time) error {
	day := truncateDay(sl.Time)
	if e.cfg.DailyRollover && !prevDay.IsZero() && !day.Equal(*prevDay) {
		e.rollover()
	}
	*prevDay = day

	for _, c := range sl.Contracts {
		if err := e.fillPending(c, sl.Bars[c]); err != nil {
			return err
		}
	}
	for _, c := range sl.Contracts {
		e.last[c] = sl.Bars[c].Close
	}

	e.requests = e.requests[:0]
	clear(e.reqIndex)
	if err := e.strat.OnBars(ctx, e, sl); err != nil {
		return fmt.Errorf("strategy %s: %w", e.name, err)
	}
	if e.callErr != nil {
		return e.callErr
	}

	e.plan(sl.Time)
	return e.snapshot(sl.Time)
}

// rollover ages today's inventory. Pending close_today orders now close
// yesterday lots instead; nothing else about the kept orders changes, so
// orders the burst check rejected stay rejected.
func (e *Engine) rollover() {
	e.ledger.Rollover()
	for _, c := range e.contracts {
		orders := e.pending[c]
		for k := range orders {
			if orders[k].Offset == market.CloseToday {
				orders[k].Offset = market.CloseYesterday
			}
		}
	}
}

// plan converts this step's target requests into pending orders, applying
// the per-step order limit.
func (e *Engine) plan(t time.Time) {
	type planned struct {
		c      market.Contract
		orders []broker.OrderRequest
	}
	var (
		plans []planned
		total int
	)
	for _, r := range e.requests {
		orders := e.conv.Convert(r.Contract, e.ledger.Get(r.Contract), r.Target, e.last[r.Contract])
		for k := range orders {
			orders[k].Price = e.orderPrice(r.Contract, orders[k].Direction)
			orders[k].Reference = e.name
		}
		plans = append(plans, planned{r.Contract, orders})
		total += len(orders)
	}

	limit := e.cfg.MaxOrdersPerStep
	kept := 0
	for _, p := range plans {
		keep := p.orders
		if limit > 0 && kept+len(keep) > limit {
			n := max(limit-kept, 0)
			rejected := len(keep) - n
			keep = keep[:n]
			ev := BurstEvent{Time: t, Contract: p.c, Rejected: rejected}
			e.res.Bursts = append(e.res.Bursts, ev)
			e.log.Printf("%s: burst limit %d: %s", e.name, limit, ev)
		}
		kept += len(keep)
		for k := range keep {
			keep[k].ID = e.orderIDs.Next()
		}
		// a new target replaces whatever was still waiting for this contract
		e.pending[p.c] = keep
	}
	if total > 0 && limit > 0 && total > limit {
		e.log.Printf("%s: %d of %d orders kept at %s", e.name, kept, total, t.Format(time.RFC3339))
	}
}

func (e *Engine) orderPrice(c market.Contract, d market.Direction) float64 {
	ref := e.last[c]
	tick := e.specs[c].PriceTick
	if p, ok := e.strat.(strategy.Pricer); ok {
		return market.RoundToTick(p.OrderPrice(c, d, ref, tick), tick)
	}
	return market.RoundToTick(ref, tick)
}

// fillPending fills every order waiting on c at bar's open.
func (e *Engine) fillPending(c market.Contract, bar market.Bar) error {
	orders := e.pending[c]
	if len(orders) == 0 {
		return nil
	}
	delete(e.pending, c)

	spec := e.specs[c]
	for _, o := range orders {
		price := market.Slip(bar.Open, o.Direction, e.cfg.SlippageTicks, spec.PriceTick)
		before := e.ledger.Get(c)
		if _, err := e.ledger.Apply(c, o.Direction, o.Offset, o.Volume, e.cfg.Policy); err != nil {
			return err
		}
		commission := e.cfg.Commission.Charge(price, o.Volume, spec.Multiplier)
		pnl := e.acct.fill(c, before, o.Direction, o.Offset, o.Volume, price, spec.Multiplier, commission)

		tr := journal.TradeRecord{
			TradeID:     e.tradeIDs.Next(),
			Contract:    c,
			Time:        bar.Time,
			Direction:   o.Direction,
			Offset:      o.Offset,
			Volume:      o.Volume,
			Price:       price,
			Commission:  commission,
			Multiplier:  spec.Multiplier,
			RealizedPnL: pnl,
		}
		e.res.Trades = append(e.res.Trades, tr)
		if e.cfg.Journal != nil {
			if err := e.cfg.Journal.RecordTrade(tr); err != nil {
				return fmt.Errorf("journal trade %s: %w", tr.TradeID, err)
			}
		}
	}
	return nil
}

func (e *Engine) snapshot(t time.Time) error {
	u := e.acct.unrealized(e.ledger, e.last, e.specs)
	bal := e.acct.balance()
	snap := journal.EquitySnapshot{
		Time:          t,
		RealizedPnL:   e.acct.realized,
		UnrealizedPnL: u,
		Commission:    e.acct.commission,
		Balance:       bal,
		Equity:        bal + u,
	}
	e.res.Equity = append(e.res.Equity, snap)
	if e.cfg.Journal != nil {
		if err := e.cfg.Journal.RecordEquity(snap); err != nil {
			return fmt.Errorf("journal equity: %w", err)
		}
	}
	return nil
}

func (e *Engine) finish(s State) {
	for _, orders := range e.pending {
		e.res.Unfilled += len(orders)
	}
	e.pending = make(map[market.Contract][]broker.OrderRequest)

	e.res.State = s
	e.res.Positions = e.ledger.Snapshot()
	e.res.Positions.Targets = e.targets.Clone()
	e.res.Stats = stats.Compute(e.res.Equity, e.res.Trades, e.cfg.Capital)
	e.setState(s)
}

func (e *Engine) abort(s State, step int, cause error) (*Result, error) {
	e.finish(StateAborted)
	e.log.Printf("%s: aborted while %s at step %d: %v", e.name, s, step, cause)
	var inv *position.InventoryError
	if errors.As(cause, &inv) {
		e.log.Printf("%s: ledger %s is %s", e.name, inv.Contract, e.ledger.Get(inv.Contract))
	}
	return e.res, &AbortError{State: s, Step: step, Cause: cause, Partial: e.res}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// strategy.Engine

// SetTarget records a target for this step. Repeated calls for one contract
// keep the position of the first call and the value of the last.
func (e *Engine) SetTarget(c market.Contract, target int64) {
	if _, ok := e.specs[c]; !ok {
		if e.callErr == nil {
			e.callErr = &market.ConfigError{Field: "contracts." + string(c), Reason: "no contract specification"}
		}
		return
	}
	e.targets[c] = target
	if i, ok := e.reqIndex[c]; ok {
		e.requests[i].Target = target
		return
	}
	e.reqIndex[c] = len(e.requests)
	e.requests = append(e.requests, strategy.TargetCall{Contract: c, Target: target})
}

func (e *Engine) Target(c market.Contract) int64 {
	v, _ := e.targets.Get(c)
	return v
}

func (e *Engine) Pos(c market.Contract) int64 { return e.ledger.Get(c).Net() }

func (e *Engine) Size(c market.Contract) float64 { return e.specs[c].Multiplier }

func (e *Engine) PriceTick(c market.Contract) float64 { return e.specs[c].PriceTick }

func (e *Engine) EngineType() strategy.EngineType { return strategy.EngineBacktest }

func (e *Engine) Logf(format string, args ...any) {
	e.log.Printf("%s: %s", e.name, fmt.Sprintf(format, args...))
}
