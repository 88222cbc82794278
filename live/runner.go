package live

import (
	"context"
	"fmt"
	"sort"

	"github.com/rustyeddy/portfolio/broker"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/position"
	"github.com/rustyeddy/portfolio/risk"
	"github.com/rustyeddy/portfolio/strategy"
)

// runner is one strategy with its own ledger. All fields are guarded by
// Engine.mu; it is also the strategy.Engine handed to the strategy.
type runner struct {
	eng     *Engine
	strat   strategy.Strategy
	name    string
	specs   map[market.Contract]market.Spec
	ledger  *position.Ledger
	targets position.Targets
	inited  bool
	trading bool

	// order ID -> contract, for orders that can still trade
	active map[string]market.Contract
	last   map[market.Contract]float64

	requests []strategy.TargetCall
	reqIndex map[market.Contract]int
	callErr  error
}

type routing struct {
	name    string
	cancels []string
	orders  []broker.OrderRequest
}

func newRunner(e *Engine, s strategy.Strategy, specs map[market.Contract]market.Spec) *runner {
	return &runner{
		eng:      e,
		strat:    s,
		name:     s.Name(),
		specs:    specs,
		ledger:   position.NewLedger(),
		targets:  position.Targets{},
		active:   make(map[string]market.Contract),
		last:     make(map[market.Contract]float64),
		reqIndex: make(map[market.Contract]int),
	}
}

// filter narrows sl to the runner's contracts, keeping declared order.
func (r *runner) filter(sl strategy.Slice) (strategy.Slice, bool) {
	sub := strategy.Slice{Time: sl.Time, Bars: make(map[market.Contract]market.Bar)}
	for _, c := range r.strat.Contracts() {
		if b, ok := sl.Bars[c]; ok {
			sub.Contracts = append(sub.Contracts, c)
			sub.Bars[c] = b
		}
	}
	return sub, sub.Len() > 0
}

// step runs OnBars and plans the orders for the targets it set.
func (r *runner) step(ctx context.Context, sl strategy.Slice) (routing, error) {
	for _, c := range sl.Contracts {
		r.last[c] = sl.Bars[c].Close
	}
	r.requests = r.requests[:0]
	clear(r.reqIndex)
	r.callErr = nil
	defer func() {
		r.requests = r.requests[:0]
		clear(r.reqIndex)
	}()

	if err := r.strat.OnBars(ctx, r, sl); err != nil {
		return routing{}, fmt.Errorf("strategy %s: %w", r.name, err)
	}
	if r.callErr != nil {
		return routing{}, r.callErr
	}
	return r.plan(), nil
}

// plan converts this step's targets into orders. Orders still working on a
// contract with a new target are cancelled. A target is recorded only once
// risk limits allow it.
func (r *runner) plan() routing {
	w := routing{name: r.name}
	for _, req := range r.requests {
		c := req.Contract
		orders := r.eng.conv.Convert(c, r.ledger.Get(c), req.Target, r.last[c])
		if lim := r.eng.opts.Risk; !lim.IsZero() {
			d := risk.Evaluate(lim, risk.Intent{
				Contract: c,
				Current:  r.ledger.Get(c),
				Target:   req.Target,
				Price:    r.last[c],
				Spec:     r.specs[c],
				Orders:   orders,
			})
			if !d.Allowed {
				r.eng.log.Printf("%s: target %s %d blocked: %s", r.name, c, req.Target, d)
				continue
			}
		}
		r.targets[c] = req.Target
		for _, oid := range r.activeOrders() {
			if r.active[oid] == c {
				w.cancels = append(w.cancels, oid)
			}
		}
		for k := range orders {
			orders[k].ID = r.eng.ids.New()
			orders[k].Price = r.orderPrice(c, orders[k].Direction)
			orders[k].Reference = r.name
			r.active[orders[k].ID] = c
			r.eng.owners[orders[k].ID] = r.name
		}
		w.orders = append(w.orders, orders...)
	}
	for _, oid := range w.cancels {
		delete(r.active, oid)
	}
	return w
}

func (r *runner) orderPrice(c market.Contract, d market.Direction) float64 {
	ref := r.last[c]
	tick := r.specs[c].PriceTick
	if p, ok := r.strat.(strategy.Pricer); ok {
		return market.RoundToTick(p.OrderPrice(c, d, ref, tick), tick)
	}
	return market.RoundToTick(ref, tick)
}

func (r *runner) activeOrders() []string {
	out := make([]string, 0, len(r.active))
	for oid := range r.active {
		out = append(out, oid)
	}
	sort.Strings(out)
	return out
}

func (r *runner) snapshot() position.Snapshot {
	s := r.ledger.Snapshot()
	s.Targets = r.targets.Clone()
	return s
}

// strategy.Engine

func (r *runner) SetTarget(c market.Contract, target int64) {
	if _, ok := r.specs[c]; !ok {
		if r.callErr == nil {
			r.callErr = &market.ConfigError{Field: "contracts." + string(c), Reason: "not declared by strategy " + r.name}
		}
		return
	}
	if i, ok := r.reqIndex[c]; ok {
		r.requests[i].Target = target
		return
	}
	r.reqIndex[c] = len(r.requests)
	r.requests = append(r.requests, strategy.TargetCall{Contract: c, Target: target})
}

// Target returns the target requested this step, else the last one sent.
func (r *runner) Target(c market.Contract) int64 {
	if i, ok := r.reqIndex[c]; ok {
		return r.requests[i].Target
	}
	v, _ := r.targets.Get(c)
	return v
}

func (r *runner) Pos(c market.Contract) int64 { return r.ledger.Get(c).Net() }

func (r *runner) Size(c market.Contract) float64 { return r.specs[c].Multiplier }

func (r *runner) PriceTick(c market.Contract) float64 { return r.specs[c].PriceTick }

func (r *runner) EngineType() strategy.EngineType { return strategy.EngineLive }

func (r *runner) Logf(format string, args ...any) {
	r.eng.log.Printf("%s: %s", r.name, fmt.Sprintf(format, args...))
}
