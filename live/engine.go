// Package live drives portfolio strategies against a broker gateway. It owns
// one ledger per strategy, converts targets into orders and keeps the ledger
// in step with fills.
package live

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/rustyeddy/portfolio/broker"
	"github.com/rustyeddy/portfolio/internal/id"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/offset"
	"github.com/rustyeddy/portfolio/position"
	"github.com/rustyeddy/portfolio/risk"
	"github.com/rustyeddy/portfolio/store"
	"github.com/rustyeddy/portfolio/strategy"
)

var (
	ErrUnknownStrategy = errors.New("live: unknown strategy")
	ErrDuplicate       = errors.New("live: strategy already added")
	ErrNotInited       = errors.New("live: strategy not initialised")
	ErrTrading         = errors.New("live: strategy is trading")
)

type Options struct {
	Policy  position.Policy
	Specs   market.SpecProvider
	Gateway broker.Gateway
	// Store persists each strategy's ledger and targets. Optional.
	Store store.Store
	// Risk blocks target changes that break these limits.
	Risk risk.Limits
	// OrdersPerSecond throttles SendOrder and CancelOrder. Zero disables.
	OrdersPerSecond float64
	OrderBurst      int
	Logger          *log.Logger
	IDs             *id.Generator
}

// Engine implements broker.Handler. One mutex guards every ledger and the
// order routing tables; gateway and limiter calls happen without it.
type Engine struct {
	opts    Options
	conv    offset.Converter
	log     *log.Logger
	limiter *rate.Limiter
	ids     *id.Generator

	mu      sync.Mutex
	runners map[string]*runner
	owners  map[string]string
	seen    map[string]struct{}
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Gateway == nil {
		return nil, &market.ConfigError{Field: "live.gateway", Reason: "is required"}
	}
	if opts.Specs == nil {
		return nil, &market.ConfigError{Field: "contracts", Reason: "is required"}
	}
	conv, err := offset.New(opts.Policy)
	if err != nil {
		return nil, err
	}
	if err := opts.Risk.Validate(); err != nil {
		return nil, err
	}
	if opts.OrdersPerSecond < 0 {
		return nil, &market.ConfigError{Field: "live.orders_per_second", Reason: "must not be negative"}
	}

	e := &Engine{
		opts:    opts,
		conv:    conv,
		log:     opts.Logger,
		limiter: rate.NewLimiter(rate.Inf, 0),
		ids:     opts.IDs,
		runners: make(map[string]*runner),
		owners:  make(map[string]string),
		seen:    make(map[string]struct{}),
	}
	if e.log == nil {
		e.log = log.Default()
	}
	if opts.OrdersPerSecond > 0 {
		burst := opts.OrderBurst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(opts.OrdersPerSecond), burst)
	}
	if e.ids == nil {
		e.ids = id.NewGenerator(0, nil)
	}
	return e, nil
}

func (e *Engine) AddStrategy(s strategy.Strategy) error {
	if s == nil {
		return &market.ConfigError{Field: "strategy", Reason: "is required"}
	}
	name := s.Name()
	cs := s.Contracts()
	if len(cs) == 0 {
		return &market.ConfigError{Field: "strategy.contracts", Reason: "is required"}
	}
	specs := make(map[market.Contract]market.Spec, len(cs))
	for _, c := range cs {
		spec, err := e.opts.Specs.Spec(c)
		if err != nil {
			return err
		}
		specs[c] = spec
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.runners[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	e.runners[name] = newRunner(e, s, specs)
	return nil
}

// InitStrategy restores the strategy's last snapshot and runs its OnInit hook.
func (e *Engine) InitStrategy(ctx context.Context, name string) error {
	var (
		snap position.Snapshot
		err  error
	)
	if e.opts.Store != nil {
		snap, err = e.opts.Store.LoadSnapshot(ctx, name)
		if err != nil {
			return fmt.Errorf("live: init %s: %w", name, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.runnerLocked(name)
	if err != nil {
		return err
	}
	if r.inited {
		return nil
	}
	if err := r.ledger.Restore(snap); err != nil {
		return fmt.Errorf("live: init %s: %w", name, err)
	}
	r.targets = snap.Targets.Clone()
	if r.targets == nil {
		r.targets = position.Targets{}
	}
	if in, ok := r.strat.(strategy.Initializer); ok {
		if err := in.OnInit(ctx, r); err != nil {
			return fmt.Errorf("live: init %s: %w", name, err)
		}
	}
	r.inited = true
	e.log.Printf("%s: initialised with %d positions", name, r.ledger.Len())
	return nil
}

func (e *Engine) StartStrategy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.runnerLocked(name)
	if err != nil {
		return err
	}
	if !r.inited {
		return fmt.Errorf("%w: %q", ErrNotInited, name)
	}
	r.trading = true
	e.log.Printf("%s: started", name)
	return nil
}

// StopStrategy runs OnStop, cancels the strategy's active orders and saves
// its snapshot. Stopping a strategy that is not trading only saves.
func (e *Engine) StopStrategy(ctx context.Context, name string) error {
	e.mu.Lock()
	r, err := e.runnerLocked(name)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	var errs []error
	if r.trading {
		if st, ok := r.strat.(strategy.Stopper); ok {
			if err := st.OnStop(ctx, r); err != nil {
				errs = append(errs, fmt.Errorf("live: stop %s: %w", name, err))
			}
		}
		r.trading = false
		e.log.Printf("%s: stopped", name)
	}
	cancels := r.activeOrders()
	e.mu.Unlock()

	errs = append(errs, e.cancel(ctx, cancels))
	errs = append(errs, e.save(ctx, name))
	return errors.Join(errs...)
}

// EditStrategy changes the settings of a strategy that is not trading.
// The strategy must implement strategy.Editor.
func (e *Engine) EditStrategy(name string, p strategy.Params) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.runnerLocked(name)
	if err != nil {
		return err
	}
	if r.trading {
		return fmt.Errorf("%w: %q", ErrTrading, name)
	}
	ed, ok := r.strat.(strategy.Editor)
	if !ok {
		return &market.ConfigError{Field: "strategy.params", Reason: fmt.Sprintf("strategy %s has no editable settings", name)}
	}
	if err := ed.UpdateParams(p); err != nil {
		return fmt.Errorf("live: edit %s: %w", name, err)
	}
	e.log.Printf("%s: settings updated: %s", name, p)
	return nil
}

func (e *Engine) RemoveStrategy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.runnerLocked(name)
	if err != nil {
		return err
	}
	if r.trading {
		return fmt.Errorf("%w: %q", ErrTrading, name)
	}
	delete(e.runners, name)
	return nil
}

// Strategies lists strategy names in order.
func (e *Engine) Strategies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.runners))
	for n := range e.runners {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) Trading(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runners[name]
	return ok && r.trading
}

// Snapshot copies a strategy's ledger and targets.
func (e *Engine) Snapshot(name string) (position.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.runnerLocked(name)
	if err != nil {
		return position.Snapshot{}, err
	}
	return r.snapshot(), nil
}

func (e *Engine) Position(name string, c market.Contract) (position.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.runnerLocked(name)
	if err != nil {
		return position.Entry{}, err
	}
	return r.ledger.Get(c), nil
}

// ActiveOrders lists the order IDs a strategy still has working.
func (e *Engine) ActiveOrders(name string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.runnerLocked(name)
	if err != nil {
		return nil, err
	}
	return r.activeOrders(), nil
}

// OnBars delivers a slice to every trading strategy that holds one of its
// contracts, then routes the resulting orders. A strategy whose callback
// fails is stopped; the others carry on.
func (e *Engine) OnBars(ctx context.Context, sl strategy.Slice) error {
	var work []routing

	e.mu.Lock()
	for _, name := range e.sortedNamesLocked() {
		r := e.runners[name]
		if !r.trading {
			continue
		}
		sub, ok := r.filter(sl)
		if !ok {
			continue
		}
		w, err := r.step(ctx, sub)
		if err != nil {
			r.trading = false
			e.log.Printf("%s: stopped after error: %v", name, err)
			continue
		}
		work = append(work, w)
	}
	e.mu.Unlock()

	var errs []error
	for _, w := range work {
		errs = append(errs, e.route(ctx, w))
	}
	return errors.Join(errs...)
}

// Rollover ages today's inventory into yesterday's for every strategy at
// the end of a trading day and saves the results.
func (e *Engine) Rollover(ctx context.Context) error {
	e.mu.Lock()
	names := e.sortedNamesLocked()
	for _, n := range names {
		e.runners[n].ledger.Rollover()
	}
	e.mu.Unlock()

	var errs []error
	for _, n := range names {
		errs = append(errs, e.save(ctx, n))
	}
	return errors.Join(errs...)
}

// Close stops every strategy.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	for _, n := range e.Strategies() {
		errs = append(errs, e.StopStrategy(ctx, n))
	}
	return errors.Join(errs...)
}

// broker.Handler

// OnTrade applies a fill to the owning strategy's ledger. Fills seen before
// are ignored. A fill the ledger cannot absorb stops the strategy.
func (e *Engine) OnTrade(f broker.Fill) {
	e.mu.Lock()
	if _, dup := e.seen[f.TradeID]; dup {
		e.mu.Unlock()
		return
	}
	e.seen[f.TradeID] = struct{}{}

	name, ok := e.owners[f.OrderID]
	if !ok {
		e.mu.Unlock()
		e.log.Printf("live: fill %s for unknown order %s", f.TradeID, f.OrderID)
		return
	}
	r, ok := e.runners[name]
	if !ok {
		e.mu.Unlock()
		e.log.Printf("live: fill %s for removed strategy %s", f.TradeID, name)
		return
	}
	if _, err := r.ledger.Apply(f.Contract, f.Direction, f.Offset, f.Volume, e.opts.Policy); err != nil {
		r.trading = false
		e.log.Printf("%s: stopped, fill %s rejected by ledger: %v", name, f.TradeID, err)
	} else {
		e.log.Printf("%s: fill %s %s %s %s %d @ %g", name, f.TradeID, f.Contract, f.Direction, f.Offset, f.Volume, f.Price)
	}
	e.mu.Unlock()

	if err := e.save(context.Background(), name); err != nil {
		e.log.Printf("%s: %v", name, err)
	}
}

// OnOrder drops orders that can no longer trade from the active set.
func (e *Engine) OnOrder(u broker.OrderUpdate) {
	if u.Status.Active() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	name, ok := e.owners[u.OrderID]
	if !ok {
		return
	}
	if r, ok := e.runners[name]; ok {
		delete(r.active, u.OrderID)
	}
	if u.Status == broker.StatusRejected {
		e.log.Printf("%s: order %s rejected", name, u.OrderID)
	}
}

// internals

func (e *Engine) runnerLocked(name string) (*runner, error) {
	r, ok := e.runners[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return r, nil
}

func (e *Engine) sortedNamesLocked() []string {
	out := make([]string, 0, len(e.runners))
	for n := range e.runners {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// route cancels replaced orders and sends new ones outside the lock.
func (e *Engine) route(ctx context.Context, w routing) error {
	var errs []error
	errs = append(errs, e.cancel(ctx, w.cancels))
	for _, req := range w.orders {
		if err := e.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			e.forget(w.name, req.ID)
			continue
		}
		if err := e.opts.Gateway.SendOrder(ctx, req); err != nil {
			errs = append(errs, fmt.Errorf("live: %s send %s: %w", w.name, req, err))
			e.forget(w.name, req.ID)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) cancel(ctx context.Context, ids []string) error {
	var errs []error
	for _, oid := range ids {
		if err := e.limiter.Wait(ctx); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := e.opts.Gateway.CancelOrder(ctx, oid); err != nil {
			errs = append(errs, fmt.Errorf("live: cancel %s: %w", oid, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) forget(name, orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.owners, orderID)
	if r, ok := e.runners[name]; ok {
		delete(r.active, orderID)
	}
}

func (e *Engine) save(ctx context.Context, name string) error {
	if e.opts.Store == nil {
		return nil
	}
	e.mu.Lock()
	r, ok := e.runners[name]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	snap := r.snapshot()
	// saves are serialised under the lock so an older snapshot can never
	// overwrite a newer one
	err := e.opts.Store.SaveSnapshot(ctx, name, snap)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("live: save %s: %w", name, err)
	}
	return nil
}
