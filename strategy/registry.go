package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rustyeddy/portfolio/market"
)

// Factory builds a strategy for the given contracts.
type Factory func(contracts []market.Contract, params Params) (Strategy, error)

var (
	regMu    sync.RWMutex
	registry = make(map[string]Factory)
)

func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

// New builds the strategy registered as name.
func New(name string, contracts []market.Contract, params Params) (Strategy, error) {
	regMu.RLock()
	f, ok := registry[name]
	regMu.RUnlock()
	if !ok {
		return nil, &market.ConfigError{Field: "strategy.name", Reason: fmt.Sprintf("unknown strategy %q (have %v)", name, Names())}
	}
	if len(contracts) == 0 {
		return nil, &market.ConfigError{Field: "strategy.contracts", Reason: "is required"}
	}
	return f(contracts, params)
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register("noop", func(cs []market.Contract, _ Params) (Strategy, error) {
		return &Noop{Symbols: cs}, nil
	})
	Register("open_once", func(cs []market.Contract, p Params) (Strategy, error) {
		return NewOpenOnce(cs, p.Int64("size", 1))
	})
	Register("ema_cross", NewEMACross)
	Register("pair", NewPair)
	Register("boll_channel", NewBollChannel)
}
