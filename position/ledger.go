package position

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/portfolio/market"
)

// Ledger is the inventory owned by one backtest run or one live strategy.
// It is not safe for concurrent use; owners serialize access.
type Ledger struct {
	entries map[market.Contract]Entry
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[market.Contract]Entry)}
}

// Get returns the entry for c. Unknown contracts are all-zero.
func (l *Ledger) Get(c market.Contract) Entry {
	return l.entries[c]
}

func (l *Ledger) Set(c market.Contract, e Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("position: %s: %w", c, err)
	}
	if e.IsZero() {
		delete(l.entries, c)
		return nil
	}
	l.entries[c] = e
	return nil
}

// Apply updates c's entry with a fill. On error the ledger is unchanged and
// any InventoryError carries the contract.
func (l *Ledger) Apply(c market.Contract, dir market.Direction, off market.Offset, vol int64, policy Policy) (Entry, error) {
	next, err := ApplyFill(l.Get(c), dir, off, vol, policy)
	if err != nil {
		var inv *InventoryError
		if errors.As(err, &inv) {
			inv.Contract = c
			return l.Get(c), inv
		}
		return l.Get(c), fmt.Errorf("%s: %w", c, err)
	}
	if next.IsZero() {
		delete(l.entries, c)
	} else {
		l.entries[c] = next
	}
	return next, nil
}

// Contracts returns every contract with a non-zero entry, sorted.
func (l *Ledger) Contracts() []market.Contract {
	out := make([]market.Contract, 0, len(l.entries))
	for c := range l.entries {
		out = append(out, c)
	}
	return market.SortContracts(out)
}

// Rollover moves every today bucket into yesterday.
func (l *Ledger) Rollover() {
	for c, e := range l.entries {
		l.entries[c] = Rollover(e)
	}
}

func (l *Ledger) Len() int { return len(l.entries) }

// Targets maps a contract to its desired signed net position. A missing
// contract means no change was requested, which is not the same as zero.
type Targets map[market.Contract]int64

func (t Targets) Get(c market.Contract) (int64, bool) {
	v, ok := t[c]
	return v, ok
}

func (t Targets) Contracts() []market.Contract {
	out := make([]market.Contract, 0, len(t))
	for c := range t {
		out = append(out, c)
	}
	return market.SortContracts(out)
}

func (t Targets) Clone() Targets {
	out := make(Targets, len(t))
	for c, v := range t {
		out[c] = v
	}
	return out
}
