package position

import (
	"encoding/json"
	"fmt"

	"github.com/rustyeddy/portfolio/market"
)

// Snapshot is the persisted form of a ledger plus its targets. Contracts
// missing from Positions restore as all-zero entries.
type Snapshot struct {
	Positions map[market.Contract]Entry `json:"positions"`
	Targets   Targets                   `json:"targets,omitempty"`
}

func (s Snapshot) IsEmpty() bool { return len(s.Positions) == 0 && len(s.Targets) == 0 }

// Snapshot copies the ledger's non-zero entries.
func (l *Ledger) Snapshot() Snapshot {
	pos := make(map[market.Contract]Entry, len(l.entries))
	for c, e := range l.entries {
		pos[c] = e
	}
	return Snapshot{Positions: pos}
}

// Restore replaces the ledger's contents with s.Positions.
func (l *Ledger) Restore(s Snapshot) error {
	next := make(map[market.Contract]Entry, len(s.Positions))
	for c, e := range s.Positions {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("position: restore %s: %w", c, err)
		}
		if !e.IsZero() {
			next[c] = e
		}
	}
	l.entries = next
	return nil
}

func (s Snapshot) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func UnmarshalSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if len(b) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, fmt.Errorf("position: decode snapshot: %w", err)
	}
	return s, nil
}
