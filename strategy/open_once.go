package strategy

import (
	"context"
	"fmt"

	"github.com/rustyeddy/portfolio/market"
)

// OpenOnce sets a target of Size on every contract the first time it sees
// a bar for it, then holds. It's meant as a wiring test.
type OpenOnce struct {
	Symbols []market.Contract
	Size    int64

	opened map[market.Contract]bool
}

func NewOpenOnce(cs []market.Contract, size int64) (*OpenOnce, error) {
	if size == 0 {
		return nil, fmt.Errorf("open_once: size must be non-zero")
	}
	return &OpenOnce{Symbols: cs, Size: size, opened: make(map[market.Contract]bool)}, nil
}

func (s *OpenOnce) Name() string                 { return "open_once" }
func (s *OpenOnce) Contracts() []market.Contract { return s.Symbols }

func (s *OpenOnce) OnBars(_ context.Context, e Engine, sl Slice) error {
	for _, c := range sl.Contracts {
		if s.opened[c] {
			continue
		}
		e.SetTarget(c, s.Size)
		s.opened[c] = true
	}
	return nil
}
