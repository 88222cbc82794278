package strategy

import (
	"context"

	"github.com/rustyeddy/portfolio/market"
)

// TargetCall is one SetTarget call.
type TargetCall struct {
	Contract market.Contract
	Target   int64
}

// Schedule replays fixed SetTarget calls by step number. Steps counts
// OnBars calls from zero. It is used to drive engines deterministically.
type Schedule struct {
	Label   string
	Symbols []market.Contract
	Steps   map[int][]TargetCall
	// FailAt makes OnBars return Err at that step when Err is set.
	FailAt int
	Err    error

	step int
}

func (s *Schedule) Name() string {
	if s.Label == "" {
		return "schedule"
	}
	return s.Label
}

func (s *Schedule) Contracts() []market.Contract { return s.Symbols }

func (s *Schedule) OnBars(_ context.Context, e Engine, _ Slice) error {
	step := s.step
	s.step++
	if s.Err != nil && step == s.FailAt {
		return s.Err
	}
	for _, call := range s.Steps[step] {
		e.SetTarget(call.Contract, call.Target)
	}
	return nil
}
