package backtest

import (
	"fmt"
	"time"

	"github.com/rustyeddy/portfolio/market"
)

// State is where a run is in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateRunning
	StateFinished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// DataGapError reports a contract with no bars in the requested range. The
// run continues without it.
type DataGapError struct {
	Contract market.Contract
	Start    time.Time
	End      time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("backtest: no data for %s between %s and %s",
		e.Contract, fmtTime(e.Start), fmtTime(e.End))
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// BurstEvent records orders dropped for one contract because a step emitted
// more than Config.MaxOrdersPerStep.
type BurstEvent struct {
	Time     time.Time
	Contract market.Contract
	Rejected int
}

func (b BurstEvent) String() string {
	return fmt.Sprintf("%s %s: %d orders over the per-step limit", b.Time.Format(time.RFC3339), b.Contract, b.Rejected)
}

// AbortError stops a run. Partial holds everything produced before the
// abort.
type AbortError struct {
	State   State
	Step    int
	Cause   error
	Partial *Result
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("backtest: aborted while %s at step %d: %v", e.State, e.Step, e.Cause)
}

func (e *AbortError) Unwrap() error { return e.Cause }
