// Package optimize runs a backtest once per parameter combination and ranks
// the results.
package optimize

import (
	"fmt"
	"math"
	"sort"

	"github.com/rustyeddy/portfolio/strategy"
)

// Grid maps a parameter name to the values to try.
type Grid map[string][]float64

// AddRange adds start, start+step, ... up to and including end.
func (g Grid) AddRange(name string, start, end, step float64) error {
	switch {
	case name == "":
		return fmt.Errorf("optimize: parameter name is required")
	case step <= 0:
		return fmt.Errorf("optimize: %s: step must be positive", name)
	case end < start:
		return fmt.Errorf("optimize: %s: end %g before start %g", name, end, start)
	}
	n := int(math.Floor((end-start)/step+1e-9)) + 1
	vals := make([]float64, n)
	for i := range vals {
		// rounding keeps 0.1 steps from drifting
		vals[i] = math.Round((start+float64(i)*step)*1e9) / 1e9
	}
	g[name] = vals
	return nil
}

// Keys returns the parameter names in order.
func (g Grid) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size is the number of combinations Expand yields.
func (g Grid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, v := range g {
		n *= len(v)
	}
	return n
}

// Expand returns the cartesian product of the grid merged over base. The
// last key in name order varies fastest.
func (g Grid) Expand(base strategy.Params) []strategy.Params {
	keys := g.Keys()
	total := g.Size()
	if total == 0 {
		return []strategy.Params{base.Clone()}
	}

	out := make([]strategy.Params, 0, total)
	idx := make([]int, len(keys))
	for {
		p := base.Clone()
		for i, k := range keys {
			p[k] = g[k][idx[i]]
		}
		out = append(out, p)

		i := len(keys) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g[keys[i]]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}
