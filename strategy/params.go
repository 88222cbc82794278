package strategy

import (
	"fmt"
	"sort"
	"strings"
)

// Params are the numeric settings of a strategy, keyed by name.
type Params map[string]float64

func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

func (p Params) Int64(key string, def int64) int64 {
	if v, ok := p[key]; ok {
		return int64(v)
	}
	return def
}

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// merge returns a copy of p with every key of o set over it.
func (p Params) merge(o Params) Params {
	out := p.Clone()
	for k, v := range o {
		out[k] = v
	}
	return out
}

// String renders the params as key=value pairs in key order.
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}
