package market

import (
	"fmt"
	"sort"
	"strings"
)

// Contract identifies a tradable instrument as SYMBOL.EXCHANGE, e.g.
// "rb2410.SHFE" or "IF2409.CFFEX".
type Contract string

func NewContract(symbol, exchange string) Contract {
	return Contract(strings.TrimSpace(symbol) + "." + strings.ToUpper(strings.TrimSpace(exchange)))
}

// ParseContract validates s and returns it as a Contract.
func ParseContract(s string) (Contract, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return "", fmt.Errorf("contract %q: want SYMBOL.EXCHANGE", s)
	}
	return Contract(s), nil
}

func (c Contract) Symbol() string {
	s := string(c)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

func (c Contract) Exchange() string {
	s := string(c)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

func (c Contract) String() string { return string(c) }

// SortContracts sorts in place and returns cs for chaining.
func SortContracts(cs []Contract) []Contract {
	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
	return cs
}
