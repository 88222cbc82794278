package position

import (
	"strings"

	"github.com/rustyeddy/portfolio/market"
)

// Policy says how closing orders choose between today and yesterday
// inventory. There is no default: the zero value is invalid.
type Policy string

const (
	// PolicyNet is for markets without a today/yesterday split. Closes are
	// sent as plain "close" orders.
	PolicyNet Policy = "net"
	// PolicyTodayFirst closes today's lots before yesterday's.
	PolicyTodayFirst Policy = "today_first"
	// PolicyYesterdayFirst closes yesterday's lots before today's.
	PolicyYesterdayFirst Policy = "yesterday_first"
)

func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

func (p Policy) Validate() error {
	switch p {
	case PolicyNet, PolicyTodayFirst, PolicyYesterdayFirst:
		return nil
	case "":
		return &market.ConfigError{Field: "policy", Reason: "is required"}
	}
	return &market.ConfigError{Field: "policy", Reason: "unknown value " + string(p) + " (want net, today_first or yesterday_first)"}
}

func (p Policy) String() string { return string(p) }
