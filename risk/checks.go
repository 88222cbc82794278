package risk

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/portfolio/market"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	Notional float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

func (d Decision) String() string {
	if d.Allowed {
		return "allowed"
	}
	parts := make([]string, len(d.Violations))
	for i, v := range d.Violations {
		parts[i] = v.Code + ": " + v.Msg
	}
	return strings.Join(parts, "; ")
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// Evaluate checks an intent against l. Moves that shrink exposure are
// always allowed so a strategy can get back inside its limits.
func Evaluate(l Limits, in Intent) Decision {
	d := Decision{Allowed: true}
	d.Notional = market.Turnover(in.Price, abs(in.Target), in.Spec.Multiplier)

	if abs(in.Target) <= abs(in.Current.Net()) && sameSideOrFlat(in.Current.Net(), in.Target) {
		return d
	}

	if l.MaxPosition > 0 && abs(in.Target) > l.MaxPosition {
		d.add("POSITION_LIMIT",
			fmt.Sprintf("%s target %d exceeds max position %d", in.Contract, in.Target, l.MaxPosition))
	}
	if l.MaxOrderVolume > 0 {
		for _, o := range in.Orders {
			if o.Volume > l.MaxOrderVolume {
				d.add("ORDER_TOO_LARGE",
					fmt.Sprintf("%s order volume %d exceeds max %d", in.Contract, o.Volume, l.MaxOrderVolume))
				break
			}
		}
	}
	if l.MaxNotional > 0 && d.Notional > l.MaxNotional {
		d.add("NOTIONAL_LIMIT",
			fmt.Sprintf("%s notional %.2f exceeds max %.2f", in.Contract, d.Notional, l.MaxNotional))
	}
	return d
}

func sameSideOrFlat(cur, target int64) bool {
	return target == 0 || (cur > 0) == (target > 0)
}
