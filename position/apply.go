package position

import (
	"fmt"

	"github.com/rustyeddy/portfolio/market"
)

// bucket is a pointer into one of an Entry's four counters.
type bucket struct {
	name string
	n    *int64
}

// ApplyFill returns e after a fill of vol units. Open fills add to the
// direction's today bucket. Close fills take from the opposite side: a long
// close reduces short inventory. A plain Close drains buckets in policy
// order; PolicyNet and PolicyYesterdayFirst take yesterday's lots first.
func ApplyFill(e Entry, dir market.Direction, off market.Offset, vol int64, policy Policy) (Entry, error) {
	if vol <= 0 {
		return e, fmt.Errorf("position: fill volume must be positive, got %d", vol)
	}
	if dir != market.Long && dir != market.Short {
		return e, fmt.Errorf("position: unknown direction %v", dir)
	}

	if off == market.Open {
		if dir == market.Long {
			e.LongToday += vol
		} else {
			e.ShortToday += vol
		}
		return e, nil
	}

	today, yesterday := closable(&e, dir)

	switch off {
	case market.CloseToday:
		return e, take(today, vol)
	case market.CloseYesterday:
		return e, take(yesterday, vol)
	case market.Close:
		have := *today.n + *yesterday.n
		if have < vol {
			side := "long"
			if dir == market.Long {
				side = "short"
			}
			return e, &InventoryError{Bucket: side, Have: have, Want: vol}
		}
		first, second := yesterday, today
		if policy == PolicyTodayFirst {
			first, second = today, yesterday
		}
		n := min(vol, *first.n)
		*first.n -= n
		*second.n -= vol - n
		return e, nil
	}
	return e, fmt.Errorf("position: unknown offset %v", off)
}

// closable returns the today and yesterday buckets a close order in
// direction dir draws from.
func closable(e *Entry, dir market.Direction) (today, yesterday bucket) {
	if dir == market.Long {
		return bucket{"short_today", &e.ShortToday}, bucket{"short_yesterday", &e.ShortYesterday}
	}
	return bucket{"long_today", &e.LongToday}, bucket{"long_yesterday", &e.LongYesterday}
}

func take(b bucket, vol int64) error {
	if *b.n < vol {
		return &InventoryError{Bucket: b.name, Have: *b.n, Want: vol}
	}
	*b.n -= vol
	return nil
}
