// Package position keeps per-contract long/short inventory split into
// today and prior-day (yesterday) buckets, and applies fills to it.
package position

import "fmt"

// Entry is the inventory of one contract. All buckets are non-negative.
type Entry struct {
	LongToday      int64 `json:"long_today"`
	LongYesterday  int64 `json:"long_yesterday"`
	ShortToday     int64 `json:"short_today"`
	ShortYesterday int64 `json:"short_yesterday"`
}

func (e Entry) Long() int64  { return e.LongToday + e.LongYesterday }
func (e Entry) Short() int64 { return e.ShortToday + e.ShortYesterday }

// Net is the signed position: long minus short.
func (e Entry) Net() int64 { return e.Long() - e.Short() }

func (e Entry) IsZero() bool { return e == Entry{} }

func (e Entry) Validate() error {
	switch {
	case e.LongToday < 0:
		return fmt.Errorf("long_today is negative: %d", e.LongToday)
	case e.LongYesterday < 0:
		return fmt.Errorf("long_yesterday is negative: %d", e.LongYesterday)
	case e.ShortToday < 0:
		return fmt.Errorf("short_today is negative: %d", e.ShortToday)
	case e.ShortYesterday < 0:
		return fmt.Errorf("short_yesterday is negative: %d", e.ShortYesterday)
	}
	return nil
}

func (e Entry) String() string {
	return fmt.Sprintf("net=%d long=%d/%d short=%d/%d",
		e.Net(), e.LongToday, e.LongYesterday, e.ShortToday, e.ShortYesterday)
}

// Rollover moves today's buckets into yesterday's. Call it at the end of a
// trading day.
func Rollover(e Entry) Entry {
	return Entry{
		LongYesterday:  e.LongYesterday + e.LongToday,
		ShortYesterday: e.ShortYesterday + e.ShortToday,
	}
}
