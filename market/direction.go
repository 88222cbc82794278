package market

import (
	"fmt"
	"strings"
)

// Direction is the side of an order or trade.
type Direction int8

const (
	Long  Direction = +1
	Short Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return fmt.Sprintf("Direction(%d)", int8(d))
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction { return -d }

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Offset tags an order as opening new exposure or closing existing lots.
// CloseToday and CloseYesterday are only meaningful on markets that keep
// separate today/prior-day inventory.
type Offset int8

const (
	Open Offset = iota
	Close
	CloseToday
	CloseYesterday
)

func (o Offset) String() string {
	switch o {
	case Open:
		return "open"
	case Close:
		return "close"
	case CloseToday:
		return "close_today"
	case CloseYesterday:
		return "close_yesterday"
	}
	return fmt.Sprintf("Offset(%d)", int8(o))
}

// IsClose reports whether o reduces existing inventory.
func (o Offset) IsClose() bool { return o != Open }

func ParseOffset(s string) (Offset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return Open, nil
	case "close":
		return Close, nil
	case "close_today", "closetoday":
		return CloseToday, nil
	case "close_yesterday", "closeyesterday":
		return CloseYesterday, nil
	}
	return 0, fmt.Errorf("unknown offset %q", s)
}

func (o Offset) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Offset) UnmarshalText(b []byte) error {
	v, err := ParseOffset(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
