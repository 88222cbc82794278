package market

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a bar period.
type Interval time.Duration

const (
	Minute   = Interval(time.Minute)
	Minute5  = Interval(5 * time.Minute)
	Minute15 = Interval(15 * time.Minute)
	Minute30 = Interval(30 * time.Minute)
	Hour     = Interval(time.Hour)
	Hour4    = Interval(4 * time.Hour)
	Daily    = Interval(24 * time.Hour)
	Weekly   = Interval(7 * 24 * time.Hour)
)

func (i Interval) Duration() time.Duration { return time.Duration(i) }

func (i Interval) String() string {
	sec := int64(time.Duration(i) / time.Second)
	switch {
	case sec <= 0:
		return ""
	case sec < 3600 && sec%60 == 0:
		return fmt.Sprintf("M%d", sec/60)
	case sec < 86400 && sec%3600 == 0:
		return fmt.Sprintf("H%d", sec/3600)
	case sec == 604800:
		return "W1"
	case sec%86400 == 0:
		return fmt.Sprintf("D%d", sec/86400)
	}
	return time.Duration(i).String()
}

// ParseInterval accepts the M1/H1/D1 style names and anything
// time.ParseDuration understands.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M1", "1M":
		return Minute, nil
	case "M5":
		return Minute5, nil
	case "M15":
		return Minute15, nil
	case "M30":
		return Minute30, nil
	case "H1", "1H":
		return Hour, nil
	case "H4":
		return Hour4, nil
	case "D1", "1D", "D":
		return Daily, nil
	case "W1":
		return Weekly, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("unsupported interval %q", s)
	}
	return Interval(d), nil
}

func (i Interval) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *Interval) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*i = 0
		return nil
	}
	v, err := ParseInterval(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}
