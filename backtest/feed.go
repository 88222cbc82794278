package backtest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/strategy"
)

// DataProvider loads the bars of one contract in a single call. Returning
// no bars and no error means the range has no data.
type DataProvider interface {
	LoadBars(ctx context.Context, c market.Contract, start, end time.Time, interval market.Interval) ([]market.Bar, error)
}

// MemoryProvider serves bars held in memory.
type MemoryProvider map[market.Contract][]market.Bar

func (m MemoryProvider) LoadBars(ctx context.Context, c market.Contract, start, end time.Time, _ market.Interval) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []market.Bar
	for _, b := range m[c] {
		if inRange(b.Time, start, end) {
			b.Contract = c
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// CSVProvider reads <Dir>/<contract>.csv files with rows
//
//	time,open,high,low,close,volume
//
// where time is RFC3339, "2006-01-02 15:04:05", "2006-01-02" or unix
// seconds. A header row is allowed. A missing file means no data. The file
// is taken to already hold bars of the requested interval.
type CSVProvider struct {
	Dir string
}

func (p CSVProvider) Path(c market.Contract) string {
	return filepath.Join(p.Dir, string(c)+".csv")
}

func (p CSVProvider) LoadBars(ctx context.Context, c market.Contract, start, end time.Time, _ market.Interval) ([]market.Bar, error) {
	f, err := os.Open(p.Path(c))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []market.Bar
	for line := 1; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Path(c), err)
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		b, err := parseBarRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", p.Path(c), line, err)
		}
		if !inRange(b.Time, start, end) {
			continue
		}
		b.Contract = c
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func parseBarRow(row []string) (market.Bar, error) {
	if len(row) < 5 {
		return market.Bar{}, fmt.Errorf("want time,open,high,low,close[,volume], got %d fields", len(row))
	}
	t, err := parseTime(strings.TrimSpace(row[0]))
	if err != nil {
		return market.Bar{}, err
	}
	var vals [5]float64
	for i := 1; i < len(row) && i <= 5; i++ {
		s := strings.TrimSpace(row[i])
		if s == "" && i == 5 {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad number %q: %w", row[i], err)
		}
		vals[i-1] = v
	}
	return market.Bar{Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// inRange reports start <= t <= end with zero bounds open.
func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}

// LoadTimeline loads every contract with one call each and merges the bars
// into time-ordered slices. Contracts without any bars are reported as gaps
// and left out.
func LoadTimeline(ctx context.Context, data DataProvider, contracts []market.Contract, start, end time.Time, iv market.Interval, fillForward bool) ([]strategy.Slice, []*DataGapError, error) {
	series := make(map[market.Contract][]market.Bar, len(contracts))
	var gaps []*DataGapError
	for _, c := range contracts {
		bars, err := data.LoadBars(ctx, c, start, end, iv)
		if err != nil {
			return nil, gaps, fmt.Errorf("load %s: %w", c, err)
		}
		if len(bars) == 0 {
			gaps = append(gaps, &DataGapError{Contract: c, Start: start, End: end})
			continue
		}
		series[c] = bars
	}
	return buildTimeline(contracts, series, fillForward), gaps, nil
}

// buildTimeline merges per-contract bar series into one slice per distinct
// timestamp. Duplicate timestamps within a contract keep the first bar.
// With fillForward, a contract that has started trading gets a flat bar at
// every later timestamp it is missing from.
func buildTimeline(contracts []market.Contract, series map[market.Contract][]market.Bar, fillForward bool) []strategy.Slice {
	byTime := make(map[int64]map[market.Contract]market.Bar)
	var times []time.Time
	for _, c := range contracts {
		for _, b := range series[c] {
			key := b.Time.UnixNano()
			step, ok := byTime[key]
			if !ok {
				step = make(map[market.Contract]market.Bar)
				byTime[key] = step
				times = append(times, b.Time)
			}
			if _, dup := step[c]; dup {
				continue
			}
			step[c] = b
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	out := make([]strategy.Slice, 0, len(times))
	last := make(map[market.Contract]market.Bar)
	for _, t := range times {
		bars := byTime[t.UnixNano()]
		s := strategy.Slice{Time: t, Bars: make(map[market.Contract]market.Bar, len(contracts))}
		for _, c := range contracts {
			b, ok := bars[c]
			if !ok {
				prev, seen := last[c]
				if !fillForward || !seen {
					continue
				}
				b = prev.Flat(t)
			}
			last[c] = b
			s.Contracts = append(s.Contracts, c)
			s.Bars[c] = b
		}
		out = append(out, s)
	}
	return out
}
