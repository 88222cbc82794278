package position

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rustyeddy/portfolio/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rb = market.Contract("rb2410.SHFE")

func TestEntryNet(t *testing.T) {
	t.Parallel()

	e := Entry{LongToday: 2, LongYesterday: 3, ShortToday: 1, ShortYesterday: 7}
	assert.Equal(t, int64(5), e.Long())
	assert.Equal(t, int64(8), e.Short())
	assert.Equal(t, int64(-3), e.Net())
	assert.NoError(t, e.Validate())
	assert.Error(t, Entry{ShortToday: -1}.Validate())
}

func TestApplyFill(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     Entry
		dir    market.Direction
		off    market.Offset
		vol    int64
		policy Policy
		want   Entry
	}{
		{"open long", Entry{}, market.Long, market.Open, 3, PolicyNet, Entry{LongToday: 3}},
		{"open short", Entry{ShortYesterday: 1}, market.Short, market.Open, 2, PolicyNet, Entry{ShortToday: 2, ShortYesterday: 1}},
		{"long close today reduces short", Entry{ShortToday: 5}, market.Long, market.CloseToday, 3, PolicyTodayFirst, Entry{ShortToday: 2}},
		{"short close yesterday reduces long", Entry{LongYesterday: 4, LongToday: 1}, market.Short, market.CloseYesterday, 4, PolicyYesterdayFirst, Entry{LongToday: 1}},
		{"net close takes yesterday first", Entry{LongToday: 2, LongYesterday: 2}, market.Short, market.Close, 3, PolicyNet, Entry{LongToday: 1}},
		{"yesterday first close", Entry{ShortToday: 2, ShortYesterday: 1}, market.Long, market.Close, 2, PolicyYesterdayFirst, Entry{ShortToday: 1}},
		{"today first close", Entry{ShortToday: 2, ShortYesterday: 1}, market.Long, market.Close, 2, PolicyTodayFirst, Entry{ShortYesterday: 1}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ApplyFill(tt.in, tt.dir, tt.off, tt.vol, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyFillInsufficient(t *testing.T) {
	t.Parallel()

	_, err := ApplyFill(Entry{ShortToday: 1}, market.Long, market.CloseToday, 2, PolicyTodayFirst)
	var inv *InventoryError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "short_today", inv.Bucket)
	assert.Equal(t, int64(1), inv.Have)
	assert.Equal(t, int64(2), inv.Want)

	_, err = ApplyFill(Entry{LongToday: 1, LongYesterday: 1}, market.Short, market.Close, 3, PolicyNet)
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "long", inv.Bucket)

	_, err = ApplyFill(Entry{}, market.Long, market.Open, 0, PolicyNet)
	assert.Error(t, err)
}

func TestLedgerApply(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	assert.Equal(t, Entry{}, l.Get(rb))

	e, err := l.Apply(rb, market.Long, market.Open, 2, PolicyNet)
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Net())

	_, err = l.Apply(rb, market.Short, market.CloseYesterday, 1, PolicyYesterdayFirst)
	var inv *InventoryError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, rb, inv.Contract)
	assert.Contains(t, err.Error(), "rb2410.SHFE")
	assert.Equal(t, Entry{LongToday: 2}, l.Get(rb), "failed fill must not change the ledger")

	_, err = l.Apply(rb, market.Short, market.Close, 2, PolicyNet)
	require.NoError(t, err)
	assert.Empty(t, l.Contracts())
}

func TestLedgerRollover(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	require.NoError(t, l.Set("b.X", Entry{LongToday: 2, LongYesterday: 1}))
	require.NoError(t, l.Set("a.X", Entry{ShortToday: 4}))
	l.Rollover()

	assert.Equal(t, Entry{LongYesterday: 3}, l.Get("b.X"))
	assert.Equal(t, Entry{ShortYesterday: 4}, l.Get("a.X"))
	assert.Equal(t, []market.Contract{"a.X", "b.X"}, l.Contracts())
}

func TestSnapshotRestoreDefaultsToZero(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	require.NoError(t, l.Set(rb, Entry{LongToday: 1, ShortYesterday: 2}))
	snap := l.Snapshot()
	snap.Targets = Targets{rb: 5}

	b, err := snap.Marshal()
	require.NoError(t, err)

	back, err := UnmarshalSnapshot(b)
	require.NoError(t, err)

	r := NewLedger()
	require.NoError(t, r.Set("old.X", Entry{LongToday: 9}))
	require.NoError(t, r.Restore(back))

	assert.Equal(t, Entry{LongToday: 1, ShortYesterday: 2}, r.Get(rb))
	assert.Equal(t, Entry{}, r.Get("old.X"))
	assert.Equal(t, Entry{}, r.Get("never.seen"))

	target, ok := back.Targets.Get(rb)
	assert.True(t, ok)
	assert.Equal(t, int64(5), target)
	_, ok = back.Targets.Get("never.seen")
	assert.False(t, ok)
}

func TestSnapshotJSONShape(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"positions":{"IF2409.CFFEX":{"long_yesterday":3}}}`)
	s, err := UnmarshalSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, Entry{LongYesterday: 3}, s.Positions["IF2409.CFFEX"])

	var generic map[string]map[string]map[string]int64
	b, err := json.Marshal(s)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &generic))
	assert.Equal(t, int64(0), generic["positions"]["IF2409.CFFEX"]["short_today"])

	empty, err := UnmarshalSnapshot(nil)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy("Today_First")
	require.NoError(t, err)
	assert.Equal(t, PolicyTodayFirst, p)

	_, err = ParsePolicy("")
	var cfgErr *market.ConfigError
	require.True(t, errors.As(err, &cfgErr))

	_, err = ParsePolicy("fifo")
	assert.Error(t, err)
}
