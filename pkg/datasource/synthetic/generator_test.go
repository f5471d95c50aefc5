package synthetic

import (
	"testing"
	"time"

	"github.com/peter-kozarec/simex/pkg/datasource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func params(seed uint64) Params {
	return Params{
		Symbol:     "AAPL",
		Start:      time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC),
		StartPrice: 185,
		Spread:     0.02,
		Drift:      0.05,
		Volatility: 0.25,
		Interval:   time.Second,
		Steps:      500,
		Digits:     2,
		Seed:       seed,
	}
}

func TestTickGenerator_Stream(t *testing.T) {
	g := NewTickGenerator(params(7))

	var last time.Time
	for i := range 500 {
		tick, err := g.GetNext()
		require.NoError(t, err, "tick %d", i)

		assert.Equal(t, "AAPL", tick.Symbol)
		assert.True(t, tick.Ask.Gt(tick.Bid), "crossed quote at %d", i)
		assert.True(t, tick.BidVolume.IsPositive())
		assert.True(t, tick.TimeStamp.After(last))
		gap := tick.TimeStamp.Sub(last)
		if i > 0 {
			assert.GreaterOrEqual(t, gap, 500*time.Millisecond)
			assert.LessOrEqual(t, gap, 3*time.Second)
		}
		last = tick.TimeStamp
	}

	_, err := g.GetNext()
	assert.ErrorIs(t, err, datasource.ErrEof)
}

func TestTickGenerator_Deterministic(t *testing.T) {
	a, b, c := NewTickGenerator(params(1)), NewTickGenerator(params(1)), NewTickGenerator(params(2))

	var differs bool
	for range 50 {
		ta, _ := a.GetNext()
		tb, _ := b.GetNext()
		tc, _ := c.GetNext()
		require.True(t, ta.Bid.Eq(tb.Bid))
		require.Equal(t, ta.TimeStamp, tb.TimeStamp)
		if !ta.Bid.Eq(tc.Bid) {
			differs = true
		}
	}
	assert.True(t, differs, "different seeds should diverge")
}
