package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/simex/pkg/common"
)

func TestNewTrade(t *testing.T) {
	opened := []common.Fill{
		fill(1, common.DirectionShort, "3", "10", "0.3", 0),
		fill(2, common.DirectionShort, "1", "14", "0.1", time.Minute),
	}
	closed := []common.Fill{fill(3, common.DirectionLong, "4", "9", "0.4", time.Hour)}

	trade, err := NewTrade(opened, closed, p("8"), p("15"))
	require.NoError(t, err)

	assert.Equal(t, common.DirectionShort, trade.Direction)
	assertPoint(t, "11", trade.OpenPrice)
	assertPoint(t, "9", trade.ClosePrice)
	assertPoint(t, "8", trade.GrossPnL)
	assertPoint(t, "0.8", trade.Fees)
	assertPoint(t, "7.2", trade.NetPnL)
	assertPoint(t, "36", trade.ClosedValue)
	assertPoint(t, "15", trade.MAE)
	assertPoint(t, "8", trade.MFE)
	assert.Equal(t, t0, trade.OpenedTime)
	assert.Equal(t, t0.Add(time.Hour), trade.ClosedTime)
	assert.Equal(t, "fund", trade.FundId)
	assert.True(t, trade.IsWin())
}

func TestNewTrade_Errors(t *testing.T) {
	long := fill(1, common.DirectionLong, "2", "10", "0", 0)
	short := fill(2, common.DirectionShort, "2", "10", "0", 0)

	tests := []struct {
		name   string
		opened []common.Fill
		closed []common.Fill
		want   error
	}{
		{"no opening fills", nil, []common.Fill{short}, ErrMissingFills},
		{"no closing fills", []common.Fill{long}, nil, ErrMissingFills},
		{"uneven", []common.Fill{long, long}, []common.Fill{short}, ErrUnevenQuantities},
		{"mixed directions", []common.Fill{long, short}, []common.Fill{short, short}, ErrMixedDirections},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTrade(tt.opened, tt.closed, p("10"), p("10"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
