package sandbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

var ErrUnsupportedData = errors.New("unsupported data point")

// priceContext is the direction aware view of one data point: the side an
// order trades against, its range over the interval, and the visible size.
type priceContext struct {
	current fixed.Point
	open    fixed.Point
	high    fixed.Point
	low     fixed.Point
	size    fixed.Point
	time    time.Time
}

func newPriceContext(data common.DataPoint, direction common.Direction) (priceContext, error) {
	switch d := data.(type) {
	case common.Tick:
		return tickPrices(d, direction), nil
	case common.QuoteBar:
		return quoteBarPrices(d, direction), nil
	case common.Bar:
		return priceContext{
			current: d.Close,
			open:    d.Open,
			high:    d.High,
			low:     d.Low,
			size:    d.Volume,
			time:    d.TimeStamp,
		}, nil
	default:
		return priceContext{}, fmt.Errorf("%w: %T", ErrUnsupportedData, data)
	}
}

func tickPrices(tick common.Tick, direction common.Direction) priceContext {
	price, size := tick.Ask, tick.AskVolume
	if direction == common.DirectionShort {
		price, size = tick.Bid, tick.BidVolume
	}
	if price.IsZero() {
		price = tick.Last
	}
	if size.IsZero() {
		size = tick.LastVolume
	}
	return priceContext{
		current: price,
		open:    price,
		high:    price,
		low:     price,
		size:    size,
		time:    tick.TimeStamp,
	}
}

func quoteBarPrices(bar common.QuoteBar, direction common.Direction) priceContext {
	side, size := bar.Ask, bar.LastAskSize
	if direction == common.DirectionShort {
		side, size = bar.Bid, bar.LastBidSize
	}
	return priceContext{
		current: side.Close,
		open:    side.Open,
		high:    side.High,
		low:     side.Low,
		size:    size,
		time:    bar.TimeStamp,
	}
}

func (c priceContext) hasPrice() bool {
	return c.current.IsPositive()
}
