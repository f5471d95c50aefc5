package sandbox

import (
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

// Market on open orders execute in the opening auction window, market on
// close orders in the closing one.
const (
	openAuctionDelay = 15 * time.Minute
	closeAuctionLead = 15 * time.Minute
)

// invalidPrices returns a reason when the order carries prices it cannot
// trigger on.
func invalidPrices(order common.Order) string {
	switch order.Type {
	case common.OrderTypeLimit:
		if !order.LimitPrice.IsPositive() {
			return "invalid limit price"
		}
	case common.OrderTypeStop:
		if !order.StopPrice.IsPositive() {
			return "invalid stop price"
		}
	case common.OrderTypeStopLimit:
		if !order.StopPrice.IsPositive() {
			return "invalid stop price"
		}
		if !order.LimitPrice.IsPositive() {
			return "invalid limit price"
		}
	}
	return ""
}

// isTriggered decides whether the order fires against ref and at which
// price before costs. Stop limit orders remember a crossed stop.
func (p *PendingOrder) isTriggered(ref priceContext) (bool, fixed.Point) {
	order := p.Order
	long := order.IsLong()

	switch order.Type {
	case common.OrderTypeMarket:
		return true, ref.current

	case common.OrderTypeMarketOnOpen:
		auction := p.Security.Venue.NextOpen(p.CreatedTime).Add(openAuctionDelay)
		if ref.time.Before(auction) {
			return false, fixed.Zero
		}
		return true, ref.current

	case common.OrderTypeMarketOnClose:
		auction := p.Security.Venue.NextClose(p.CreatedTime).Add(-closeAuctionLead)
		if ref.time.Before(auction) {
			return false, fixed.Zero
		}
		return true, ref.current

	case common.OrderTypeLimit:
		return limitTriggered(long, order.LimitPrice, ref)

	case common.OrderTypeStop:
		return stopTriggered(long, order.StopPrice, ref)

	case common.OrderTypeStopLimit:
		if !p.stopTriggered {
			if ok, _ := stopTriggered(long, order.StopPrice, ref); !ok {
				return false, fixed.Zero
			}
			p.stopTriggered = true
		}
		return limitTriggered(long, order.LimitPrice, ref)

	default:
		return false, fixed.Zero
	}
}

func limitTriggered(long bool, limit fixed.Point, ref priceContext) (bool, fixed.Point) {
	if long {
		if ref.low.Lte(limit) {
			return true, fixed.Min(ref.high, limit)
		}
		return false, fixed.Zero
	}
	if ref.high.Gte(limit) {
		return true, fixed.Max(ref.low, limit)
	}
	return false, fixed.Zero
}

func stopTriggered(long bool, stop fixed.Point, ref priceContext) (bool, fixed.Point) {
	if long {
		if ref.high.Gte(stop) {
			return true, fixed.Max(stop, ref.current)
		}
		return false, fixed.Zero
	}
	if ref.low.Lte(stop) {
		return true, fixed.Min(stop, ref.current)
	}
	return false, fixed.Zero
}
