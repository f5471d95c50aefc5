package sandbox

import (
	"fmt"
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/exchange"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

const (
	reasonExpired          = "Order expired"
	reasonUnexpectedState  = "unexpected order state"
	reasonFillOrKill       = "fill or kill could not be filled completely"
	reasonImmediateNoFill  = "immediate or cancel was not filled"
	reasonNothingRemaining = "nothing left to fill"
)

// FillOrder attempts to fill one pending order against a data point. A
// returned error means one of the cost models failed and the attempt has
// no outcome. Economic fills are recorded on the pending order.
func FillOrder(cost exchange.CostModel, data common.DataPoint, pending *PendingOrder, highLiquidity bool) (common.Fill, error) {
	order := pending.Order
	ts := data.OccurredAt()

	switch order.State {
	case common.OrderStateCancelled:
		return common.CancelledFill(order, ts, "order is cancelled"), nil
	case common.OrderStateError:
		return common.ErrorFill(order, ts, "order is in error state"), nil
	case common.OrderStateInvalid:
		return common.InvalidFill(order, ts, "order is invalid"), nil
	case common.OrderStateSubmitted, common.OrderStatePartialFilled:
	default:
		return common.ErrorFill(order, ts, fmt.Sprintf("%s: %s", reasonUnexpectedState, order.State)), nil
	}

	if !venueOpen(pending.Security, data) {
		return common.NoFill(order, ts), nil
	}

	if expired(pending, ts) {
		return common.CancelledFill(order, ts, reasonExpired), nil
	}

	latency, err := cost.Latency(order)
	if err != nil {
		return common.Fill{}, fmt.Errorf("unable to resolve latency: %w", err)
	}
	if pending.CreatedTime.Add(latency).After(ts) {
		return common.NoFill(order, ts), nil
	}

	ref, err := newPriceContext(data, order.Direction())
	if err != nil {
		return common.Fill{}, err
	}

	if reason := invalidPrices(order); reason != "" {
		return common.InvalidFill(order, ts, reason), nil
	}
	if order.Quantity.IsZero() {
		return common.InvalidFill(order, ts, "zero quantity"), nil
	}
	if !ref.hasPrice() {
		return common.NoFill(order, ts), nil
	}

	triggered, price := pending.isTriggered(ref)
	if !triggered {
		if order.FillPolicy == common.FillPolicyImmediateOrCancel {
			return common.CancelledFill(order, ts, reasonImmediateNoFill), nil
		}
		return common.NoFill(order, ts), nil
	}

	slippage, err := cost.Slippage(order)
	if err != nil {
		return common.Fill{}, fmt.Errorf("unable to resolve slippage: %w", err)
	}
	spread, err := cost.AdditionalSpread(order)
	if err != nil {
		return common.Fill{}, fmt.Errorf("unable to resolve spread: %w", err)
	}
	price = pending.Security.RoundPrice(price.Add(slippage).Add(spread))

	fill, err := sizeFill(cost, pending, ref, price, ts, highLiquidity)
	if err != nil {
		return common.Fill{}, err
	}
	pending.record(fill)
	return fill, nil
}

func sizeFill(cost exchange.CostModel, pending *PendingOrder, ref priceContext, price fixed.Point, ts time.Time, highLiquidity bool) (common.Fill, error) {
	order := pending.Order
	remaining := pending.RemainingQuantity()
	if !remaining.IsPositive() {
		return common.ErrorFill(order, ts, reasonNothingRemaining), nil
	}

	quantity := remaining
	status := common.FillStatusFullFill
	message := ""

	if !highLiquidity && ref.size.Lt(remaining) {
		switch order.FillPolicy {
		case common.FillPolicyFillOrKill:
			return common.CancelledFill(order, ts, reasonFillOrKill), nil
		case common.FillPolicyAllOrNone:
			return common.NoFill(order, ts), nil
		case common.FillPolicyImmediateOrCancel:
			if !ref.size.IsPositive() {
				return common.CancelledFill(order, ts, reasonImmediateNoFill), nil
			}
			message = "remainder cancelled"
		default:
			if !ref.size.IsPositive() {
				return common.NoFill(order, ts), nil
			}
		}
		quantity = ref.size
		status = common.FillStatusPartialFill
	}

	// Partial fills are free; the fee is charged once on the fill that
	// completes the order, or on the last fill of an immediate or cancel.
	fee := fixed.Zero
	if status == common.FillStatusFullFill || message != "" {
		var err error
		if fee, err = cost.CommissionAndFees(order, quantity, price); err != nil {
			return common.Fill{}, fmt.Errorf("unable to resolve fees: %w", err)
		}
	}

	return common.Fill{
		OrderId:   order.Id,
		FundId:    order.FundId,
		Symbol:    order.Symbol,
		Direction: order.Direction(),
		Price:     price,
		Quantity:  quantity,
		Fee:       fee,
		Venue:     pending.Security.Venue.Name,
		Status:    status,
		Message:   message,
		TimeStamp: ts,
	}, nil
}

func venueOpen(security exchange.Security, data common.DataPoint) bool {
	if data.IsBar() {
		return security.IsOpenDuringBar(data.BarStart(), data.OccurredAt())
	}
	return security.IsOpen(data.OccurredAt())
}

// expired applies time in force. Day and market on close orders live until
// the UTC date rolls over.
func expired(pending *PendingOrder, ts time.Time) bool {
	switch pending.Order.TimeInForce {
	case common.TimeInForceDay, common.TimeInForceMarketOnClose:
		return utcDate(ts).After(utcDate(pending.CreatedTime))
	case common.TimeInForceGoodTillDate:
		expiry := pending.Order.ExpireTime
		return !expiry.IsZero() && !ts.Before(expiry)
	default:
		return false
	}
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
