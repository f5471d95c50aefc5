package bus

import (
	"context"

	"github.com/peter-kozarec/simex/pkg/common"
)

type EventHandler[T any] = func(context.Context, T)

type TickEventHandler EventHandler[common.Tick]
type BarEventHandler EventHandler[common.Bar]
type QuoteBarEventHandler EventHandler[common.QuoteBar]
type EquityEventHandler EventHandler[common.Equity]
type BalanceEventHandler EventHandler[common.Balance]
type OrderEventHandler EventHandler[common.Order]
type OrderSubmittedEventHandler EventHandler[common.OrderSubmitted]
type OrderCancelledEventHandler EventHandler[common.OrderCancelled]
type OrderUpdatedEventHandler EventHandler[common.OrderUpdated]
type OrderFilledEventHandler EventHandler[common.OrderFilled]
type OrderPartiallyFilledEventHandler EventHandler[common.OrderPartiallyFilled]
type TradeEventHandler EventHandler[common.Trade]
type PositionSnapshotEventHandler EventHandler[common.PositionSnapshot]

func MergeHandlers[T any](handlers ...EventHandler[T]) EventHandler[T] {
	return func(ctx context.Context, event T) {
		for _, handler := range handlers {
			if handler != nil {
				handler(ctx, event)
			}
		}
	}
}
