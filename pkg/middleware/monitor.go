package middleware

import (
	"context"
	"log/slog"

	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorTicks MonitorFlags = 1 << iota
	MonitorBars
	MonitorQuoteBars
	MonitorEquity
	MonitorBalance
	MonitorOrders
	MonitorOrdersSubmitted
	MonitorOrdersCancelled
	MonitorOrdersUpdated
	MonitorOrdersFilled
	MonitorOrdersPartiallyFilled
	MonitorTrades
	MonitorPositionSnapshots

	MonitorNone MonitorFlags = 0
	MonitorAll  MonitorFlags = MonitorPositionSnapshots<<1 - 1
)

// Monitor logs selected events through the default slog logger before
// passing them on.
type Monitor struct {
	flags MonitorFlags
}

func NewMonitor(flags MonitorFlags) *Monitor {
	return &Monitor{
		flags: flags,
	}
}

func (m *Monitor) Enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0
}

func (m *Monitor) WithTick(handler bus.TickEventHandler) bus.TickEventHandler {
	return monitored[common.Tick](m, MonitorTicks, "tick", handler)
}

func (m *Monitor) WithBar(handler bus.BarEventHandler) bus.BarEventHandler {
	return monitored[common.Bar](m, MonitorBars, "bar", handler)
}

func (m *Monitor) WithQuoteBar(handler bus.QuoteBarEventHandler) bus.QuoteBarEventHandler {
	return monitored[common.QuoteBar](m, MonitorQuoteBars, "quote_bar", handler)
}

func (m *Monitor) WithEquity(handler bus.EquityEventHandler) bus.EquityEventHandler {
	return monitored[common.Equity](m, MonitorEquity, "equity", handler)
}

func (m *Monitor) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return monitored[common.Balance](m, MonitorBalance, "balance", handler)
}

func (m *Monitor) WithOrder(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return monitored[common.Order](m, MonitorOrders, "order", handler)
}

func (m *Monitor) WithOrderSubmitted(handler bus.OrderSubmittedEventHandler) bus.OrderSubmittedEventHandler {
	return monitored[common.OrderSubmitted](m, MonitorOrdersSubmitted, "order_submitted", handler)
}

func (m *Monitor) WithOrderCancelled(handler bus.OrderCancelledEventHandler) bus.OrderCancelledEventHandler {
	return monitored[common.OrderCancelled](m, MonitorOrdersCancelled, "order_cancelled", handler)
}

func (m *Monitor) WithOrderUpdated(handler bus.OrderUpdatedEventHandler) bus.OrderUpdatedEventHandler {
	return monitored[common.OrderUpdated](m, MonitorOrdersUpdated, "order_updated", handler)
}

func (m *Monitor) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return monitored[common.OrderFilled](m, MonitorOrdersFilled, "order_filled", handler)
}

func (m *Monitor) WithOrderPartiallyFilled(handler bus.OrderPartiallyFilledEventHandler) bus.OrderPartiallyFilledEventHandler {
	return monitored[common.OrderPartiallyFilled](m, MonitorOrdersPartiallyFilled, "order_partially_filled", handler)
}

func (m *Monitor) WithTrade(handler bus.TradeEventHandler) bus.TradeEventHandler {
	return monitored[common.Trade](m, MonitorTrades, "trade", handler)
}

func (m *Monitor) WithPositionSnapshot(handler bus.PositionSnapshotEventHandler) bus.PositionSnapshotEventHandler {
	return monitored[common.PositionSnapshot](m, MonitorPositionSnapshots, "position_snapshot", handler)
}

func monitored[T any](m *Monitor, flag MonitorFlags, key string, handler bus.EventHandler[T]) bus.EventHandler[T] {
	return func(ctx context.Context, event T) {
		if m.Enabled(flag) {
			slog.InfoContext(ctx, "event", key, event)
		}
		if handler != nil {
			handler(ctx, event)
		}
	}
}
