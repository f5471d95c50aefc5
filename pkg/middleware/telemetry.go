package middleware

import (
	"context"
	"sync/atomic"

	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
	"go.uber.org/zap"
)

// Telemetry counts handled events and sums the volume and fees of fills.
type Telemetry struct {
	logger *zap.Logger

	counters [bus.EventCount]atomic.Uint64

	fillVolume fixed.Point
	fillFees   fixed.Point
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	return &Telemetry{
		logger: logger,
	}
}

// Count returns how many events of the given id passed through.
func (t *Telemetry) Count(id bus.EventId) uint64 {
	if int(id) >= bus.EventCount {
		return 0
	}
	return t.counters[id].Load()
}

// FillVolume is the traded quantity of all full and partial fills seen.
func (t *Telemetry) FillVolume() fixed.Point { return t.fillVolume }
func (t *Telemetry) FillFees() fixed.Point   { return t.fillFees }

func (t *Telemetry) WithTick(handler bus.TickEventHandler) bus.TickEventHandler {
	return counted[common.Tick](t, bus.TickEvent, handler)
}

func (t *Telemetry) WithBar(handler bus.BarEventHandler) bus.BarEventHandler {
	return counted[common.Bar](t, bus.BarEvent, handler)
}

func (t *Telemetry) WithQuoteBar(handler bus.QuoteBarEventHandler) bus.QuoteBarEventHandler {
	return counted[common.QuoteBar](t, bus.QuoteBarEvent, handler)
}

func (t *Telemetry) WithEquity(handler bus.EquityEventHandler) bus.EquityEventHandler {
	return counted[common.Equity](t, bus.EquityEvent, handler)
}

func (t *Telemetry) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return counted[common.Balance](t, bus.BalanceEvent, handler)
}

func (t *Telemetry) WithOrder(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return counted[common.Order](t, bus.OrderEvent, handler)
}

func (t *Telemetry) WithOrderSubmitted(handler bus.OrderSubmittedEventHandler) bus.OrderSubmittedEventHandler {
	return counted[common.OrderSubmitted](t, bus.OrderSubmittedEvent, handler)
}

func (t *Telemetry) WithOrderCancelled(handler bus.OrderCancelledEventHandler) bus.OrderCancelledEventHandler {
	return counted[common.OrderCancelled](t, bus.OrderCancelledEvent, handler)
}

func (t *Telemetry) WithOrderUpdated(handler bus.OrderUpdatedEventHandler) bus.OrderUpdatedEventHandler {
	return counted[common.OrderUpdated](t, bus.OrderUpdatedEvent, handler)
}

func (t *Telemetry) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	next := counted[common.OrderFilled](t, bus.OrderFilledEvent, handler)
	return func(ctx context.Context, filled common.OrderFilled) {
		t.addFill(filled.Fill)
		next(ctx, filled)
	}
}

func (t *Telemetry) WithOrderPartiallyFilled(handler bus.OrderPartiallyFilledEventHandler) bus.OrderPartiallyFilledEventHandler {
	next := counted[common.OrderPartiallyFilled](t, bus.OrderPartiallyFilledEvent, handler)
	return func(ctx context.Context, filled common.OrderPartiallyFilled) {
		t.addFill(filled.Fill)
		next(ctx, filled)
	}
}

func (t *Telemetry) WithTrade(handler bus.TradeEventHandler) bus.TradeEventHandler {
	return counted[common.Trade](t, bus.TradeEvent, handler)
}

func (t *Telemetry) WithPositionSnapshot(handler bus.PositionSnapshotEventHandler) bus.PositionSnapshotEventHandler {
	return counted[common.PositionSnapshot](t, bus.PositionSnapshotEvent, handler)
}

// PrintStatistics logs every non-zero counter.
func (t *Telemetry) PrintStatistics() {
	fields := make([]zap.Field, 0, bus.EventCount+2)
	for i := range bus.EventCount {
		if n := t.counters[i].Load(); n > 0 {
			fields = append(fields, zap.Uint64(bus.EventId(i).String(), n))
		}
	}
	fields = append(fields,
		zap.String("fill_volume", t.fillVolume.String()),
		zap.String("fill_fees", t.fillFees.String()))
	t.logger.Info("telemetry", fields...)
}

// addFill runs on the router goroutine only.
func (t *Telemetry) addFill(fill common.Fill) {
	t.fillVolume = t.fillVolume.Add(fill.Quantity)
	t.fillFees = t.fillFees.Add(fill.Fee)
}

func counted[T any](t *Telemetry, id bus.EventId, handler bus.EventHandler[T]) bus.EventHandler[T] {
	return func(ctx context.Context, event T) {
		t.counters[id].Add(1)
		if handler != nil {
			handler(ctx, event)
		}
	}
}
