package middleware

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
	"go.uber.org/zap"
)

// Performance measures the time spent inside the wrapped handlers.
type Performance struct {
	logger *zap.Logger

	calls     [bus.EventCount]atomic.Uint64
	durations [bus.EventCount]atomic.Int64
}

func NewPerformance(logger *zap.Logger) *Performance {
	return &Performance{
		logger: logger,
	}
}

func (p *Performance) Calls(id bus.EventId) uint64 {
	if int(id) >= bus.EventCount {
		return 0
	}
	return p.calls[id].Load()
}

func (p *Performance) Total(id bus.EventId) time.Duration {
	if int(id) >= bus.EventCount {
		return 0
	}
	return time.Duration(p.durations[id].Load())
}

// Average returns zero when the handler was never called.
func (p *Performance) Average(id bus.EventId) time.Duration {
	calls := p.Calls(id)
	if calls == 0 {
		return 0
	}
	return p.Total(id) / time.Duration(calls)
}

func (p *Performance) WithTick(handler bus.TickEventHandler) bus.TickEventHandler {
	return timed[common.Tick](p, bus.TickEvent, handler)
}

func (p *Performance) WithBar(handler bus.BarEventHandler) bus.BarEventHandler {
	return timed[common.Bar](p, bus.BarEvent, handler)
}

func (p *Performance) WithQuoteBar(handler bus.QuoteBarEventHandler) bus.QuoteBarEventHandler {
	return timed[common.QuoteBar](p, bus.QuoteBarEvent, handler)
}

func (p *Performance) WithOrder(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return timed[common.Order](p, bus.OrderEvent, handler)
}

func (p *Performance) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return timed[common.OrderFilled](p, bus.OrderFilledEvent, handler)
}

func (p *Performance) WithOrderPartiallyFilled(handler bus.OrderPartiallyFilledEventHandler) bus.OrderPartiallyFilledEventHandler {
	return timed[common.OrderPartiallyFilled](p, bus.OrderPartiallyFilledEvent, handler)
}

func (p *Performance) WithTrade(handler bus.TradeEventHandler) bus.TradeEventHandler {
	return timed[common.Trade](p, bus.TradeEvent, handler)
}

func (p *Performance) PrintStatistics() {
	var fields []zap.Field
	for i := range bus.EventCount {
		id := bus.EventId(i)
		if p.Calls(id) == 0 {
			continue
		}
		fields = append(fields,
			zap.Duration(id.String()+"_avg_duration", p.Average(id)),
			zap.Duration(id.String()+"_total_duration", p.Total(id)))
	}
	if len(fields) == 0 {
		p.logger.Info("no handler durations recorded")
		return
	}
	p.logger.Info("handler performance", fields...)
}

func timed[T any](p *Performance, id bus.EventId, handler bus.EventHandler[T]) bus.EventHandler[T] {
	return func(ctx context.Context, event T) {
		start := time.Now()
		if handler != nil {
			handler(ctx, event)
		}
		p.durations[id].Add(int64(time.Since(start)))
		p.calls[id].Add(1)
	}
}
