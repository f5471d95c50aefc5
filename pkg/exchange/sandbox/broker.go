package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/exchange"
	"github.com/peter-kozarec/simex/pkg/utility"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

const (
	brokerComponentName = "exchange.sandbox.broker"
	defaultVenueName    = "sandbox"

	reasonCancelled          = "Order was cancelled"
	reasonUpdated            = "Order was updated"
	reasonInsufficientFunds  = "insufficient funds"
	reasonFillException      = "exception during fill processing"
	reasonImmediateRemainder = "immediate or cancel remainder cancelled"
)

// Emitter publishes broker events. *bus.Router satisfies it. Events are
// posted after the broker lock is released, so a synchronous emitter may
// call back into the broker.
type Emitter interface {
	Post(id bus.EventId, data any) error
}

// FundsChecker reports whether the account can afford to keep order
// working at the estimated price. Reserve is called for every economic
// fill as it is matched, before its event is delivered, so later orders
// of the same batch see the committed funds.
type FundsChecker interface {
	HasSufficientFunds(order common.Order, remaining, price fixed.Point) bool
	Reserve(fill common.Fill)
}

type outboxEvent struct {
	id   bus.EventId
	data any
}

// Broker is the simulated venue. It holds the active orders and matches
// them against every market data batch.
type Broker struct {
	mu sync.Mutex

	emitter       Emitter
	logger        *slog.Logger
	brokerModel   exchange.BrokerModel
	securities    exchange.Securities
	funds         FundsChecker
	highLiquidity bool
	venueName     string

	orders   map[common.OrderId]*PendingOrder
	lastTime time.Time
	outbox   []outboxEvent
	dropped  []error
}

func NewBroker(emitter Emitter, options ...Option) *Broker {
	b := &Broker{
		emitter:     emitter,
		logger:      slog.Default(),
		brokerModel: exchange.NewStaticBrokerModel(exchange.CostModel{}),
		securities:  exchange.NewSecurities(),
		venueName:   defaultVenueName,
		orders:      make(map[common.OrderId]*PendingOrder),
	}

	for _, option := range options {
		option(b)
	}

	return b
}

// OnOrder routes an order command from the bus.
func (b *Broker) OnOrder(_ context.Context, order common.Order) {
	var ok bool
	switch order.Command {
	case common.OrderCommandSubmit:
		ok = b.SubmitOrder(order)
	case common.OrderCommandCancel:
		ok = b.CancelOrder(order.Id)
	case common.OrderCommandUpdate:
		ok = b.UpdateOrder(order)
	default:
		b.logger.Warn("unknown order command", "command", order.Command, "order_id", order.Id)
		return
	}
	if !ok {
		b.logger.Debug("order command rejected", "command", order.Command, "order_id", order.Id, "state", order.State.String())
	}
}

// SubmitOrder accepts a new order. Orders in any other state, and ids
// already working, are rejected.
func (b *Broker) SubmitOrder(order common.Order) bool {
	b.mu.Lock()
	defer b.unlock()

	if order.State != common.OrderStateNew {
		return false
	}
	if _, ok := b.orders[order.Id]; ok {
		return false
	}

	order.State = common.OrderStateSubmitted
	if order.CreatedTime.IsZero() {
		order.CreatedTime = b.now(order.TimeStamp)
	}

	pending := NewPendingOrder(order, b.security(order.Symbol))
	b.orders[order.Id] = pending

	b.post(bus.OrderSubmittedEvent, common.OrderSubmitted{
		Source:      brokerComponentName,
		Symbol:      order.Symbol,
		ExecutionId: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   pending.CreatedTime,
		OrderId:     order.Id,
		Order:       order,
	})
	return true
}

// CancelOrder removes a working order. Unknown ids return false.
func (b *Broker) CancelOrder(id common.OrderId) bool {
	b.mu.Lock()
	defer b.unlock()

	pending, ok := b.orders[id]
	if !ok {
		return false
	}

	delete(b.orders, id)
	pending.Order.State = common.OrderStateCancelled
	b.postCancelled(pending.Order, b.now(time.Time{}), reasonCancelled)
	return true
}

// UpdateOrder merges the non-zero fields of order into the working order
// with the same id. The quantity cannot drop below what is already filled
// nor change direction.
func (b *Broker) UpdateOrder(order common.Order) bool {
	b.mu.Lock()
	defer b.unlock()

	pending, ok := b.orders[order.Id]
	if !ok {
		return false
	}

	current := pending.Order
	if !order.Quantity.IsZero() {
		if order.Direction() != current.Direction() || order.Quantity.Abs().Lte(pending.FilledQuantity()) {
			return false
		}
		current.Quantity = order.Quantity
	}
	if !order.LimitPrice.IsZero() {
		current.LimitPrice = order.LimitPrice
	}
	if !order.StopPrice.IsZero() {
		current.StopPrice = order.StopPrice
	}
	if !order.ExpireTime.IsZero() {
		current.ExpireTime = order.ExpireTime
	}
	if order.Comment != "" {
		current.Comment = order.Comment
	}
	pending.Order = current

	b.post(bus.OrderUpdatedEvent, common.OrderUpdated{
		Source:      brokerComponentName,
		Symbol:      current.Symbol,
		ExecutionId: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   b.now(order.TimeStamp),
		OrderId:     current.Id,
		Order:       current,
		Reason:      reasonUpdated,
	})
	return true
}

// Order returns a copy of a working order.
func (b *Broker) Order(id common.OrderId) (common.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending, ok := b.orders[id]
	if !ok {
		return common.Order{}, false
	}
	return pending.Order, true
}

// ActiveOrders returns the working orders by ascending id.
func (b *Broker) ActiveOrders() []common.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders := make([]common.Order, 0, len(b.orders))
	for _, id := range slices.Sorted(maps.Keys(b.orders)) {
		orders = append(orders, b.orders[id].Order)
	}
	return orders
}

// ProcessMarketData matches every working order against the batch in
// ascending id order. A failing order is cancelled on its own, the rest
// of the batch is still processed.
func (b *Broker) ProcessMarketData(ctx context.Context, updates common.DataUpdates) {
	b.mu.Lock()
	defer b.unlock()

	if len(b.orders) == 0 || !updates.HasUpdates() {
		return
	}
	if updates.TimeStamp.After(b.lastTime) {
		b.lastTime = updates.TimeStamp
	}

	for _, id := range slices.Sorted(maps.Keys(b.orders)) {
		if ctx.Err() != nil {
			return
		}

		pending := b.orders[id]
		data, ok := updates.Resolve(pending.Order.Symbol)
		if !ok {
			continue
		}

		if pending.Order.State.IsDone() {
			delete(b.orders, id)
			continue
		}

		if !b.hasFunds(pending, data) {
			delete(b.orders, id)
			pending.Order.State = common.OrderStateCancelled
			b.postCancelled(pending.Order, data.OccurredAt(), reasonInsufficientFunds)
			continue
		}

		fill, err := b.fill(pending, data)
		if err != nil {
			b.logger.Warn("unable to fill order", "error", err, "order_id", id, "symbol", pending.Order.Symbol)
			delete(b.orders, id)
			pending.Order.State = common.OrderStateCancelled
			b.postCancelled(pending.Order, data.OccurredAt(), reasonFillException)
			continue
		}

		b.apply(pending, fill)
		if pending.Order.State.IsDone() {
			delete(b.orders, id)
		}
	}
}

func (b *Broker) fill(pending *PendingOrder, data common.DataPoint) (fill common.Fill, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fill panicked: %v", r)
		}
	}()

	cost := b.brokerModel.CostModel(pending.Security)
	return FillOrder(cost, data, pending, b.highLiquidity)
}

func (b *Broker) apply(pending *PendingOrder, fill common.Fill) {
	if fill.Status == common.FillStatusNoFill {
		return
	}
	pending.Order.State = fill.Status.OrderState()

	switch fill.Status {
	case common.FillStatusPartialFill:
		b.reserve(fill)
		if fill.Quantity.IsPositive() {
			b.post(bus.OrderPartiallyFilledEvent, b.partiallyFilled(pending.Order, fill))
		}
		if pending.Order.FillPolicy == common.FillPolicyImmediateOrCancel {
			pending.Order.State = common.OrderStateCancelled
			b.postCancelled(pending.Order, fill.TimeStamp, reasonImmediateRemainder)
		}
	case common.FillStatusFullFill:
		b.reserve(fill)
		if fill.Quantity.IsPositive() {
			b.post(bus.OrderFilledEvent, b.filled(pending.Order, fill))
		}
	default:
		b.postCancelled(pending.Order, fill.TimeStamp, fill.Message)
	}
}

func (b *Broker) reserve(fill common.Fill) {
	if b.funds != nil && fill.IsEconomic() {
		b.funds.Reserve(fill)
	}
}

// hasFunds estimates the cost at the current price. Limit buys never pay
// more than their limit.
func (b *Broker) hasFunds(pending *PendingOrder, data common.DataPoint) bool {
	if b.funds == nil {
		return true
	}
	ref, err := newPriceContext(data, pending.Order.Direction())
	if err != nil {
		return true
	}
	return b.funds.HasSufficientFunds(pending.Order, pending.RemainingQuantity(), fundsPrice(pending.Order, ref.current))
}

func fundsPrice(order common.Order, current fixed.Point) fixed.Point {
	limited := order.Type == common.OrderTypeLimit || order.Type == common.OrderTypeStopLimit
	if order.IsLong() && limited && order.LimitPrice.IsPositive() {
		return fixed.Min(current, order.LimitPrice)
	}
	return current
}

func (b *Broker) security(symbol string) exchange.Security {
	if security, err := b.securities.Get(symbol); err == nil {
		return security
	}
	return exchange.NewSecurity(exchange.SymbolInfo{SymbolName: symbol}, exchange.ContinuousVenue(b.venueName))
}

func (b *Broker) now(fallback time.Time) time.Time {
	if !fallback.IsZero() {
		return fallback
	}
	return b.lastTime
}

func (b *Broker) filled(order common.Order, fill common.Fill) common.OrderFilled {
	return common.OrderFilled{
		Source:      brokerComponentName,
		Symbol:      order.Symbol,
		ExecutionId: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   fill.TimeStamp,
		OrderId:     order.Id,
		Fill:        fill,
	}
}

func (b *Broker) partiallyFilled(order common.Order, fill common.Fill) common.OrderPartiallyFilled {
	return common.OrderPartiallyFilled{
		Source:      brokerComponentName,
		Symbol:      order.Symbol,
		ExecutionId: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   fill.TimeStamp,
		OrderId:     order.Id,
		Fill:        fill,
	}
}

func (b *Broker) postCancelled(order common.Order, ts time.Time, reason string) {
	b.post(bus.OrderCancelledEvent, common.OrderCancelled{
		Source:      brokerComponentName,
		Symbol:      order.Symbol,
		ExecutionId: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   ts,
		OrderId:     order.Id,
		Order:       order,
		Reason:      reason,
	})
}

// Err returns the fill events the emitter refused. Those fills were
// matched and reserved but never reached the holdings.
func (b *Broker) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Join(b.dropped...)
}

// post queues an event. It must be called with the lock held.
func (b *Broker) post(id bus.EventId, data any) {
	if b.emitter != nil {
		b.outbox = append(b.outbox, outboxEvent{id, data})
	}
}

// unlock releases the lock and then posts the events queued while it was
// held.
func (b *Broker) unlock() {
	events := b.outbox
	b.outbox = nil
	b.mu.Unlock()

	for _, ev := range events {
		b.emit(ev)
	}
}

func (b *Broker) emit(ev outboxEvent) {
	err := b.emitter.Post(ev.id, ev.data)
	if err == nil {
		return
	}

	switch ev.id {
	case bus.OrderFilledEvent, bus.OrderPartiallyFilledEvent:
		b.logger.Error("fill event dropped", "error", err, "event", ev.id.String())
		b.mu.Lock()
		b.dropped = append(b.dropped, fmt.Errorf("%s dropped: %w", ev.id, err))
		b.mu.Unlock()
	default:
		b.logger.Warn("unable to post event", "error", err, "event", ev.id.String())
	}
}
