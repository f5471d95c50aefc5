package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/exchange"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

type cashChecker struct {
	cash   fixed.Point
	prices []fixed.Point
}

func (c *cashChecker) HasSufficientFunds(order common.Order, remaining, price fixed.Point) bool {
	c.prices = append(c.prices, price)
	if order.IsShort() {
		return true
	}
	return remaining.Mul(price).Lte(c.cash)
}

func (c *cashChecker) Reserve(fill common.Fill) {
	c.cash = c.cash.Sub(fill.SignedQuantity().Mul(fill.Price)).Sub(fill.Fee)
}

type emitterFunc func(id bus.EventId, data any) error

func (f emitterFunc) Post(id bus.EventId, data any) error { return f(id, data) }

func batch(ticks ...common.Tick) common.DataUpdates {
	updates := common.NewDataUpdates(time.Time{})
	for _, tick := range ticks {
		updates.AddTick(tick)
	}
	return updates
}

func TestBroker_SubmitOrder(t *testing.T) {
	emitter := &recordingEmitter{}
	broker := NewBroker(emitter)

	order := newOrder(1, common.OrderTypeMarket, "10")
	require.True(t, broker.SubmitOrder(order))
	assert.False(t, broker.SubmitOrder(order), "duplicate id")

	rejected := newOrder(2, common.OrderTypeMarket, "10")
	rejected.State = common.OrderStateSubmitted
	assert.False(t, broker.SubmitOrder(rejected), "only new orders are accepted")

	assert.Equal(t, []bus.EventId{bus.OrderSubmittedEvent}, emitter.ids())
	submittedEvent := emitter.last().data.(common.OrderSubmitted)
	assert.Equal(t, common.OrderId(1), submittedEvent.OrderId)
	assert.Equal(t, "AAPL", submittedEvent.Symbol)
	assert.Equal(t, common.OrderStateSubmitted, submittedEvent.Order.State)

	active, ok := broker.Order(1)
	require.True(t, ok)
	assert.Equal(t, common.OrderStateSubmitted, active.State)
}

func TestBroker_CancelOrder(t *testing.T) {
	emitter := &recordingEmitter{}
	broker := NewBroker(emitter)

	assert.False(t, broker.CancelOrder(42))
	assert.False(t, broker.CancelOrder(42))
	assert.Empty(t, emitter.ids())

	require.True(t, broker.SubmitOrder(newOrder(1, common.OrderTypeLimit, "10")))
	require.True(t, broker.CancelOrder(1))
	assert.False(t, broker.CancelOrder(1))

	cancelled := emitter.last().data.(common.OrderCancelled)
	assert.Equal(t, "Order was cancelled", cancelled.Reason)
	assert.Equal(t, common.OrderStateCancelled, cancelled.Order.State)
	assert.Empty(t, broker.ActiveOrders())
}

func TestBroker_UpdateOrder(t *testing.T) {
	emitter := &recordingEmitter{}
	broker := NewBroker(emitter)

	update := newOrder(1, common.OrderTypeLimit, "20")
	update.LimitPrice = p("51")
	assert.False(t, broker.UpdateOrder(update), "unknown order")

	order := newOrder(1, common.OrderTypeLimit, "10")
	order.LimitPrice = p("50")
	require.True(t, broker.SubmitOrder(order))
	require.True(t, broker.UpdateOrder(update))

	active, ok := broker.Order(1)
	require.True(t, ok)
	assertPoint(t, "20", active.Quantity)
	assertPoint(t, "51", active.LimitPrice)
	assert.Equal(t, common.OrderStateSubmitted, active.State)

	updated := emitter.last().data.(common.OrderUpdated)
	assert.Equal(t, "Order was updated", updated.Reason)

	flip := newOrder(1, common.OrderTypeLimit, "-5")
	assert.False(t, broker.UpdateOrder(flip), "direction change")
}

func TestBroker_ProcessMarketData(t *testing.T) {
	emitter := &recordingEmitter{}
	broker := NewBroker(emitter, WithBrokerModel(exchange.NewStaticBrokerModel(exchange.CostModel{
		FeeModel: perShare("0.01"),
	})))

	limit := newOrder(1, common.OrderTypeLimit, "100")
	limit.LimitPrice = p("50.00")
	require.True(t, broker.SubmitOrder(limit))
	emitter.reset()

	broker.ProcessMarketData(context.Background(), batch(askTick("AAPL", t0, "50.00", "40")))

	require.Equal(t, []bus.EventId{bus.OrderPartiallyFilledEvent}, emitter.ids())
	partial := emitter.last().data.(common.OrderPartiallyFilled)
	assertPoint(t, "40", partial.Fill.Quantity)
	assertPoint(t, "0", partial.Fill.Fee)

	active, ok := broker.Order(1)
	require.True(t, ok)
	assert.Equal(t, common.OrderStatePartialFilled, active.State)

	broker.ProcessMarketData(context.Background(), batch(askTick("AAPL", t0.Add(time.Second), "50.00", "60")))

	require.Equal(t, []bus.EventId{bus.OrderPartiallyFilledEvent, bus.OrderFilledEvent}, emitter.ids())
	filled := emitter.last().data.(common.OrderFilled)
	assertPoint(t, "60", filled.Fill.Quantity)
	assertPoint(t, "0.6", filled.Fill.Fee)

	_, ok = broker.Order(1)
	assert.False(t, ok, "filled orders are evicted")
}

func TestBroker_ProcessMarketDataNoop(t *testing.T) {
	emitter := &recordingEmitter{}
	broker := NewBroker(emitter)

	broker.ProcessMarketData(context.Background(), batch(askTick("AAPL", t0, "10", "10")))
	assert.Empty(t, emitter.ids())

	require.True(t, broker.SubmitOrder(newOrder(1, common.OrderTypeMarket, "1")))
	emitter.reset()

	broker.ProcessMarketData(context.Background(), common.NewDataUpdates(t0))
	broker.ProcessMarketData(context.Background(), batch(askTick("MSFT", t0, "10", "10")))
	assert.Empty(t, emitter.ids())
	assert.Len(t, broker.ActiveOrders(), 1)
}

func TestBroker_AscendingOrderIds(t *testing.T) {
	emitter := &recordingEmitter{}
	broker := NewBroker(emitter, WithHighLiquidity())

	for _, id := range []common.OrderId{5, 3, 9, 1} {
		require.True(t, broker.SubmitOrder(newOrder(id, common.OrderTypeMarket, "1")))
	}
	emitter.reset()

	broker.ProcessMarketData(context.Background(), batch(askTick("AAPL", t0, "10", "0")))

	var ids []common.OrderId
	for _, ev := range emitter.events {
		ids = append(ids, ev.data.(common.OrderFilled).OrderId)
	}
	assert.Equal(t, []common.OrderId{1, 3, 5, 9}, ids)
	assert.Empty(t, broker.ActiveOrders())
}

func TestBroker_InsufficientFunds(t *testing.T) {
	emitter := &recordingEmitter{}
	broker := NewBroker(emitter, WithHighLiquidity(), WithFundsChecker(&cashChecker{cash: p("500")}))

	require.True(t, broker.SubmitOrder(newOrder(1, common.OrderTypeMarket, "100")))
	require.True(t, broker.SubmitOrder(newOrder(2, common.OrderTypeMarket, "10")))
	emitter.reset()

	broker.ProcessMarketData(context.Background(), batch(askTick("AAPL", t0, "10", "1000")))

	require.Equal(t, []bus.EventId{bus.OrderCancelledEvent, bus.OrderFilledEvent}, emitter.ids())
	cancelled := emitter.events[0].data.(common.OrderCancelled)
	assert.Equal(t, common.OrderId(1), cancelled.OrderId)
	assert.Equal(t, "insufficient funds", cancelled.Reason)
	assert.Empty(t, broker.ActiveOrders())
}

func TestBroker_FillExceptionCancelsOnlyThatOrder(t *testing.T) {
	emitter := &recordingEmitter{}
	faulty := exchange.CostModel{
		SlippageModel: exchange.SlippageFunc(func(common.Order) (fixed.Point, error) {
			panic("broken slippage model")
		}),
	}
	model := exchange.NewStaticBrokerModel(exchange.CostModel{}).Override("TSLA", faulty)
	broker := NewBroker(emitter, WithHighLiquidity(), WithBrokerModel(model))

	bad := newOrder(1, common.OrderTypeMarket, "1")
	bad.Symbol = "TSLA"
	require.True(t, broker.SubmitOrder(bad))
	require.True(t, broker.SubmitOrder(newOrder(2, common.OrderTypeMarket, "1")))
	emitter.reset()

	broker.ProcessMarketData(context.Background(), batch(
		askTick("TSLA", t0, "200", "10"),
		askTick("AAPL", t0, "10", "10"),
	))

	require.Equal(t, []bus.EventId{bus.OrderCancelledEvent, bus.OrderFilledEvent}, emitter.ids())
	assert.Equal(t, "exception during fill processing", emitter.events[0].data.(common.OrderCancelled).Reason)
	assert.Empty(t, broker.ActiveOrders())
}

func TestBroker_ExpiredAndInvalidOrders(t *testing.T) {
	emitter := &recordingEmitter{}
	broker := NewBroker(emitter, WithHighLiquidity())

	day := newOrder(1, common.OrderTypeMarket, "1")
	day.TimeInForce = common.TimeInForceDay
	require.True(t, broker.SubmitOrder(day))

	invalid := newOrder(2, common.OrderTypeLimit, "1")
	require.True(t, broker.SubmitOrder(invalid))
	emitter.reset()

	broker.ProcessMarketData(context.Background(), batch(askTick("AAPL", t0.AddDate(0, 0, 1), "10", "10")))

	require.Equal(t, []bus.EventId{bus.OrderCancelledEvent, bus.OrderCancelledEvent}, emitter.ids())
	expired := emitter.events[0].data.(common.OrderCancelled)
	assert.Equal(t, "Order expired", expired.Reason)
	assert.Equal(t, common.OrderStateCancelled, expired.Order.State)
	rejected := emitter.events[1].data.(common.OrderCancelled)
	assert.Equal(t, common.OrderStateInvalid, rejected.Order.State)
	assert.Empty(t, broker.ActiveOrders())
}

func TestBroker_ImmediateOrCancelRemainder(t *testing.T) {
	emitter := &recordingEmitter{}
	broker := NewBroker(emitter)

	order := newOrder(1, common.OrderTypeMarket, "10")
	order.FillPolicy = common.FillPolicyImmediateOrCancel
	require.True(t, broker.SubmitOrder(order))
	emitter.reset()

	broker.ProcessMarketData(context.Background(), batch(askTick("AAPL", t0, "10", "4")))

	require.Equal(t, []bus.EventId{bus.OrderPartiallyFilledEvent, bus.OrderCancelledEvent}, emitter.ids())
	assert.Empty(t, broker.ActiveOrders())
}

func TestBroker_SecuritiesAndVenueName(t *testing.T) {
	emitter := &recordingEmitter{}
	broker := NewBroker(emitter, WithHighLiquidity(), WithSecurities(nyse(t)), WithVenueName("paper"))

	require.True(t, broker.SubmitOrder(newOrder(1, common.OrderTypeMarket, "1")))
	other := newOrder(2, common.OrderTypeMarket, "1")
	other.Symbol = "BTCUSDT"
	require.True(t, broker.SubmitOrder(other))
	emitter.reset()

	saturday := time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC)
	broker.ProcessMarketData(context.Background(), batch(
		askTick("AAPL", saturday, "10", "10"),
		askTick("BTCUSDT", saturday, "40000", "10"),
	))

	require.Equal(t, []bus.EventId{bus.OrderFilledEvent}, emitter.ids())
	filled := emitter.last().data.(common.OrderFilled)
	assert.Equal(t, common.OrderId(2), filled.OrderId)
	assert.Equal(t, "paper", filled.Fill.Venue)
	assert.Len(t, broker.ActiveOrders(), 1)
}

func TestBroker_OnOrderWithRouter(t *testing.T) {
	router := bus.NewRouter(100)
	broker := NewBroker(router, WithHighLiquidity())

	var fills []common.Fill
	router.OnOrder = broker.OnOrder
	router.OnOrderFilled = func(_ context.Context, filled common.OrderFilled) {
		fills = append(fills, filled.Fill)
	}

	order := newOrder(1, common.OrderTypeMarket, "3")
	order.Command = common.OrderCommandSubmit
	require.NoError(t, router.Post(bus.OrderEvent, order))
	require.NoError(t, router.Drain(context.Background()))
	require.Len(t, broker.ActiveOrders(), 1)

	broker.ProcessMarketData(context.Background(), batch(askTick("AAPL", t0, "10", "10")))
	require.NoError(t, router.Drain(context.Background()))

	require.Len(t, fills, 1)
	assertPoint(t, "3", fills[0].Quantity)

	cancel := common.Order{Id: 7, Command: common.OrderCommandCancel}
	require.NoError(t, router.Post(bus.OrderEvent, cancel))
	require.NoError(t, router.Drain(context.Background()))
}

func TestBroker_FillsWithinBatchReserveFunds(t *testing.T) {
	emitter := &recordingEmitter{}
	funds := &cashChecker{cash: p("500")}
	broker := NewBroker(emitter, WithHighLiquidity(), WithFundsChecker(funds))

	require.True(t, broker.SubmitOrder(newOrder(1, common.OrderTypeMarket, "30")))
	require.True(t, broker.SubmitOrder(newOrder(2, common.OrderTypeMarket, "30")))
	emitter.reset()

	broker.ProcessMarketData(context.Background(), batch(askTick("AAPL", t0, "10", "1000")))

	require.Equal(t, []bus.EventId{bus.OrderFilledEvent, bus.OrderCancelledEvent}, emitter.ids())
	cancelled := emitter.events[1].data.(common.OrderCancelled)
	assert.Equal(t, common.OrderId(2), cancelled.OrderId)
	assert.Equal(t, "insufficient funds", cancelled.Reason)
	assertPoint(t, "200", funds.cash)
}

func TestBroker_LimitBuyFundsAtLimitPrice(t *testing.T) {
	tests := []struct {
		name  string
		typ   common.OrderType
		qty   string
		limit string
		want  string
	}{
		{"limit buy below ask", common.OrderTypeLimit, "1", "9", "9"},
		{"limit buy above ask", common.OrderTypeLimit, "1", "12", "10"},
		{"stop limit buy below ask", common.OrderTypeStopLimit, "1", "9", "9"},
		{"market buy", common.OrderTypeMarket, "1", "", "10"},
		{"limit sell", common.OrderTypeLimit, "-1", "11", "9.98"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			funds := &cashChecker{cash: p("1000")}
			broker := NewBroker(&recordingEmitter{}, WithFundsChecker(funds))

			order := newOrder(1, tt.typ, tt.qty)
			if tt.limit != "" {
				order.LimitPrice = p(tt.limit)
			}
			order.StopPrice = p("20")
			require.True(t, broker.SubmitOrder(order))

			broker.ProcessMarketData(context.Background(), batch(askTick("AAPL", t0, "10", "1000")))

			require.NotEmpty(t, funds.prices)
			assertPoint(t, tt.want, funds.prices[0])
		})
	}
}

func TestBroker_EmitterMayCallBack(t *testing.T) {
	var broker *Broker
	var seen []bus.EventId
	broker = NewBroker(emitterFunc(func(id bus.EventId, _ any) error {
		seen = append(seen, id)
		if id == bus.OrderFilledEvent {
			broker.CancelOrder(2)
		}
		return nil
	}), WithHighLiquidity())

	require.True(t, broker.SubmitOrder(newOrder(1, common.OrderTypeMarket, "1")))
	limit := newOrder(2, common.OrderTypeLimit, "1")
	limit.LimitPrice = p("5")
	require.True(t, broker.SubmitOrder(limit))

	broker.ProcessMarketData(context.Background(), batch(askTick("AAPL", t0, "10", "10")))

	assert.Equal(t, []bus.EventId{
		bus.OrderSubmittedEvent,
		bus.OrderSubmittedEvent,
		bus.OrderFilledEvent,
		bus.OrderCancelledEvent,
	}, seen)
	assert.Empty(t, broker.ActiveOrders())
}

func TestBroker_RefusedFillEventIsReported(t *testing.T) {
	broker := NewBroker(emitterFunc(func(id bus.EventId, _ any) error {
		if id == bus.OrderFilledEvent {
			return bus.ErrCapacityReached
		}
		return nil
	}), WithHighLiquidity())

	require.True(t, broker.SubmitOrder(newOrder(1, common.OrderTypeMarket, "1")))
	require.NoError(t, broker.Err())

	broker.ProcessMarketData(context.Background(), batch(askTick("AAPL", t0, "10", "10")))

	assert.ErrorIs(t, broker.Err(), bus.ErrCapacityReached)
}
