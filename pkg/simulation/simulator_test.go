package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

func p(s string) fixed.Point { return fixed.MustParse(s) }

func assertPoint(t *testing.T, want string, got fixed.Point, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Eq(p(want)), append([]any{"expected %s, got %s", want, got}, msgAndArgs...)...)
}

func quote(offset time.Duration, bid, ask string) common.Tick {
	return common.Tick{
		Symbol:    "AAPL",
		TimeStamp: t0.Add(offset),
		Bid:       p(bid),
		Ask:       p(ask),
		BidVolume: p("100"),
		AskVolume: p("100"),
	}
}

func market(offset time.Duration, quantity string) common.Order {
	return common.Order{
		Symbol:      "AAPL",
		Type:        common.OrderTypeMarket,
		Quantity:    p(quantity),
		CreatedTime: t0.Add(offset),
	}
}

type harness struct {
	sim       *Simulator
	router    *bus.Router
	cancelled []common.OrderCancelled
	balances  []common.Balance
	snapshots []common.PositionSnapshot
}

func newHarness(t *testing.T, cfg Configuration) *harness {
	t.Helper()
	h := &harness{router: bus.NewRouter(1024)}
	h.sim = NewSimulator(zap.NewNop(), h.router, cfg, []string{"AAPL"})
	h.sim.Bind()
	h.router.OnOrderCancelled = func(_ context.Context, ev common.OrderCancelled) { h.cancelled = append(h.cancelled, ev) }
	h.router.OnBalance = func(_ context.Context, ev common.Balance) { h.balances = append(h.balances, ev) }
	h.router.OnPositionSnapshot = func(_ context.Context, ev common.PositionSnapshot) { h.snapshots = append(h.snapshots, ev) }
	return h
}

func (h *harness) feed(t *testing.T, ticks ...common.Tick) {
	t.Helper()
	for _, tick := range ticks {
		require.NoError(t, h.router.Post(bus.TickEvent, tick))
		require.NoError(t, h.router.Drain(context.Background()))
	}
}

func defaultConfig() Configuration {
	return Configuration{FundId: "fund", StartBalance: p("100000")}
}

func TestSimulator_RoundTrip(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.sim.Schedule(market(0, "10"), market(2*time.Second, "-10"))

	h.feed(t,
		quote(0, "100.00", "100.02"),
		quote(time.Second, "100.00", "100.02"),
		quote(2*time.Second, "101.00", "101.02"),
		quote(3*time.Second, "101.00", "101.02"),
	)

	trades := h.sim.Audit().Trades()
	require.Len(t, trades, 1)
	assertPoint(t, "9.8", trades[0].NetPnL)
	assert.Equal(t, "AAPL", trades[0].Symbol)
	assert.Equal(t, common.DirectionLong, trades[0].Direction)

	assertPoint(t, "100009.8", h.sim.Account().Cash())
	assertPoint(t, "100009.8", h.sim.Account().Equity())
	assert.Equal(t, 0, h.sim.Holdings().Count())
	assert.Empty(t, h.sim.Broker().ActiveOrders())

	require.Len(t, h.balances, 2)
	assertPoint(t, "98999.8", h.balances[0].Value)
	require.Len(t, h.snapshots, 2)
	assertPoint(t, "10", h.snapshots[0].Quantity)
	assertPoint(t, "0", h.snapshots[1].Quantity)

	report, err := h.sim.Close(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalTrades)
	assert.Equal(t, 1, report.WinningTrades)
	assertPoint(t, "9.8", report.NetPnL)
	assertPoint(t, "100009.8", report.FinalEquity)
}

func TestSimulator_OrdersWaitForTheirTime(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.sim.Schedule(market(time.Minute, "5"))

	h.feed(t, quote(0, "100", "101"), quote(time.Second, "100", "101"))

	assert.Empty(t, h.sim.Broker().ActiveOrders())
	assert.Equal(t, 0, h.sim.Holdings().Count())
}

func TestSimulator_InsufficientFunds(t *testing.T) {
	cfg := defaultConfig()
	cfg.StartBalance = p("500")
	h := newHarness(t, cfg)
	h.sim.Schedule(market(0, "10"))

	h.feed(t, quote(0, "100.00", "100.02"), quote(time.Second, "100.00", "100.02"))

	require.Len(t, h.cancelled, 1)
	assert.Equal(t, "insufficient funds", h.cancelled[0].Reason)
	assertPoint(t, "500", h.sim.Account().Cash())
}

func TestSimulator_ShortRequiresPermission(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.sim.Schedule(market(0, "-5"))
	h.feed(t, quote(0, "100", "101"), quote(time.Second, "100", "101"))
	require.Len(t, h.cancelled, 1)

	cfg := defaultConfig()
	cfg.AllowShort = true
	h = newHarness(t, cfg)
	h.sim.Schedule(market(0, "-5"))
	h.feed(t, quote(0, "100", "101"), quote(time.Second, "100", "101"), quote(2*time.Second, "98", "99"))

	assert.Empty(t, h.cancelled)
	snapshot, err := h.sim.Holdings().Find("fund", "AAPL")
	require.NoError(t, err)
	assertPoint(t, "-5", snapshot.Quantity)
	assertPoint(t, "100500", h.sim.Account().Cash())
	assertPoint(t, "100007.5", h.sim.Account().Equity())
}

func TestSimulator_BooksFollowTicks(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.feed(t, quote(0, "100.00", "100.02"), quote(time.Second, "100.01", "100.03"))

	book, ok := h.sim.Books().Get("AAPL")
	require.True(t, ok)
	assertPoint(t, "100.01", book.BestBid())
	assertPoint(t, "100.03", book.BestAsk())
	assert.Equal(t, t0.Add(time.Second), h.sim.Now())
}

func TestSimulator_QuoteBarsReachTheBroker(t *testing.T) {
	cfg := defaultConfig()
	cfg.BarPeriod = common.BarPeriodM1
	h := newHarness(t, cfg)

	var bars []common.QuoteBar
	next := h.router.OnQuoteBar
	h.router.OnQuoteBar = func(ctx context.Context, qb common.QuoteBar) {
		bars = append(bars, qb)
		next(ctx, qb)
	}

	h.feed(t, quote(0, "100", "101"), quote(30*time.Second, "102", "103"), quote(time.Minute, "101", "102"))

	require.Len(t, bars, 1)
	assertPoint(t, "102", bars[0].Bid.High)
	assert.Equal(t, t0.Add(time.Minute), bars[0].TimeStamp)

	_, err := h.sim.Close(context.Background())
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestSimulator_CloseWithoutData(t *testing.T) {
	h := newHarness(t, defaultConfig())
	report, err := h.sim.Close(context.Background())
	require.NoError(t, err)
	assertPoint(t, "100000", report.FinalEquity)
	assert.Equal(t, 0, report.TotalTrades)
}

func TestSimulator_OrdersShareCashWithinBatch(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.sim.Schedule(market(0, "600"), market(0, "600"))

	deep := func(offset time.Duration) common.Tick {
		tick := quote(offset, "100", "100")
		tick.BidVolume = p("10000")
		tick.AskVolume = p("10000")
		return tick
	}
	h.feed(t, deep(0), deep(time.Second), deep(2*time.Second))

	require.Len(t, h.cancelled, 1)
	assert.Equal(t, "insufficient funds", h.cancelled[0].Reason)
	assert.Equal(t, common.OrderId(2), h.cancelled[0].OrderId)
	assertPoint(t, "40000", h.sim.Account().Cash())
	assertPoint(t, "40000", h.sim.Account().Available())

	snapshot, err := h.sim.Holdings().Find("fund", "AAPL")
	require.NoError(t, err)
	assertPoint(t, "600", snapshot.Quantity)
}

func TestSimulator_CloseReportsLostFills(t *testing.T) {
	h := &harness{router: bus.NewRouter(1)}
	h.sim = NewSimulator(zap.NewNop(), h.router, defaultConfig(), nil)
	h.sim.Bind()

	order := market(0, "1")
	order.Id = 1
	order.FundId = "fund"
	order.State = common.OrderStateNew
	require.True(t, h.sim.Broker().SubmitOrder(order))
	require.NoError(t, h.router.Drain(context.Background()))

	tick := quote(0, "100", "100")
	require.NoError(t, h.router.Post(bus.TickEvent, tick))

	updates := common.NewDataUpdates(t0)
	updates.AddTick(tick)
	h.sim.Broker().ProcessMarketData(context.Background(), updates)

	_, err := h.sim.Close(context.Background())
	assert.ErrorIs(t, err, bus.ErrCapacityReached)
}
