package simulation

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/exchange/sandbox"
	"github.com/peter-kozarec/simex/pkg/orderbook"
	"github.com/peter-kozarec/simex/pkg/position"
	"github.com/peter-kozarec/simex/pkg/tools/bar"
	"github.com/peter-kozarec/simex/pkg/utility"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
	"go.uber.org/zap"
)

const simulatorComponentName = "simulation.simulator"

// Simulator drives one backtest: market data updates the order books and
// is matched by the broker, fills flow into the holdings and the account.
// Every handler runs on the router goroutine.
type Simulator struct {
	logger   *zap.Logger
	router   *bus.Router
	books    *orderbook.Registry
	broker   *sandbox.Broker
	holdings *position.Holdings
	account  *Account
	audit    *Audit
	bars     *bar.Builder

	orderIds  utility.Sequence
	scheduled []common.Order

	now         time.Time
	lastBalance fixed.Point
	lastEquity  fixed.Point
}

// NewSimulator builds the broker on router with the given options and the
// account as its funds checker.
func NewSimulator(logger *zap.Logger, router *bus.Router, cfg Configuration, symbols []string, options ...sandbox.Option) *Simulator {
	holdings := position.NewHoldings()
	account := NewAccount(cfg.FundId, cfg.StartBalance, holdings, cfg.AllowShort)

	s := &Simulator{
		logger:      logger,
		router:      router,
		books:       orderbook.NewRegistry(),
		holdings:    holdings,
		account:     account,
		audit:       NewAudit(cfg.SnapshotInterval),
		lastBalance: cfg.StartBalance,
		lastEquity:  cfg.StartBalance,
	}

	options = append(options, sandbox.WithFundsChecker(account))
	s.broker = sandbox.NewBroker(router, options...)

	if cfg.BarPeriod > 0 {
		var series []bar.Option
		for _, symbol := range symbols {
			series = append(series, bar.With(symbol, cfg.BarPeriod))
		}
		s.bars = bar.NewBuilder(router, series...)
	}

	return s
}

// Bind assigns the simulator handlers to the router. Middleware can wrap
// them afterwards.
func (s *Simulator) Bind() {
	s.router.OnTick = s.OnTick
	s.router.OnQuoteBar = s.OnQuoteBar
	s.router.OnBar = s.OnBar
	s.router.OnOrder = s.broker.OnOrder
	s.router.OnOrderFilled = s.OnOrderFilled
	s.router.OnOrderPartiallyFilled = s.OnOrderPartiallyFilled
	s.router.OnTrade = s.OnTrade
}

func (s *Simulator) Broker() *sandbox.Broker      { return s.broker }
func (s *Simulator) Books() *orderbook.Registry   { return s.books }
func (s *Simulator) Holdings() *position.Holdings { return s.holdings }
func (s *Simulator) Account() *Account            { return s.account }
func (s *Simulator) Audit() *Audit                { return s.audit }
func (s *Simulator) Now() time.Time               { return s.now }

// Schedule queues orders to be posted once simulated time reaches their
// CreatedTime. Orders without an id get the next one of the run, orders
// without a fund are booked on the account.
func (s *Simulator) Schedule(orders ...common.Order) {
	for _, order := range orders {
		if order.Id == 0 {
			order.Id = s.orderIds.Next()
		}
		if order.FundId == "" {
			order.FundId = s.account.FundId()
		}
		order.Command = common.OrderCommandSubmit
		s.scheduled = append(s.scheduled, order)
	}
	slices.SortStableFunc(s.scheduled, func(a, b common.Order) int {
		return a.CreatedTime.Compare(b.CreatedTime)
	})
}

func (s *Simulator) OnTick(ctx context.Context, tick common.Tick) {
	s.advance(tick.TimeStamp)

	book := s.books.GetOrCreate(tick.Symbol)
	if tick.Bid.IsPositive() {
		book.SetBestBook(true, tick.Bid, tick.BidVolume)
	}
	if tick.Ask.IsPositive() {
		book.SetBestBook(false, tick.Ask, tick.AskVolume)
	}

	if s.bars != nil {
		s.bars.OnTick(ctx, tick)
	}

	updates := common.NewDataUpdates(tick.TimeStamp)
	updates.AddTick(tick)
	s.broker.ProcessMarketData(ctx, updates)

	s.mark(tick.Symbol, markPrice(tick))
	s.publishAccount(tick.TimeStamp)
}

func (s *Simulator) OnQuoteBar(ctx context.Context, qb common.QuoteBar) {
	updates := common.NewDataUpdates(qb.TimeStamp)
	updates.AddQuoteBar(qb)
	s.broker.ProcessMarketData(ctx, updates)
}

func (s *Simulator) OnBar(ctx context.Context, b common.Bar) {
	s.advance(b.TimeStamp)

	updates := common.NewDataUpdates(b.TimeStamp)
	updates.AddBar(b)
	s.broker.ProcessMarketData(ctx, updates)

	s.mark(b.Symbol, b.Close)
	s.publishAccount(b.TimeStamp)
}

func (s *Simulator) OnOrderFilled(_ context.Context, filled common.OrderFilled) {
	s.onFill(filled.Fill)
}

func (s *Simulator) OnOrderPartiallyFilled(_ context.Context, filled common.OrderPartiallyFilled) {
	s.onFill(filled.Fill)
}

func (s *Simulator) OnTrade(_ context.Context, trade common.Trade) {
	s.audit.AddTrade(trade)
}

// Close flushes open bars, drains the router and records a final account
// snapshot. Fill events the router refused during the run fail the close.
func (s *Simulator) Close(ctx context.Context) (Report, error) {
	if s.bars != nil {
		s.bars.Flush(ctx)
	}
	if err := s.router.Drain(ctx); err != nil {
		return Report{}, err
	}
	if err := s.broker.Err(); err != nil {
		return Report{}, fmt.Errorf("fills lost by the broker: %w", err)
	}
	s.audit.addSnapshot(s.account.Cash(), s.account.Equity(), s.now)
	return s.audit.GenerateReport()
}

func (s *Simulator) PrintDetails() {
	s.logger.Info("simulation details",
		zap.String("fund", s.account.FundId()),
		zap.String("cash", s.account.Cash().String()),
		zap.String("equity", s.account.Equity().String()),
		zap.Int("open_positions", s.holdings.Count()),
		zap.Int("active_orders", len(s.broker.ActiveOrders())),
		zap.Strings("books", s.books.Tickers()),
		zap.Time("simulation_time", s.now))
}

// advance moves simulated time forward and releases due orders.
func (s *Simulator) advance(ts time.Time) {
	if ts.After(s.now) {
		s.now = ts
	}

	due := 0
	for due < len(s.scheduled) && !s.scheduled[due].CreatedTime.After(s.now) {
		order := s.scheduled[due]
		order.TimeStamp = order.CreatedTime
		order.Source = simulatorComponentName
		order.ExecutionId = utility.GetExecutionID()
		order.TraceID = utility.CreateTraceID()
		if err := s.router.Post(bus.OrderEvent, order); err != nil {
			s.logger.Warn("unable to post scheduled order", zap.Error(err), zap.Int64("order_id", order.Id))
		}
		due++
	}
	s.scheduled = s.scheduled[due:]
}

func (s *Simulator) onFill(fill common.Fill) {
	if fill.FundId == s.account.FundId() {
		s.account.Apply(fill)
	}

	trade, err := s.holdings.Apply(fill)
	if err != nil {
		s.logger.Warn("unable to apply fill", zap.Error(err), zap.Int64("order_id", fill.OrderId))
		return
	}

	if trade != nil {
		trade.Source = simulatorComponentName
		trade.Symbol = fill.Symbol
		trade.ExecutionId = utility.GetExecutionID()
		trade.TraceID = utility.CreateTraceID()
		trade.TimeStamp = fill.TimeStamp
		s.post(bus.TradeEvent, *trade)
	}

	if snapshot, err := s.holdings.Find(fill.FundId, fill.Symbol); err == nil {
		snapshot.Source = simulatorComponentName
		snapshot.ExecutionId = utility.GetExecutionID()
		snapshot.TraceID = utility.CreateTraceID()
		snapshot.TimeStamp = fill.TimeStamp
		s.post(bus.PositionSnapshotEvent, snapshot)
	}

	s.publishAccount(fill.TimeStamp)
}

func (s *Simulator) mark(symbol string, price fixed.Point) {
	if price.IsPositive() {
		s.holdings.AdjustPrices(symbol, price)
	}
}

// publishAccount posts balance and equity when they changed and feeds the
// audit.
func (s *Simulator) publishAccount(ts time.Time) {
	balance := s.account.Cash()
	equity := s.account.Equity()

	if !balance.Eq(s.lastBalance) {
		s.lastBalance = balance
		s.post(bus.BalanceEvent, common.Balance{
			Source:      simulatorComponentName,
			Account:     s.account.FundId(),
			ExecutionId: utility.GetExecutionID(),
			TraceID:     utility.CreateTraceID(),
			TimeStamp:   ts,
			Value:       balance,
		})
	}
	if !equity.Eq(s.lastEquity) {
		s.lastEquity = equity
		s.post(bus.EquityEvent, common.Equity{
			Source:      simulatorComponentName,
			Account:     s.account.FundId(),
			ExecutionId: utility.GetExecutionID(),
			TraceID:     utility.CreateTraceID(),
			TimeStamp:   ts,
			Value:       equity,
		})
	}

	s.audit.AddAccountSnapshot(balance, equity, ts)
}

func (s *Simulator) post(id bus.EventId, data any) {
	if err := s.router.Post(id, data); err != nil {
		s.logger.Warn("unable to post event", zap.Error(err), zap.String("event", id.String()))
	}
}

// markPrice values positions at the mid quote, or the last trade when one
// side is missing.
func markPrice(tick common.Tick) fixed.Point {
	if tick.Bid.IsPositive() && tick.Ask.IsPositive() {
		return tick.Mid()
	}
	if tick.Last.IsPositive() {
		return tick.Last
	}
	return fixed.Max(tick.Bid, tick.Ask)
}
