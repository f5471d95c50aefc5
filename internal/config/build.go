package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/data/db/psql"
	"github.com/peter-kozarec/simex/pkg/datasource/synthetic"
	"github.com/peter-kozarec/simex/pkg/exchange"
	"github.com/peter-kozarec/simex/pkg/middleware"
	"github.com/peter-kozarec/simex/pkg/simulation"
)

var (
	ErrUnknownVenue = errors.New("unknown venue")
	ErrUnknownValue = errors.New("unknown value")
)

var orderTypes = map[string]common.OrderType{
	"market":          common.OrderTypeMarket,
	"limit":           common.OrderTypeLimit,
	"stop":            common.OrderTypeStop,
	"stop_limit":      common.OrderTypeStopLimit,
	"market_on_open":  common.OrderTypeMarketOnOpen,
	"market_on_close": common.OrderTypeMarketOnClose,
}

var timesInForce = map[string]common.TimeInForce{
	"gtc": common.TimeInForceGoodTillCancel,
	"day": common.TimeInForceDay,
	"gtd": common.TimeInForceGoodTillDate,
	"moc": common.TimeInForceMarketOnClose,
}

var fillPolicies = map[string]common.FillPolicy{
	"immediate": common.FillPolicyImmediate,
	"fok":       common.FillPolicyFillOrKill,
	"aon":       common.FillPolicyAllOrNone,
	"ioc":       common.FillPolicyImmediateOrCancel,
}

var monitorFlags = map[string]middleware.MonitorFlags{
	"ticks":                   middleware.MonitorTicks,
	"bars":                    middleware.MonitorBars,
	"quote_bars":              middleware.MonitorQuoteBars,
	"equity":                  middleware.MonitorEquity,
	"balance":                 middleware.MonitorBalance,
	"orders":                  middleware.MonitorOrders,
	"orders_submitted":        middleware.MonitorOrdersSubmitted,
	"orders_cancelled":        middleware.MonitorOrdersCancelled,
	"orders_updated":          middleware.MonitorOrdersUpdated,
	"orders_filled":           middleware.MonitorOrdersFilled,
	"orders_partially_filled": middleware.MonitorOrdersPartiallyFilled,
	"trades":                  middleware.MonitorTrades,
	"position_snapshots":      middleware.MonitorPositionSnapshots,
	"all":                     middleware.MonitorAll,
}

// Simulation returns the simulator settings of the run.
func (c *Config) Simulation() simulation.Configuration {
	return simulation.Configuration{
		FundId:           c.Run.FundId,
		StartBalance:     c.Run.StartBalance,
		AllowShort:       c.Run.AllowShort,
		SnapshotInterval: c.Run.SnapshotInterval.Duration,
		BarPeriod:        common.BarPeriod(c.Run.BarPeriod.Duration),
	}
}

// BuildVenues returns the configured venues keyed by name.
func (c *Config) BuildVenues() (map[string]exchange.Venue, error) {
	venues := make(map[string]exchange.Venue, len(c.Venues))
	for _, v := range c.Venues {
		if v.AlwaysOpen {
			venues[v.Name] = exchange.ContinuousVenue(v.Name)
			continue
		}

		var weekdays []time.Weekday
		for _, day := range v.Weekdays {
			wd, ok := parseWeekday(day)
			if !ok {
				return nil, fmt.Errorf("venue %s: %w: weekday %q", v.Name, ErrUnknownValue, day)
			}
			weekdays = append(weekdays, wd)
		}

		timezone := v.Timezone
		if timezone == "" {
			timezone = "UTC"
		}
		venue, err := exchange.NewVenue(v.Name, timezone, v.Open.Duration, v.Close.Duration, weekdays...)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", v.Name, err)
		}
		venues[v.Name] = venue
	}
	return venues, nil
}

// BuildSecurities binds each configured security to its venue. Securities
// without a venue trade continuously on the fallback venue.
func (c *Config) BuildSecurities() ([]exchange.Security, error) {
	venues, err := c.BuildVenues()
	if err != nil {
		return nil, err
	}

	securities := make([]exchange.Security, 0, len(c.Securities))
	for _, s := range c.Securities {
		venue := exchange.ContinuousVenue(c.Broker.FallbackVenue)
		if s.Venue != "" {
			v, ok := venues[s.Venue]
			if !ok {
				return nil, fmt.Errorf("security %s: %w %q", s.Symbol, ErrUnknownVenue, s.Venue)
			}
			venue = v
		}

		securities = append(securities, exchange.NewSecurity(exchange.SymbolInfo{
			SymbolName:    strings.ToUpper(s.Symbol),
			Class:         exchange.SymbolClass(s.Class),
			QuoteCurrency: s.QuoteCurrency,
			Digits:        s.Digits,
			PipSize:       s.PipSize,
			ContractSize:  s.ContractSize,
			LotSize:       s.LotSize,
		}, venue))
	}
	return securities, nil
}

// BuildBrokerModel returns the default cost model with the per-symbol
// overrides.
func (c *Config) BuildBrokerModel() (*exchange.StaticBrokerModel, error) {
	def, err := c.Costs.model()
	if err != nil {
		return nil, fmt.Errorf("costs: %w", err)
	}

	model := exchange.NewStaticBrokerModel(def)
	for _, o := range c.Overrides {
		cost, err := o.Costs.model()
		if err != nil {
			return nil, fmt.Errorf("overrides %s: %w", o.Symbol, err)
		}
		model.Override(o.Symbol, cost)
	}
	return model, nil
}

// BuildOrders converts the scheduled orders. Ids and the fund are assigned
// by the simulator.
func (c *Config) BuildOrders() ([]common.Order, error) {
	orders := make([]common.Order, 0, len(c.Orders))
	for i, o := range c.Orders {
		order, err := o.order()
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (c *Config) MonitorFlags() (middleware.MonitorFlags, error) {
	return c.Monitor.flags()
}

// LedgerDSN prefers the explicit dsn over the individual fields.
func (c *Config) LedgerDSN() string {
	if c.Ledger.DSN != "" {
		return c.Ledger.DSN
	}
	return psql.DSN(c.Ledger.Host, c.Ledger.Port, c.Ledger.User, c.Ledger.Password, c.Ledger.Database)
}

// HistoricalPath is the binary tick file of symbol.
func (c *Config) HistoricalPath(symbol string) string {
	return filepath.Join(c.Data.Directory, strings.ToUpper(symbol)+".bin")
}

// SyntheticParams derives the generator of the i-th symbol. Each symbol
// gets its own seed.
func (c *Config) SyntheticParams(i int) synthetic.Params {
	s := c.Data.Synthetic
	return synthetic.Params{
		Symbol:     strings.ToUpper(c.Data.Symbols[i]),
		Start:      c.Run.Start,
		StartPrice: s.StartPrice,
		Spread:     s.Spread,
		Drift:      s.Drift,
		Volatility: s.Volatility,
		Interval:   s.Interval.Duration,
		Steps:      s.Steps,
		AvgVolume:  s.AvgVolume,
		Digits:     s.Digits,
		Seed:       s.Seed + uint64(i),
	}
}

func (c CostConfig) model() (exchange.CostModel, error) {
	cost := exchange.CostModel{
		LatencyModel:  exchange.FixedLatency(c.Latency.Duration),
		SlippageModel: exchange.FixedAbsoluteSlippage{Amount: c.Slippage},
		SpreadModel:   exchange.FixedSpread{Half: c.Spread},
	}
	if c.VolatilityFactor.IsPositive() {
		cost.SlippageModel = exchange.NewVolatilitySlippage(c.VolatilityWindow, c.Slippage, c.VolatilityFactor)
	}

	var fees exchange.CompositeFee
	for _, f := range c.Fees {
		fee, err := f.model()
		if err != nil {
			return exchange.CostModel{}, err
		}
		fees = append(fees, fee)
	}
	switch len(fees) {
	case 0:
		cost.FeeModel = exchange.CommissionFree{}
	case 1:
		cost.FeeModel = fees[0]
	default:
		cost.FeeModel = fees
	}
	return cost, nil
}

func (f FeeConfig) model() (exchange.FeeModel, error) {
	if f.Rate.IsNegative() || f.Min.IsNegative() || f.Max.IsNegative() {
		return nil, fmt.Errorf("%w: rate %s min %s max %s", exchange.ErrNegativeFee, f.Rate, f.Min, f.Max)
	}

	switch strings.ToLower(f.Kind) {
	case "free":
		return exchange.CommissionFree{}, nil
	case "percentage":
		return exchange.PercentageFee{Rate: f.Rate}, nil
	case "binance":
		return exchange.BinanceSpotFee(), nil
	case "per_share":
		return exchange.PerShareFee{
			Rate:      f.Rate,
			Min:       f.Min,
			Max:       f.Max,
			Scale:     f.Scale,
			SellsOnly: f.SellsOnly,
		}, nil
	case "taf":
		return exchange.TradingActivityFee(), nil
	default:
		return nil, fmt.Errorf("%w: fee kind %q", ErrUnknownValue, f.Kind)
	}
}

func (o OrderConfig) order() (common.Order, error) {
	if o.Symbol == "" {
		return common.Order{}, errors.New("symbol must not be empty")
	}
	if o.Quantity.IsZero() {
		return common.Order{}, errors.New("quantity must not be zero")
	}

	orderType, err := lookup(orderTypes, o.Type, "market", "type")
	if err != nil {
		return common.Order{}, err
	}
	tif, err := lookup(timesInForce, o.TimeInForce, "gtc", "time_in_force")
	if err != nil {
		return common.Order{}, err
	}
	policy, err := lookup(fillPolicies, o.FillPolicy, "immediate", "fill_policy")
	if err != nil {
		return common.Order{}, err
	}

	return common.Order{
		Symbol:      strings.ToUpper(o.Symbol),
		Type:        orderType,
		Quantity:    o.Quantity,
		LimitPrice:  o.LimitPrice,
		StopPrice:   o.StopPrice,
		TimeInForce: tif,
		ExpireTime:  o.ExpireTime,
		FillPolicy:  policy,
		Comment:     o.Comment,
		CreatedTime: o.At,
		TimeStamp:   o.At,
	}, nil
}

func (m MonitorConfig) flags() (middleware.MonitorFlags, error) {
	flags := middleware.MonitorNone
	for _, name := range m.Events {
		flag, ok := monitorFlags[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return middleware.MonitorNone, fmt.Errorf("%w: event %q", ErrUnknownValue, name)
		}
		flags |= flag
	}
	return flags, nil
}

// lookup resolves a case-insensitive name, an empty name selects def.
func lookup[T any](values map[string]T, name, def, field string) (T, error) {
	if name == "" {
		name = def
	}
	v, ok := values[strings.ToLower(strings.ReplaceAll(name, "-", "_"))]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s %q", ErrUnknownValue, field, name)
	}
	return v, nil
}

func parseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(name)
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, true
		}
	}
	return time.Sunday, false
}
