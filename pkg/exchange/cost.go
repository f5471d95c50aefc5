package exchange

import (
	"strings"
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

// LatencyModel returns the delay before an order becomes visible at the venue.
type LatencyModel interface {
	Latency(order common.Order) (time.Duration, error)
}

// SlippageModel returns a signed price adjustment added to a fill price.
type SlippageModel interface {
	Slippage(order common.Order) (fixed.Point, error)
}

// SpreadModel returns a signed price adjustment on top of the quoted spread.
type SpreadModel interface {
	AdditionalSpread(order common.Order) (fixed.Point, error)
}

// FeeModel returns the commission and fees for filling quantity at price.
type FeeModel interface {
	CommissionAndFees(order common.Order, quantity, price fixed.Point) (fixed.Point, error)
}

type LatencyFunc func(common.Order) (time.Duration, error)
type SlippageFunc func(common.Order) (fixed.Point, error)
type SpreadFunc func(common.Order) (fixed.Point, error)
type FeeFunc func(common.Order, fixed.Point, fixed.Point) (fixed.Point, error)

func (f LatencyFunc) Latency(o common.Order) (time.Duration, error)       { return f(o) }
func (f SlippageFunc) Slippage(o common.Order) (fixed.Point, error)       { return f(o) }
func (f SpreadFunc) AdditionalSpread(o common.Order) (fixed.Point, error) { return f(o) }
func (f FeeFunc) CommissionAndFees(o common.Order, q, p fixed.Point) (fixed.Point, error) {
	return f(o, q, p)
}

// CostModel bundles the cost strategies applied to one security. Nil
// members cost nothing.
type CostModel struct {
	LatencyModel  LatencyModel
	SlippageModel SlippageModel
	SpreadModel   SpreadModel
	FeeModel      FeeModel
}

func (c CostModel) Latency(order common.Order) (time.Duration, error) {
	if c.LatencyModel == nil {
		return 0, nil
	}
	return c.LatencyModel.Latency(order)
}

func (c CostModel) Slippage(order common.Order) (fixed.Point, error) {
	if c.SlippageModel == nil {
		return fixed.Zero, nil
	}
	return c.SlippageModel.Slippage(order)
}

func (c CostModel) AdditionalSpread(order common.Order) (fixed.Point, error) {
	if c.SpreadModel == nil {
		return fixed.Zero, nil
	}
	return c.SpreadModel.AdditionalSpread(order)
}

func (c CostModel) CommissionAndFees(order common.Order, quantity, price fixed.Point) (fixed.Point, error) {
	if c.FeeModel == nil {
		return fixed.Zero, nil
	}
	return c.FeeModel.CommissionAndFees(order, quantity, price)
}

// BrokerModel resolves the cost model of a security.
type BrokerModel interface {
	CostModel(security Security) CostModel
}

// StaticBrokerModel applies one cost model to every security unless a
// per-symbol override exists.
type StaticBrokerModel struct {
	Default   CostModel
	Overrides map[string]CostModel
}

func NewStaticBrokerModel(def CostModel) *StaticBrokerModel {
	return &StaticBrokerModel{
		Default:   def,
		Overrides: make(map[string]CostModel),
	}
}

func (m *StaticBrokerModel) Override(symbol string, model CostModel) *StaticBrokerModel {
	m.Overrides[strings.ToUpper(symbol)] = model
	return m
}

func (m *StaticBrokerModel) CostModel(security Security) CostModel {
	if model, ok := m.Overrides[strings.ToUpper(security.SymbolName)]; ok {
		return model
	}
	return m.Default
}
