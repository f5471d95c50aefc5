package exchange

import (
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

var (
	ErrNegativeLatency = errors.New("negative latency")
	ErrNegativeFee     = errors.New("negative fee")
)

// FixedLatency delays every order by the same duration.
type FixedLatency time.Duration

func (l FixedLatency) Latency(common.Order) (time.Duration, error) {
	if l < 0 {
		return 0, fmt.Errorf("%w: %v", ErrNegativeLatency, time.Duration(l))
	}
	return time.Duration(l), nil
}

// FixedAbsoluteSlippage worsens every fill by a fixed price amount: buys pay
// more, sells receive less.
type FixedAbsoluteSlippage struct {
	Amount fixed.Point
}

func (s FixedAbsoluteSlippage) Slippage(order common.Order) (fixed.Point, error) {
	return directional(order, s.Amount), nil
}

// FixedSpread widens the quoted spread by Half on each side.
type FixedSpread struct {
	Half fixed.Point
}

func (s FixedSpread) AdditionalSpread(order common.Order) (fixed.Point, error) {
	return directional(order, s.Half), nil
}

// CommissionFree charges nothing.
type CommissionFree struct{}

func (CommissionFree) CommissionAndFees(common.Order, fixed.Point, fixed.Point) (fixed.Point, error) {
	return fixed.Zero, nil
}

// PercentageFee charges a rate of the traded value.
type PercentageFee struct {
	Rate fixed.Point
}

// BinanceSpotFee is the 0.1% taker fee.
func BinanceSpotFee() PercentageFee {
	return PercentageFee{Rate: fixed.FromInt(1, 3)}
}

func (f PercentageFee) CommissionAndFees(_ common.Order, quantity, price fixed.Point) (fixed.Point, error) {
	if f.Rate.IsNegative() {
		return fixed.Zero, fmt.Errorf("%w: rate %s", ErrNegativeFee, f.Rate)
	}
	return quantity.Abs().Mul(price).Mul(f.Rate), nil
}

// PerShareFee charges Rate per unit, clamped to [Min, Max] and rounded to
// Scale digits. Zero Max means no cap. SellsOnly exempts buys.
type PerShareFee struct {
	Rate      fixed.Point
	Min       fixed.Point
	Max       fixed.Point
	Scale     int
	SellsOnly bool
}

// TradingActivityFee is the FINRA TAF charged on sells: 0.000119 per share,
// capped at 5.95.
func TradingActivityFee() PerShareFee {
	return PerShareFee{
		Rate:      fixed.FromInt(119, 6),
		Max:       fixed.FromInt(595, 2),
		Scale:     2,
		SellsOnly: true,
	}
}

func (f PerShareFee) CommissionAndFees(order common.Order, quantity, _ fixed.Point) (fixed.Point, error) {
	if f.Rate.IsNegative() || f.Min.IsNegative() || f.Max.IsNegative() {
		return fixed.Zero, fmt.Errorf("%w: rate %s min %s max %s", ErrNegativeFee, f.Rate, f.Min, f.Max)
	}
	if f.SellsOnly && !order.IsShort() {
		return fixed.Zero, nil
	}

	fee := quantity.Abs().Mul(f.Rate)
	if !f.Max.IsZero() {
		fee = fixed.Min(fee, f.Max)
	}
	fee = fixed.Max(fee, f.Min)
	return fee.Round(f.Scale), nil
}

// CompositeFee sums several fee models, e.g. a commission plus regulatory
// fees.
type CompositeFee []FeeModel

func (c CompositeFee) CommissionAndFees(order common.Order, quantity, price fixed.Point) (fixed.Point, error) {
	total := fixed.Zero
	for _, model := range c {
		fee, err := model.CommissionAndFees(order, quantity, price)
		if err != nil {
			return fixed.Zero, err
		}
		total = total.Add(fee)
	}
	return total, nil
}

func directional(order common.Order, amount fixed.Point) fixed.Point {
	switch order.Direction() {
	case common.DirectionLong:
		return amount
	case common.DirectionShort:
		return amount.Neg()
	default:
		return fixed.Zero
	}
}

var (
	NoLatency  LatencyModel  = FixedLatency(0)
	NoSlippage SlippageModel = FixedAbsoluteSlippage{Amount: fixed.Zero}
	NoSpread   SpreadModel   = FixedSpread{Half: fixed.Zero}
)
