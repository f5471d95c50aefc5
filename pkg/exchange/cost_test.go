package exchange

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

func p(s string) fixed.Point { return fixed.MustParse(s) }

func order(quantity string) common.Order {
	return common.Order{Symbol: "AAPL", Quantity: p(quantity)}
}

func TestCostModel_NilMembersAreFree(t *testing.T) {
	var cost CostModel

	latency, err := cost.Latency(order("1"))
	require.NoError(t, err)
	assert.Zero(t, latency)

	slippage, err := cost.Slippage(order("1"))
	require.NoError(t, err)
	assert.True(t, slippage.IsZero())

	spread, err := cost.AdditionalSpread(order("1"))
	require.NoError(t, err)
	assert.True(t, spread.IsZero())

	fee, err := cost.CommissionAndFees(order("1"), p("1"), p("10"))
	require.NoError(t, err)
	assert.True(t, fee.IsZero())
}

func TestFixedLatency(t *testing.T) {
	latency, err := FixedLatency(250 * time.Millisecond).Latency(order("1"))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, latency)

	_, err = FixedLatency(-time.Millisecond).Latency(order("1"))
	assert.True(t, errors.Is(err, ErrNegativeLatency))

	latency, err = NoLatency.Latency(order("1"))
	require.NoError(t, err)
	assert.Zero(t, latency)
}

func TestDirectionalAdjustments(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
		want     string
	}{
		{"buy pays more", "10", "0.05"},
		{"sell receives less", "-10", "-0.05"},
		{"flat", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slippage, err := FixedAbsoluteSlippage{Amount: p("0.05")}.Slippage(order(tt.quantity))
			require.NoError(t, err)
			assert.True(t, slippage.Eq(p(tt.want)), "slippage %s", slippage)

			spread, err := FixedSpread{Half: p("0.05")}.AdditionalSpread(order(tt.quantity))
			require.NoError(t, err)
			assert.True(t, spread.Eq(p(tt.want)), "spread %s", spread)
		})
	}
}

func TestFeeModels(t *testing.T) {
	tests := []struct {
		name     string
		model    FeeModel
		quantity string
		orderQty string
		price    string
		want     string
	}{
		{"commission free", CommissionFree{}, "100", "100", "50", "0"},
		{"binance spot", BinanceSpotFee(), "2", "2", "1000", "2"},
		{"taf on sell", TradingActivityFee(), "1000", "-1000", "10", "0.12"},
		{"taf capped", TradingActivityFee(), "100000", "-100000", "10", "5.95"},
		{"taf exempts buys", TradingActivityFee(), "1000", "1000", "10", "0"},
		{"per share minimum", PerShareFee{Rate: p("0.005"), Min: p("1"), Scale: 2}, "10", "10", "10", "1"},
		{"per share uncapped", PerShareFee{Rate: p("0.005"), Scale: 2}, "1000", "1000", "10", "5"},
		{
			"composite",
			CompositeFee{PerShareFee{Rate: p("0.005"), Scale: 2}, TradingActivityFee()},
			"1000", "-1000", "10", "5.12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, err := tt.model.CommissionAndFees(order(tt.orderQty), p(tt.quantity), p(tt.price))
			require.NoError(t, err)
			assert.True(t, fee.Eq(p(tt.want)), "fee %s", fee)
		})
	}
}

func TestFeeModels_RejectNegativeRates(t *testing.T) {
	_, err := PercentageFee{Rate: p("-0.01")}.CommissionAndFees(order("1"), p("1"), p("1"))
	assert.True(t, errors.Is(err, ErrNegativeFee))

	_, err = PerShareFee{Rate: p("0.01"), Max: p("-1")}.CommissionAndFees(order("1"), p("1"), p("1"))
	assert.True(t, errors.Is(err, ErrNegativeFee))

	_, err = CompositeFee{CommissionFree{}, PercentageFee{Rate: p("-1")}}.CommissionAndFees(order("1"), p("1"), p("1"))
	assert.True(t, errors.Is(err, ErrNegativeFee))
}

func TestStaticBrokerModel(t *testing.T) {
	def := CostModel{LatencyModel: FixedLatency(time.Second)}
	crypto := CostModel{FeeModel: BinanceSpotFee()}

	model := NewStaticBrokerModel(def).Override("btcusdt", crypto)

	btc := NewSecurity(SymbolInfo{SymbolName: "BTCUSDT"}, ContinuousVenue("binance"))
	aapl := NewSecurity(SymbolInfo{SymbolName: "AAPL"}, ContinuousVenue("paper"))

	assert.Equal(t, crypto, model.CostModel(btc))
	assert.Equal(t, def, model.CostModel(aapl))
}

func TestSecurities(t *testing.T) {
	aapl := NewSecurity(SymbolInfo{SymbolName: "AAPL", Digits: 2}, ContinuousVenue("paper"))
	securities := NewSecurities(aapl)

	found, err := securities.Get("aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", found.Symbol())
	assert.True(t, found.RoundPrice(p("10.126")).Eq(p("10.13")))

	_, err = securities.Get("MSFT")
	assert.True(t, errors.Is(err, ErrUnknownSymbol))

	raw := NewSecurity(SymbolInfo{SymbolName: "EURUSD"}, ContinuousVenue("fx"))
	assert.True(t, raw.RoundPrice(p("1.123456")).Eq(p("1.123456")))
}
