package exchange

import (
	"context"
	"strings"
	"sync"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/indicators"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

// QuoteBarObserver is implemented by cost strategies that adapt to market
// data.
type QuoteBarObserver interface {
	OnQuoteBar(ctx context.Context, bar common.QuoteBar)
}

// VolatilitySlippage worsens fills by Base plus Factor times the average
// true range of the symbol's quote bars. Until the range is ready only
// Base applies.
type VolatilitySlippage struct {
	Base   fixed.Point
	Factor fixed.Point

	window int
	mu     sync.Mutex
	ranges map[string]*indicators.Atr
}

func NewVolatilitySlippage(window int, base, factor fixed.Point) *VolatilitySlippage {
	return &VolatilitySlippage{
		Base:   base,
		Factor: factor,
		window: window,
		ranges: make(map[string]*indicators.Atr),
	}
}

func (s *VolatilitySlippage) OnQuoteBar(_ context.Context, bar common.QuoteBar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := strings.ToUpper(bar.Symbol)
	atr, ok := s.ranges[symbol]
	if !ok {
		atr = indicators.NewAtr(s.window)
		s.ranges[symbol] = atr
	}
	atr.OnQuoteBar(bar)
}

func (s *VolatilitySlippage) Slippage(order common.Order) (fixed.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount := s.Base
	if atr, ok := s.ranges[strings.ToUpper(order.Symbol)]; ok && atr.Ready() {
		amount = amount.Add(atr.AverageTrueRange().Mul(s.Factor))
	}
	return directional(order, amount), nil
}

// OnQuoteBar forwards the bar to the adaptive strategies of the cost model
// that applies to its symbol.
func (m *StaticBrokerModel) OnQuoteBar(ctx context.Context, bar common.QuoteBar) {
	cost := m.CostModel(Security{SymbolInfo: SymbolInfo{SymbolName: bar.Symbol}})
	if observer, ok := cost.SlippageModel.(QuoteBarObserver); ok {
		observer.OnQuoteBar(ctx, bar)
	}
	if observer, ok := cost.SpreadModel.(QuoteBarObserver); ok {
		observer.OnQuoteBar(ctx, bar)
	}
}
