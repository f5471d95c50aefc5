package position

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

var (
	ErrPosNotFound = errors.New("position is not found")
)

type key struct {
	fund   common.FundId
	symbol string
}

// Holdings keeps one Position per fund and symbol.
type Holdings struct {
	mu        sync.RWMutex
	positions map[key]*Position
}

func NewHoldings() *Holdings {
	return &Holdings{
		positions: make(map[key]*Position),
	}
}

// Apply routes an economic fill to its position, creating the position on
// first use.
func (h *Holdings) Apply(fill common.Fill) (*common.Trade, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	k := key{fill.FundId, strings.ToUpper(fill.Symbol)}
	position, ok := h.positions[k]
	if !ok {
		if !fill.IsEconomic() {
			return nil, ErrNotEconomic
		}
		position = NewPosition(fill.FundId, fill.Symbol)
		h.positions[k] = position
	}
	return position.Adjust(fill)
}

// AdjustPrices updates the excursion range of every position in symbol.
func (h *Holdings) AdjustPrices(symbol string, price fixed.Point) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for k, position := range h.positions {
		if k.symbol == strings.ToUpper(symbol) {
			position.AdjustPrices(price)
		}
	}
}

func (h *Holdings) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, position := range h.positions {
		if !position.IsFlat() {
			count++
		}
	}
	return count
}

func (h *Holdings) Find(fund common.FundId, symbol string) (common.PositionSnapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	position, ok := h.positions[key{fund, strings.ToUpper(symbol)}]
	if !ok {
		return common.PositionSnapshot{}, ErrPosNotFound
	}
	return position.Snapshot(fixed.Zero), nil
}

// Snapshots returns every non flat position ordered by fund and symbol,
// valued at the last price seen.
func (h *Holdings) Snapshots() []common.PositionSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshots := make([]common.PositionSnapshot, 0, len(h.positions))
	for _, position := range h.positions {
		if position.IsFlat() {
			continue
		}
		snapshots = append(snapshots, position.Snapshot(fixed.Zero))
	}
	slices.SortFunc(snapshots, func(a, b common.PositionSnapshot) int {
		if c := strings.Compare(a.FundId, b.FundId); c != 0 {
			return c
		}
		return strings.Compare(a.Symbol, b.Symbol)
	})
	return snapshots
}

// RealizedPnL sums realized results across positions of fund.
func (h *Holdings) RealizedPnL(fund common.FundId) fixed.Point {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := fixed.Zero
	for k, position := range h.positions {
		if k.fund == fund {
			total = total.Add(position.RealizedPnL())
		}
	}
	return total
}
