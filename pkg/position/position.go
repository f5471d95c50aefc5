package position

import (
	"errors"
	"fmt"
	"strings"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

var (
	ErrNotEconomic    = errors.New("fill has no economic effect")
	ErrSymbolMismatch = errors.New("fill symbol does not match position")
	ErrFundMismatch   = errors.New("fill fund does not match position")
)

// lot is the still open part of one opening fill. Quantity and Fee of the
// fill shrink as the lot is partially closed.
type lot struct {
	fill     common.Fill
	minPrice fixed.Point
	maxPrice fixed.Point
}

// Position is the FIFO lot ledger of one symbol within one fund. It is not
// safe for concurrent use; fills must be applied in the order they were
// produced.
type Position struct {
	fundId common.FundId
	symbol string

	lots     []lot
	head     int
	quantity fixed.Point

	realized    fixed.Point
	marketPrice fixed.Point
}

func NewPosition(fundId common.FundId, symbol string) *Position {
	return &Position{
		fundId: fundId,
		symbol: symbol,
	}
}

func (p *Position) FundId() common.FundId { return p.fundId }
func (p *Position) Symbol() string        { return p.symbol }
func (p *Position) IsFlat() bool          { return p.quantity.IsZero() }

// Quantity is the signed net quantity, positive for long.
func (p *Position) Quantity() fixed.Point { return p.quantity }

func (p *Position) Direction() common.Direction {
	return common.DirectionOf(p.quantity)
}

func (p *Position) RealizedPnL() fixed.Point { return p.realized }

// Lots returns the open lots, oldest first.
func (p *Position) Lots() []common.Fill {
	fills := make([]common.Fill, 0, len(p.lots)-p.head)
	for _, l := range p.lots[p.head:] {
		fills = append(fills, l.fill)
	}
	return fills
}

// AveragePrice is the quantity weighted price of the open lots.
func (p *Position) AveragePrice() fixed.Point {
	quantity, value := fixed.Zero, fixed.Zero
	for _, l := range p.lots[p.head:] {
		quantity = quantity.Add(l.fill.Quantity)
		value = value.Add(l.fill.Value())
	}
	if quantity.IsZero() {
		return fixed.Zero
	}
	return value.Div(quantity)
}

// UnrealizedPnL values the open lots at price.
func (p *Position) UnrealizedPnL(price fixed.Point) fixed.Point {
	pnl := fixed.Zero
	for _, l := range p.lots[p.head:] {
		pnl = pnl.Add(price.Sub(l.fill.Price).Mul(l.fill.Quantity))
	}
	if p.Direction() == common.DirectionShort {
		return pnl.Neg()
	}
	return pnl
}

// AdjustPrices extends the price range of every open lot with price.
func (p *Position) AdjustPrices(price fixed.Point) {
	if !price.IsPositive() {
		return
	}
	p.marketPrice = price
	for i := p.head; i < len(p.lots); i++ {
		p.lots[i].minPrice = fixed.Min(p.lots[i].minPrice, price)
		p.lots[i].maxPrice = fixed.Max(p.lots[i].maxPrice, price)
	}
}

func (p *Position) Snapshot(price fixed.Point) common.PositionSnapshot {
	if !price.IsPositive() {
		price = p.marketPrice
	}
	return common.PositionSnapshot{
		FundId:        p.fundId,
		Symbol:        p.symbol,
		Direction:     p.Direction(),
		Quantity:      p.quantity,
		AveragePrice:  p.AveragePrice(),
		MarketPrice:   price,
		RealizedPnL:   p.realized,
		UnrealizedPnL: p.UnrealizedPnL(price),
		OpenLots:      len(p.lots) - p.head,
	}
}

// Adjust applies a fill. Adding to the position or opening it returns no
// trade; reducing, closing or flipping it returns the realized trade.
func (p *Position) Adjust(fill common.Fill) (*common.Trade, error) {
	if !fill.IsEconomic() {
		return nil, fmt.Errorf("%w: %s", ErrNotEconomic, fill.Status)
	}
	if !strings.EqualFold(fill.Symbol, p.symbol) {
		return nil, fmt.Errorf("%w: %s != %s", ErrSymbolMismatch, fill.Symbol, p.symbol)
	}
	if fill.FundId != p.fundId {
		return nil, fmt.Errorf("%w: %s != %s", ErrFundMismatch, fill.FundId, p.fundId)
	}

	direction := p.Direction()
	if direction == common.DirectionFlat || fill.Direction == direction {
		p.open(fill)
		return nil, nil
	}

	held := p.quantity.Abs()
	var opened []lot
	var closing, remainder common.Fill

	if fill.Quantity.Gte(held) {
		opened = p.lots[p.head:]
		closing, remainder = splitFill(fill, held)
		p.lots, p.head = nil, 0
	} else {
		opened = p.consume(fill.Quantity)
		closing = fill
	}

	trade := p.realize(opened, closing)
	p.quantity = p.quantity.Add(closing.SignedQuantity())

	if remainder.Quantity.IsPositive() {
		p.open(remainder)
	}
	if !p.quantity.Eq(p.lotQuantity()) {
		panic(fmt.Sprintf("position %s lots sum to %s, net quantity is %s", p.symbol, p.lotQuantity(), p.quantity))
	}
	return &trade, nil
}

func (p *Position) open(fill common.Fill) {
	p.lots = append(p.lots, lot{fill: fill, minPrice: fill.Price, maxPrice: fill.Price})
	p.quantity = p.quantity.Add(fill.SignedQuantity())
	if !p.marketPrice.IsPositive() {
		p.marketPrice = fill.Price
	}
}

// consume takes quantity from the oldest lots, splitting the last lot it
// touches.
func (p *Position) consume(quantity fixed.Point) []lot {
	var taken []lot
	needed := quantity

	for needed.IsPositive() && p.head < len(p.lots) {
		current := &p.lots[p.head]
		if current.fill.Quantity.Lte(needed) {
			taken = append(taken, *current)
			needed = needed.Sub(current.fill.Quantity)
			p.head++
			continue
		}

		part, rest := splitFill(current.fill, needed)
		taken = append(taken, lot{fill: part, minPrice: current.minPrice, maxPrice: current.maxPrice})
		current.fill = rest
		needed = fixed.Zero
	}

	if needed.IsPositive() {
		panic(fmt.Sprintf("position %s is short of %s lots to close", p.symbol, needed))
	}
	p.compact()
	return taken
}

func (p *Position) realize(opened []lot, closing common.Fill) common.Trade {
	fills := make([]common.Fill, len(opened))
	minPrice, maxPrice := closing.Price, closing.Price
	for i, l := range opened {
		fills[i] = l.fill
		minPrice = fixed.Min(minPrice, l.minPrice)
		maxPrice = fixed.Max(maxPrice, l.maxPrice)
	}

	trade, err := NewTrade(fills, []common.Fill{closing}, minPrice, maxPrice)
	if err != nil {
		panic(fmt.Sprintf("position %s: %v", p.symbol, err))
	}
	p.realized = p.realized.Add(trade.NetPnL)
	return trade
}

func (p *Position) lotQuantity() fixed.Point {
	sum := fixed.Zero
	for _, l := range p.lots[p.head:] {
		sum = sum.Add(l.fill.SignedQuantity())
	}
	return sum
}

func (p *Position) compact() {
	if p.head == len(p.lots) {
		p.lots, p.head = p.lots[:0], 0
		return
	}
	if p.head > len(p.lots)/2 {
		p.lots = append(p.lots[:0], p.lots[p.head:]...)
		p.head = 0
	}
}

// splitFill cuts quantity off fill. Fees are shared pro rata.
func splitFill(fill common.Fill, quantity fixed.Point) (taken, rest common.Fill) {
	taken, rest = fill, fill
	taken.Quantity = quantity
	rest.Quantity = fill.Quantity.Sub(quantity)

	if !fill.Fee.IsZero() && fill.Quantity.IsPositive() {
		taken.Fee = fill.Fee.Mul(quantity).Div(fill.Quantity)
		rest.Fee = fill.Fee.Sub(taken.Fee)
	}
	return taken, rest
}
