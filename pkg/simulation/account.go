package simulation

import (
	"sync"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/position"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

// Account is the cash ledger of one fund. It answers the broker's funds
// checks and values the fund's holdings.
//
// Fills are reserved by the broker as they are matched and settled once
// their event is applied. Funds checks see both.
type Account struct {
	mu sync.RWMutex

	fundId     common.FundId
	cash       fixed.Point
	holdings   *position.Holdings
	allowShort bool
	reserved   map[common.OrderId]*reservation
}

// reservation is the part of an order's fills that is matched but not yet
// applied.
type reservation struct {
	symbol   string
	outflow  fixed.Point
	quantity fixed.Point
}

func NewAccount(fundId common.FundId, startBalance fixed.Point, holdings *position.Holdings, allowShort bool) *Account {
	return &Account{
		fundId:     fundId,
		cash:       startBalance,
		holdings:   holdings,
		allowShort: allowShort,
		reserved:   make(map[common.OrderId]*reservation),
	}
}

func (a *Account) FundId() common.FundId { return a.fundId }

func (a *Account) Cash() fixed.Point {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cash
}

// Equity is cash plus the signed market value of every open position.
func (a *Account) Equity() fixed.Point {
	equity := a.Cash()
	for _, snapshot := range a.holdings.Snapshots() {
		if snapshot.FundId == a.fundId {
			equity = equity.Add(snapshot.Quantity.Mul(snapshot.MarketPrice))
		}
	}
	return equity
}

// Available is the cash left once reserved fills settle.
func (a *Account) Available() fixed.Point {
	a.mu.RLock()
	defer a.mu.RUnlock()

	available := a.cash
	for _, r := range a.reserved {
		available = available.Sub(r.outflow)
	}
	return available
}

// HasSufficientFunds lets buys spend at most the available cash. Sells may
// reduce a long position and only open a short when shorting is allowed.
func (a *Account) HasSufficientFunds(order common.Order, remaining, price fixed.Point) bool {
	if order.IsLong() {
		return remaining.Mul(price).Lte(a.Available())
	}
	if a.allowShort {
		return true
	}

	held := fixed.Zero
	if snapshot, err := a.holdings.Find(order.FundId, order.Symbol); err == nil {
		held = snapshot.Quantity
	}
	if order.FundId == a.fundId {
		held = held.Add(a.reservedQuantity(order.Symbol))
	}
	return remaining.Lte(held)
}

// Reserve books a matched fill of this fund until Apply settles it.
func (a *Account) Reserve(fill common.Fill) {
	if !fill.IsEconomic() || fill.FundId != a.fundId {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.reserved[fill.OrderId]
	if !ok {
		r = &reservation{symbol: fill.Symbol}
		a.reserved[fill.OrderId] = r
	}
	r.outflow = r.outflow.Add(outflow(fill))
	r.quantity = r.quantity.Add(fill.SignedQuantity())
}

// Apply moves cash for an economic fill: buys pay value plus fee, sells
// receive value minus fee. A reservation of the fill is released.
func (a *Account) Apply(fill common.Fill) {
	if !fill.IsEconomic() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	spent := outflow(fill)
	a.cash = a.cash.Sub(spent)

	r, ok := a.reserved[fill.OrderId]
	if !ok {
		return
	}
	r.outflow = r.outflow.Sub(spent)
	r.quantity = r.quantity.Sub(fill.SignedQuantity())
	if r.quantity.IsZero() {
		delete(a.reserved, fill.OrderId)
	}
}

func (a *Account) reservedQuantity(symbol string) fixed.Point {
	a.mu.RLock()
	defer a.mu.RUnlock()

	quantity := fixed.Zero
	for _, r := range a.reserved {
		if r.symbol == symbol {
			quantity = quantity.Add(r.quantity)
		}
	}
	return quantity
}

func outflow(fill common.Fill) fixed.Point {
	return fill.SignedQuantity().Mul(fill.Price).Add(fill.Fee)
}
