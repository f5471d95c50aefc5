package sandbox

import (
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/exchange"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

// PendingOrder is an order resting at the simulated venue together with
// the bookkeeping the matching engine needs.
type PendingOrder struct {
	Order       common.Order
	Security    exchange.Security
	CreatedTime time.Time

	filled        fixed.Point
	fills         []common.Fill
	stopTriggered bool
}

func NewPendingOrder(order common.Order, security exchange.Security) *PendingOrder {
	created := order.CreatedTime
	if created.IsZero() {
		created = order.TimeStamp
	}
	return &PendingOrder{
		Order:       order,
		Security:    security,
		CreatedTime: created,
	}
}

func (p *PendingOrder) FilledQuantity() fixed.Point { return p.filled }
func (p *PendingOrder) Fills() []common.Fill        { return p.fills }
func (p *PendingOrder) StopTriggered() bool         { return p.stopTriggered }

// RemainingQuantity is the unsigned quantity still to be filled.
func (p *PendingOrder) RemainingQuantity() fixed.Point {
	return p.Order.UnsignedQuantity().Sub(p.filled)
}

func (p *PendingOrder) record(fill common.Fill) {
	if !fill.IsEconomic() {
		return
	}
	p.filled = p.filled.Add(fill.Quantity)
	p.fills = append(p.fills, fill)
}
