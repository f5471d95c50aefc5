package common

import (
	"time"

	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

type FillStatus int

const (
	FillStatusNoFill FillStatus = iota
	FillStatusPartialFill
	FillStatusFullFill
	FillStatusCancelled
	FillStatusInvalid
	FillStatusError
)

var fillStatusNames = [...]string{"no-fill", "partial-fill", "full-fill", "cancelled", "invalid", "error"}

func (s FillStatus) String() string {
	if int(s) < 0 || int(s) >= len(fillStatusNames) {
		return "unknown"
	}
	return fillStatusNames[s]
}

// OrderState maps a fill outcome onto the order state it leads to.
// NoFill leaves the order as it is, reported as submitted.
func (s FillStatus) OrderState() OrderState {
	switch s {
	case FillStatusPartialFill:
		return OrderStatePartialFilled
	case FillStatusFullFill:
		return OrderStateFilled
	case FillStatusCancelled:
		return OrderStateCancelled
	case FillStatusInvalid:
		return OrderStateInvalid
	case FillStatusError:
		return OrderStateError
	default:
		return OrderStateSubmitted
	}
}

// Fill is the outcome of one matching attempt. Quantity is unsigned, the
// side is carried by Direction.
type Fill struct {
	OrderId   OrderId     `json:"order_id"`
	FundId    FundId      `json:"fund_id,omitempty"`
	Symbol    string      `json:"symbol"`
	Direction Direction   `json:"direction"`
	Price     fixed.Point `json:"price"`
	Quantity  fixed.Point `json:"quantity"`
	Fee       fixed.Point `json:"fee"`
	Venue     string      `json:"venue,omitempty"`
	Status    FillStatus  `json:"status"`
	Message   string      `json:"message,omitempty"`
	TimeStamp time.Time   `json:"ts"`
}

func NoFill(order Order, ts time.Time) Fill {
	return newFill(order, ts, FillStatusNoFill, "")
}

func CancelledFill(order Order, ts time.Time, reason string) Fill {
	return newFill(order, ts, FillStatusCancelled, reason)
}

func InvalidFill(order Order, ts time.Time, reason string) Fill {
	return newFill(order, ts, FillStatusInvalid, reason)
}

func ErrorFill(order Order, ts time.Time, reason string) Fill {
	return newFill(order, ts, FillStatusError, reason)
}

func newFill(order Order, ts time.Time, status FillStatus, message string) Fill {
	return Fill{
		OrderId:   order.Id,
		FundId:    order.FundId,
		Symbol:    order.Symbol,
		Direction: order.Direction(),
		Status:    status,
		Message:   message,
		TimeStamp: ts,
	}
}

// IsDone reports whether the fill leaves its order in a terminal state.
func (f Fill) IsDone() bool {
	return f.Status.OrderState().IsDone()
}

// IsEconomic reports whether the fill changes a position.
func (f Fill) IsEconomic() bool {
	return (f.Status == FillStatusPartialFill || f.Status == FillStatusFullFill) && f.Quantity.IsPositive()
}

// SignedQuantity returns the quantity with the sign of the direction.
func (f Fill) SignedQuantity() fixed.Point {
	if f.Direction == DirectionShort {
		return f.Quantity.Neg()
	}
	return f.Quantity
}

// Value is price times quantity, unsigned.
func (f Fill) Value() fixed.Point {
	return f.Price.Mul(f.Quantity)
}
