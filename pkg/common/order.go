package common

import (
	"time"

	"github.com/peter-kozarec/simex/pkg/utility"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

type OrderId = int64
type FundId = string

type OrderCommand int
type OrderType int
type OrderState int
type TimeInForce int
type FillPolicy int
type Direction int

const (
	OrderCommandSubmit OrderCommand = iota
	OrderCommandCancel
	OrderCommandUpdate
)

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypeStop
	OrderTypeStopLimit
	OrderTypeMarketOnOpen
	OrderTypeMarketOnClose
)

const (
	OrderStateNew OrderState = iota
	OrderStateSubmitted
	OrderStatePartialFilled
	OrderStateFilled
	OrderStateCancelled
	OrderStateInvalid
	OrderStateError
)

const (
	TimeInForceGoodTillCancel TimeInForce = iota
	TimeInForceDay
	TimeInForceGoodTillDate
	TimeInForceMarketOnClose
)

const (
	FillPolicyImmediate FillPolicy = iota
	FillPolicyFillOrKill
	FillPolicyAllOrNone
	FillPolicyImmediateOrCancel
)

const (
	DirectionFlat Direction = iota
	DirectionLong
	DirectionShort
)

var orderTypeNames = [...]string{"market", "limit", "stop", "stop-limit", "market-on-open", "market-on-close"}
var orderStateNames = [...]string{"new", "submitted", "partial-filled", "filled", "cancelled", "invalid", "error"}

func (t OrderType) String() string {
	if int(t) < 0 || int(t) >= len(orderTypeNames) {
		return "unknown"
	}
	return orderTypeNames[t]
}

func (s OrderState) String() string {
	if int(s) < 0 || int(s) >= len(orderStateNames) {
		return "unknown"
	}
	return orderStateNames[s]
}

// IsDone reports whether the state is terminal.
func (s OrderState) IsDone() bool {
	return s == OrderStateFilled || s == OrderStateCancelled || s == OrderStateInvalid || s == OrderStateError
}

// IsActive reports whether an order in this state rests at the broker.
func (s OrderState) IsActive() bool {
	return s == OrderStateSubmitted || s == OrderStatePartialFilled
}

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "flat"
	}
}

func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return DirectionFlat
	}
}

// DirectionOf maps the sign of a quantity to a direction.
func DirectionOf(quantity fixed.Point) Direction {
	switch quantity.Sign() {
	case 1:
		return DirectionLong
	case -1:
		return DirectionShort
	default:
		return DirectionFlat
	}
}

// Order is a signed quantity order: positive buys, negative sells.
type Order struct {
	Id          OrderId      `json:"id"`
	FundId      FundId       `json:"fund_id,omitempty"`
	Command     OrderCommand `json:"command"`
	Type        OrderType    `json:"type"`
	State       OrderState   `json:"state"`
	Quantity    fixed.Point  `json:"quantity"`
	LimitPrice  fixed.Point  `json:"limit_price,omitempty"`
	StopPrice   fixed.Point  `json:"stop_price,omitempty"`
	TimeInForce TimeInForce  `json:"time_in_force"`
	ExpireTime  time.Time    `json:"expire_time,omitempty"`
	CreatedTime time.Time    `json:"created_time"`
	FillPolicy  FillPolicy   `json:"fill_policy"`
	Comment     string       `json:"comment,omitempty"`

	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

func (o Order) Direction() Direction {
	return DirectionOf(o.Quantity)
}

func (o Order) UnsignedQuantity() fixed.Point {
	return o.Quantity.Abs()
}

func (o Order) IsLong() bool  { return o.Quantity.IsPositive() }
func (o Order) IsShort() bool { return o.Quantity.IsNegative() }

type OrderSubmitted struct {
	OrderId OrderId `json:"order_id"`
	Order   Order   `json:"order"`

	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

type OrderCancelled struct {
	OrderId OrderId `json:"order_id"`
	Order   Order   `json:"order"`
	Reason  string  `json:"reason,omitempty"`

	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

type OrderUpdated struct {
	OrderId OrderId `json:"order_id"`
	Order   Order   `json:"order"`
	Reason  string  `json:"reason,omitempty"`

	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

type OrderFilled struct {
	OrderId OrderId `json:"order_id"`
	Fill    Fill    `json:"fill"`

	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

type OrderPartiallyFilled struct {
	OrderId OrderId `json:"order_id"`
	Fill    Fill    `json:"fill"`

	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}
