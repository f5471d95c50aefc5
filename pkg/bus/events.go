package bus

type EventId uint8

const (
	TickEvent EventId = iota
	BarEvent
	QuoteBarEvent
	EquityEvent
	BalanceEvent
	OrderEvent
	OrderSubmittedEvent
	OrderCancelledEvent
	OrderUpdatedEvent
	OrderFilledEvent
	OrderPartiallyFilledEvent
	TradeEvent
	PositionSnapshotEvent
)

// EventCount is the number of defined event ids.
const EventCount = int(PositionSnapshotEvent) + 1

var eventNames = [...]string{
	"tick",
	"bar",
	"quote-bar",
	"equity",
	"balance",
	"order",
	"order-submitted",
	"order-cancelled",
	"order-updated",
	"order-filled",
	"order-partially-filled",
	"trade",
	"position-snapshot",
}

func (id EventId) String() string {
	if int(id) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[id]
}
