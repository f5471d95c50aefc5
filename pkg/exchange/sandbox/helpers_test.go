package sandbox

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/exchange"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

var t0 = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

func p(s string) fixed.Point { return fixed.MustParse(s) }

func assertPoint(t *testing.T, want string, got fixed.Point, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Eq(p(want)), append([]any{"want %s, got %s", want, got}, msgAndArgs...)...)
}

type recordedEvent struct {
	id   bus.EventId
	data any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEmitter) Post(id bus.EventId, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{id, data})
	return nil
}

func (r *recordingEmitter) ids() []bus.EventId {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]bus.EventId, 0, len(r.events))
	for _, ev := range r.events {
		ids = append(ids, ev.id)
	}
	return ids
}

func (r *recordingEmitter) last() recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recordingEmitter) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func askTick(symbol string, ts time.Time, ask, askVolume string) common.Tick {
	return common.Tick{
		Symbol:    symbol,
		TimeStamp: ts,
		Ask:       p(ask),
		AskVolume: p(askVolume),
		Bid:       p(ask).Sub(p("0.02")),
		BidVolume: p(askVolume),
	}
}

func bidTick(symbol string, ts time.Time, bid, bidVolume string) common.Tick {
	return common.Tick{
		Symbol:    symbol,
		TimeStamp: ts,
		Bid:       p(bid),
		BidVolume: p(bidVolume),
		Ask:       p(bid).Add(p("0.02")),
		AskVolume: p(bidVolume),
	}
}

func newOrder(id common.OrderId, typ common.OrderType, quantity string) common.Order {
	return common.Order{
		Id:          id,
		Symbol:      "AAPL",
		Type:        typ,
		State:       common.OrderStateNew,
		Quantity:    p(quantity),
		CreatedTime: t0,
	}
}

func submitted(order common.Order, security exchange.Security) *PendingOrder {
	order.State = common.OrderStateSubmitted
	return NewPendingOrder(order, security)
}

func continuous() exchange.Security {
	return exchange.NewSecurity(exchange.SymbolInfo{SymbolName: "AAPL"}, exchange.ContinuousVenue("sandbox"))
}

func nyse(t *testing.T) exchange.Security {
	t.Helper()
	venue, err := exchange.NewVenue("NYSE", "America/New_York", 9*time.Hour+30*time.Minute, 16*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return exchange.NewSecurity(exchange.SymbolInfo{SymbolName: "AAPL", Class: exchange.Equity, Digits: 2}, venue)
}

func perShare(rate string) exchange.FeeModel {
	return exchange.FeeFunc(func(_ common.Order, quantity, _ fixed.Point) (fixed.Point, error) {
		return quantity.Mul(p(rate)), nil
	})
}
