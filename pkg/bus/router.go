package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
)

var (
	ErrCapacityReached  = errors.New("event capacity reached")
	ErrInvalidEventData = errors.New("invalid event data")
	ErrUnsupportedEvent = errors.New("unsupported event id")
)

type event struct {
	id   EventId
	data any
}

// Router queues events posted from any goroutine and dispatches them on the
// goroutine running Exec, ExecLoop or Drain. Handlers are assigned before
// execution starts.
type Router struct {
	events chan event

	OnTick                 TickEventHandler
	OnBar                  BarEventHandler
	OnQuoteBar             QuoteBarEventHandler
	OnEquity               EquityEventHandler
	OnBalance              BalanceEventHandler
	OnOrder                OrderEventHandler
	OnOrderSubmitted       OrderSubmittedEventHandler
	OnOrderCancelled       OrderCancelledEventHandler
	OnOrderUpdated         OrderUpdatedEventHandler
	OnOrderFilled          OrderFilledEventHandler
	OnOrderPartiallyFilled OrderPartiallyFilledEventHandler
	OnTrade                TradeEventHandler
	OnPositionSnapshot     PositionSnapshotEventHandler

	runTime       atomic.Int64
	postCount     atomic.Uint64
	postFails     atomic.Uint64
	dispatchCount atomic.Uint64
	dispatchFails atomic.Uint64
}

func NewRouter(eventCapacity int) *Router {
	return &Router{
		events: make(chan event, eventCapacity),
	}
}

// Post enqueues without blocking and fails when the queue is full.
func (r *Router) Post(id EventId, data any) error {
	select {
	case r.events <- event{id, data}:
		r.postCount.Add(1)
		return nil
	default:
		r.postFails.Add(1)
		return fmt.Errorf("%w: %s", ErrCapacityReached, id)
	}
}

// Pending returns the number of queued events.
func (r *Router) Pending() int {
	return len(r.events)
}

// Exec dispatches events until ctx is done. The returned channel receives
// the terminating error.
func (r *Router) Exec(ctx context.Context) <-chan error {
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)
		defer r.measure(time.Now())

		for {
			select {
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			case ev := <-r.events:
				r.handle(ctx, ev)
			}
		}
	}()

	return errChan
}

// ExecLoop dispatches queued events and calls doOnceCb whenever the queue
// is empty. A callback error stops the loop and is sent on the returned
// channel.
func (r *Router) ExecLoop(ctx context.Context, doOnceCb func() error) <-chan error {
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)
		defer r.measure(time.Now())

		for {
			select {
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			case ev := <-r.events:
				r.handle(ctx, ev)
			default:
				if err := doOnceCb(); err != nil {
					errChan <- err
					return
				}
			}
		}
	}()

	return errChan
}

// Drain synchronously dispatches queued events, including those posted by
// handlers, until the queue is empty.
func (r *Router) Drain(ctx context.Context) error {
	defer r.measure(time.Now())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.events:
			r.handle(ctx, ev)
		default:
			return nil
		}
	}
}

func (r *Router) GetStatistics() Statistics {
	runTime := time.Duration(r.runTime.Load())
	postCount := r.postCount.Load()

	var throughput float64
	if runTime > 0 {
		throughput = float64(postCount) / runTime.Seconds()
	}

	return Statistics{
		RunTime:       runTime,
		PostCount:     postCount,
		PostFails:     r.postFails.Load(),
		DispatchCount: r.dispatchCount.Load(),
		DispatchFails: r.dispatchFails.Load(),
		Throughput:    throughput,
	}
}

func (r *Router) measure(start time.Time) {
	r.runTime.Add(int64(time.Since(start)))
}

func (r *Router) handle(ctx context.Context, ev event) {
	r.dispatchCount.Add(1)
	if err := r.dispatch(ctx, ev); err != nil {
		r.dispatchFails.Add(1)
		slog.Warn("dispatch failed", "error", err, "event", ev.id.String())
	}
}

func (r *Router) dispatch(ctx context.Context, ev event) error {
	switch ev.id {
	case TickEvent:
		return deliver[common.Tick](ctx, ev, r.OnTick)
	case BarEvent:
		return deliver[common.Bar](ctx, ev, r.OnBar)
	case QuoteBarEvent:
		return deliver[common.QuoteBar](ctx, ev, r.OnQuoteBar)
	case EquityEvent:
		return deliver[common.Equity](ctx, ev, r.OnEquity)
	case BalanceEvent:
		return deliver[common.Balance](ctx, ev, r.OnBalance)
	case OrderEvent:
		return deliver[common.Order](ctx, ev, r.OnOrder)
	case OrderSubmittedEvent:
		return deliver[common.OrderSubmitted](ctx, ev, r.OnOrderSubmitted)
	case OrderCancelledEvent:
		return deliver[common.OrderCancelled](ctx, ev, r.OnOrderCancelled)
	case OrderUpdatedEvent:
		return deliver[common.OrderUpdated](ctx, ev, r.OnOrderUpdated)
	case OrderFilledEvent:
		return deliver[common.OrderFilled](ctx, ev, r.OnOrderFilled)
	case OrderPartiallyFilledEvent:
		return deliver[common.OrderPartiallyFilled](ctx, ev, r.OnOrderPartiallyFilled)
	case TradeEvent:
		return deliver[common.Trade](ctx, ev, r.OnTrade)
	case PositionSnapshotEvent:
		return deliver[common.PositionSnapshot](ctx, ev, r.OnPositionSnapshot)
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedEvent, ev.id)
	}
}

func deliver[T any](ctx context.Context, ev event, handler EventHandler[T]) error {
	data, ok := ev.data.(T)
	if !ok {
		return fmt.Errorf("%w: %s carries %T", ErrInvalidEventData, ev.id, ev.data)
	}
	if handler == nil {
		slog.Debug("handler is nil", "event", ev.id.String())
		return nil
	}
	handler(ctx, data)
	return nil
}
