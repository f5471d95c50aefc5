package bar

import (
	"context"
	"log/slog"
	"time"

	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility"
)

const builderComponentName = "bar-builder"

type Emitter interface {
	Post(bus.EventId, any) error
}

type Option func(*Builder)

// With registers a quote bar series. Registering the same series twice
// panics.
func With(symbol string, period common.BarPeriod) Option {
	return func(b *Builder) {
		s := series{symbol, period}
		for _, existing := range b.series {
			if existing == s {
				panic("bar series already registered")
			}
		}
		if period <= 0 {
			panic("bar period must be positive")
		}
		b.series = append(b.series, s)
	}
}

type series struct {
	symbol string
	period common.BarPeriod
}

// Builder aggregates ticks into quote bars aligned to UTC period
// boundaries. A bar is posted once the first tick of a later period
// arrives, or on Flush.
type Builder struct {
	emitter Emitter
	series  []series
	open    map[series]*common.QuoteBar
}

func NewBuilder(emitter Emitter, options ...Option) *Builder {
	b := &Builder{
		emitter: emitter,
		open:    make(map[series]*common.QuoteBar),
	}

	for _, option := range options {
		option(b)
	}

	return b
}

func (b *Builder) OnTick(_ context.Context, tick common.Tick) {
	if !tick.HasQuote() {
		return
	}
	for _, s := range b.series {
		if s.symbol == tick.Symbol {
			b.construct(s, tick)
		}
	}
}

// Flush posts every bar still under construction.
func (b *Builder) Flush(_ context.Context) {
	for _, s := range b.series {
		if qb, ok := b.open[s]; ok {
			b.post(*qb)
			delete(b.open, s)
		}
	}
}

// InConstruction returns a copy of the open bar of a series.
func (b *Builder) InConstruction(symbol string, period common.BarPeriod) (common.QuoteBar, bool) {
	qb, ok := b.open[series{symbol, period}]
	if !ok {
		return common.QuoteBar{}, false
	}
	return *qb, true
}

func (b *Builder) construct(s series, tick common.Tick) {
	start := alignedPeriodStart(s.period, tick.TimeStamp)

	qb, ok := b.open[s]
	if ok && !qb.OpenTime.Equal(start) {
		b.post(*qb)
		ok = false
	}

	if !ok {
		qb = &common.QuoteBar{
			Source:      builderComponentName,
			Symbol:      s.symbol,
			ExecutionId: utility.GetExecutionID(),
			Period:      s.period,
			OpenTime:    start,
			TimeStamp:   start.Add(s.period.Duration()),
		}
		b.open[s] = qb
	}

	if !tick.Bid.IsZero() {
		qb.Bid.Update(tick.Bid)
		qb.LastBidSize = tick.BidVolume
	}
	if !tick.Ask.IsZero() {
		qb.Ask.Update(tick.Ask)
		qb.LastAskSize = tick.AskVolume
	}
}

func (b *Builder) post(qb common.QuoteBar) {
	qb.TraceID = utility.CreateTraceID()
	if err := b.emitter.Post(bus.QuoteBarEvent, qb); err != nil {
		slog.Error("unable to post quote bar", "error", err, "symbol", qb.Symbol)
	}
}

// alignedPeriodStart truncates to a multiple of the period counted from the
// zero time, which keeps every period dividing a day aligned to UTC midnight.
func alignedPeriodStart(period common.BarPeriod, t time.Time) time.Time {
	return t.UTC().Truncate(period.Duration())
}
