package common

import (
	"time"
)

// DataPoint is implemented by Tick, QuoteBar and Bar.
type DataPoint interface {
	GetSymbol() string
	OccurredAt() time.Time
	IsBar() bool
	BarStart() time.Time
}

// DataUpdates is one batch of market data keyed by symbol.
type DataUpdates struct {
	TimeStamp time.Time
	Ticks     map[string]Tick
	QuoteBars map[string]QuoteBar
	Bars      map[string]Bar
}

func NewDataUpdates(ts time.Time) DataUpdates {
	return DataUpdates{
		TimeStamp: ts,
		Ticks:     make(map[string]Tick),
		QuoteBars: make(map[string]QuoteBar),
		Bars:      make(map[string]Bar),
	}
}

func (d DataUpdates) HasUpdates() bool {
	return len(d.Ticks) > 0 || len(d.QuoteBars) > 0 || len(d.Bars) > 0
}

// Resolve returns the most specific data point for symbol: tick, then
// quote bar, then trade bar.
func (d DataUpdates) Resolve(symbol string) (DataPoint, bool) {
	if tick, ok := d.Ticks[symbol]; ok {
		return tick, true
	}
	if qb, ok := d.QuoteBars[symbol]; ok {
		return qb, true
	}
	if bar, ok := d.Bars[symbol]; ok {
		return bar, true
	}
	return nil, false
}

func (d *DataUpdates) AddTick(tick Tick) {
	if d.Ticks == nil {
		d.Ticks = make(map[string]Tick)
	}
	d.Ticks[tick.Symbol] = tick
	d.touch(tick.TimeStamp)
}

func (d *DataUpdates) AddQuoteBar(bar QuoteBar) {
	if d.QuoteBars == nil {
		d.QuoteBars = make(map[string]QuoteBar)
	}
	d.QuoteBars[bar.Symbol] = bar
	d.touch(bar.TimeStamp)
}

func (d *DataUpdates) AddBar(bar Bar) {
	if d.Bars == nil {
		d.Bars = make(map[string]Bar)
	}
	d.Bars[bar.Symbol] = bar
	d.touch(bar.TimeStamp)
}

func (d *DataUpdates) touch(ts time.Time) {
	if ts.After(d.TimeStamp) {
		d.TimeStamp = ts
	}
}
