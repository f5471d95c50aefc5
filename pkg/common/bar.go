package common

import (
	"time"

	"github.com/peter-kozarec/simex/pkg/utility"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

type BarPeriod time.Duration

const (
	BarPeriodM1  = BarPeriod(time.Minute)
	BarPeriodM5  = BarPeriod(5 * time.Minute)
	BarPeriodM15 = BarPeriod(15 * time.Minute)
	BarPeriodM30 = BarPeriod(30 * time.Minute)
	BarPeriodH1  = BarPeriod(time.Hour)
	BarPeriodD1  = BarPeriod(24 * time.Hour)
)

func (p BarPeriod) Duration() time.Duration { return time.Duration(p) }

// Ohlc is one side of a quote bar.
type Ohlc struct {
	Open  fixed.Point `json:"open"`
	High  fixed.Point `json:"high"`
	Low   fixed.Point `json:"low"`
	Close fixed.Point `json:"close"`
}

func NewOhlc(price fixed.Point) Ohlc {
	return Ohlc{Open: price, High: price, Low: price, Close: price}
}

func (o *Ohlc) Update(price fixed.Point) {
	if o.Open.IsZero() {
		*o = NewOhlc(price)
		return
	}
	o.High = fixed.Max(o.High, price)
	o.Low = fixed.Min(o.Low, price)
	o.Close = price
}

func (o Ohlc) IsEmpty() bool { return o.Open.IsZero() && o.Close.IsZero() }

// Bar is a trade bar built from last traded prices.
type Bar struct {
	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
	Period      BarPeriod           `json:"period"`
	OpenTime    time.Time           `json:"open_time"`
	Open        fixed.Point         `json:"open"`
	High        fixed.Point         `json:"high"`
	Low         fixed.Point         `json:"low"`
	Close       fixed.Point         `json:"close"`
	Volume      fixed.Point         `json:"volume"`
}

func (b Bar) GetSymbol() string     { return b.Symbol }
func (b Bar) OccurredAt() time.Time { return b.TimeStamp }
func (b Bar) IsBar() bool           { return true }
func (b Bar) BarStart() time.Time   { return b.OpenTime }

// QuoteBar aggregates bid and ask prices over one period.
type QuoteBar struct {
	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
	Period      BarPeriod           `json:"period"`
	OpenTime    time.Time           `json:"open_time"`
	Bid         Ohlc                `json:"bid"`
	Ask         Ohlc                `json:"ask"`
	LastBidSize fixed.Point         `json:"last_bid_size"`
	LastAskSize fixed.Point         `json:"last_ask_size"`
}

func (q QuoteBar) GetSymbol() string     { return q.Symbol }
func (q QuoteBar) OccurredAt() time.Time { return q.TimeStamp }
func (q QuoteBar) IsBar() bool           { return true }
func (q QuoteBar) BarStart() time.Time   { return q.OpenTime }
