package common

import (
	"time"

	"github.com/peter-kozarec/simex/pkg/utility"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

type Tick struct {
	Ask        fixed.Point `json:"ask"`
	Bid        fixed.Point `json:"bid"`
	AskVolume  fixed.Point `json:"ask_volume"`
	BidVolume  fixed.Point `json:"bid_volume"`
	Last       fixed.Point `json:"last,omitempty"`
	LastVolume fixed.Point `json:"last_volume,omitempty"`

	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

func (t Tick) GetSymbol() string     { return t.Symbol }
func (t Tick) OccurredAt() time.Time { return t.TimeStamp }
func (t Tick) IsBar() bool           { return false }
func (t Tick) BarStart() time.Time   { return t.TimeStamp }
func (t Tick) HasQuote() bool        { return !t.Bid.IsZero() || !t.Ask.IsZero() }
func (t Tick) Mid() fixed.Point      { return t.Bid.Add(t.Ask).DivInt(2) }
func (t Tick) Spread() fixed.Point   { return t.Ask.Sub(t.Bid) }
