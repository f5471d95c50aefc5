package common

import (
	"time"

	"github.com/peter-kozarec/simex/pkg/utility"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

// Trade is a realized round trip: opening lots matched against closing
// fills of equal aggregate quantity.
type Trade struct {
	FundId      FundId        `json:"fund_id,omitempty"`
	Direction   Direction     `json:"direction"`
	Opened      []Fill        `json:"opened"`
	Closed      []Fill        `json:"closed"`
	OpenPrice   fixed.Point   `json:"open_price"`
	ClosePrice  fixed.Point   `json:"close_price"`
	OpenedTime  time.Time     `json:"opened_time"`
	ClosedTime  time.Time     `json:"closed_time"`
	Duration    time.Duration `json:"duration"`
	Quantity    fixed.Point   `json:"quantity"`
	Fees        fixed.Point   `json:"fees"`
	GrossPnL    fixed.Point   `json:"gross_pnl"`
	NetPnL      fixed.Point   `json:"net_pnl"`
	MAE         fixed.Point   `json:"mae"`
	MFE         fixed.Point   `json:"mfe"`
	ClosedValue fixed.Point   `json:"closed_value"`

	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

func (t Trade) IsWin() bool { return t.NetPnL.IsPositive() }

// PositionSnapshot is a point in time view of one position.
type PositionSnapshot struct {
	FundId        FundId      `json:"fund_id,omitempty"`
	Direction     Direction   `json:"direction"`
	Quantity      fixed.Point `json:"quantity"`
	AveragePrice  fixed.Point `json:"average_price"`
	MarketPrice   fixed.Point `json:"market_price"`
	RealizedPnL   fixed.Point `json:"realized_pnl"`
	UnrealizedPnL fixed.Point `json:"unrealized_pnl"`
	OpenLots      int         `json:"open_lots"`

	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}
