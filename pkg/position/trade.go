package position

import (
	"errors"
	"fmt"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

var (
	ErrMissingFills     = errors.New("trade requires opening and closing fills")
	ErrUnevenQuantities = errors.New("trade fills have uneven quantities")
	ErrMixedDirections  = errors.New("trade opening fills have mixed directions")
)

// NewTrade realizes opening fills against closing fills of equal total
// quantity. minPrice and maxPrice are the price extremes seen while the
// opening fills were held.
func NewTrade(opened, closed []common.Fill, minPrice, maxPrice fixed.Point) (common.Trade, error) {
	if len(opened) == 0 || len(closed) == 0 {
		return common.Trade{}, ErrMissingFills
	}

	direction := opened[0].Direction
	for _, fill := range opened[1:] {
		if fill.Direction != direction {
			return common.Trade{}, ErrMixedDirections
		}
	}

	openQty, openValue, openFees := aggregate(opened)
	closeQty, closeValue, closeFees := aggregate(closed)
	if !openQty.Eq(closeQty) {
		return common.Trade{}, fmt.Errorf("%w: opened %s closed %s", ErrUnevenQuantities, openQty, closeQty)
	}
	if !openQty.IsPositive() {
		return common.Trade{}, fmt.Errorf("%w: quantity %s", ErrUnevenQuantities, openQty)
	}

	openedTime := opened[0].TimeStamp
	for _, fill := range opened[1:] {
		if fill.TimeStamp.Before(openedTime) {
			openedTime = fill.TimeStamp
		}
	}
	closedTime := closed[0].TimeStamp
	for _, fill := range closed[1:] {
		if fill.TimeStamp.After(closedTime) {
			closedTime = fill.TimeStamp
		}
	}

	gross := closeValue.Sub(openValue)
	mae, mfe := minPrice, maxPrice
	if direction == common.DirectionShort {
		gross = gross.Neg()
		mae, mfe = maxPrice, minPrice
	}
	fees := openFees.Add(closeFees)

	return common.Trade{
		FundId:      opened[0].FundId,
		Symbol:      opened[0].Symbol,
		Direction:   direction,
		Opened:      opened,
		Closed:      closed,
		OpenPrice:   openValue.Div(openQty),
		ClosePrice:  closeValue.Div(closeQty),
		OpenedTime:  openedTime,
		ClosedTime:  closedTime,
		Duration:    closedTime.Sub(openedTime),
		Quantity:    closeQty,
		Fees:        fees,
		GrossPnL:    gross,
		NetPnL:      gross.Sub(fees),
		MAE:         mae,
		MFE:         mfe,
		ClosedValue: closeValue,
		TimeStamp:   closedTime,
	}, nil
}

func aggregate(fills []common.Fill) (quantity, value, fees fixed.Point) {
	for _, fill := range fills {
		quantity = quantity.Add(fill.Quantity)
		value = value.Add(fill.Value())
		fees = fees.Add(fill.Fee)
	}
	return quantity, value, fees
}
