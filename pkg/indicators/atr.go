package indicators

import (
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

// Atr is Wilder's average true range. The first value is the mean of the
// first windowSize true ranges, later values are smoothed.
type Atr struct {
	windowSize int

	samples    int
	lastClose  fixed.Point
	currentAtr fixed.Point
	currentTr  fixed.Point
	sum        fixed.Point
}

func NewAtr(windowSize int) *Atr {
	if windowSize < 1 {
		windowSize = 1
	}
	return &Atr{windowSize: windowSize}
}

// Update adds one bar. The first bar only seeds the previous close.
func (a *Atr) Update(high, low, closing fixed.Point) {
	defer func() {
		a.lastClose = closing
	}()

	if a.lastClose.IsZero() {
		return
	}

	a.currentTr = fixed.Max(high.Sub(low).Abs(),
		fixed.Max(high.Sub(a.lastClose).Abs(), low.Sub(a.lastClose).Abs()))
	a.samples++

	switch {
	case a.samples < a.windowSize:
		a.sum = a.sum.Add(a.currentTr)
	case a.samples == a.windowSize:
		a.currentAtr = a.sum.Add(a.currentTr).DivInt(a.windowSize)
	default:
		a.currentAtr = a.currentAtr.MulInt(a.windowSize - 1).Add(a.currentTr).DivInt(a.windowSize)
	}
}

func (a *Atr) OnBar(b common.Bar) {
	a.Update(b.High, b.Low, b.Close)
}

// OnQuoteBar measures the range of the mid prices. A bar with one empty
// side uses the other side, an empty bar is ignored.
func (a *Atr) OnQuoteBar(b common.QuoteBar) {
	switch {
	case b.Bid.IsEmpty() && b.Ask.IsEmpty():
		return
	case b.Bid.IsEmpty():
		a.Update(b.Ask.High, b.Ask.Low, b.Ask.Close)
	case b.Ask.IsEmpty():
		a.Update(b.Bid.High, b.Bid.Low, b.Bid.Close)
	default:
		a.Update(mid(b.Bid.High, b.Ask.High), mid(b.Bid.Low, b.Ask.Low), mid(b.Bid.Close, b.Ask.Close))
	}
}

func (a *Atr) AverageTrueRange() fixed.Point {
	return a.currentAtr
}

func (a *Atr) TrueRange() fixed.Point {
	return a.currentTr
}

func (a *Atr) Ready() bool {
	return a.samples >= a.windowSize
}

func (a *Atr) Reset() {
	*a = Atr{windowSize: a.windowSize}
}

func mid(a, b fixed.Point) fixed.Point {
	return a.Add(b).DivInt(2)
}
