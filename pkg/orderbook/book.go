package orderbook

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

const (
	ladderDegree      = 32
	bookComponentName = "orderbook"
)

var (
	ErrInvalidQuote = errors.New("invalid quote")
)

// PriceLevel is the aggregate size resting at one price on one side.
type PriceLevel struct {
	Price fixed.Point
	Size  fixed.Point
}

// Bids are kept descending so Min() is the best bid.
func bidLess(a, b PriceLevel) bool { return a.Price.Gt(b.Price) }

// Asks are kept ascending so Min() is the best ask.
func askLess(a, b PriceLevel) bool { return a.Price.Lt(b.Price) }

// OrderBook is a level-2 view of one ticker built from quote updates.
// All methods are safe for concurrent use.
type OrderBook struct {
	ticker string

	mu   sync.Mutex
	bids *btree.BTreeG[PriceLevel]
	asks *btree.BTreeG[PriceLevel]

	lastUpdate time.Time
}

func NewOrderBook(ticker string) *OrderBook {
	return &OrderBook{
		ticker: ticker,
		bids:   btree.NewG[PriceLevel](ladderDegree, bidLess),
		asks:   btree.NewG[PriceLevel](ladderDegree, askLess),
	}
}

func (b *OrderBook) Ticker() string {
	return b.ticker
}

// AddQuote upserts a level. A zero size removes the level. Returns true
// when the level is the best of its side afterwards.
func (b *OrderBook) AddQuote(isBid bool, price, size fixed.Point) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addQuote(isBid, price, size)
}

// UpdateQuote changes the size of an existing level only. Returns true when
// the level is the best of its side and the side is not empty.
func (b *OrderBook) UpdateQuote(isBid bool, price, size fixed.Point) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updateQuote(isBid, price, size)
}

// RemoveQuote deletes a level. Returns true when the removed level was the
// best of its side and the side still has size afterwards.
func (b *OrderBook) RemoveQuote(isBid bool, price, _ fixed.Point) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeQuote(isBid, price)
}

// SetBestBook discards every level better than price on the given side and
// then adds the quote. Used by feeds that only publish top of book.
func (b *OrderBook) SetBestBook(isBid bool, price, size fixed.Point) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	ladder := b.ladder(isBid)
	var stale []PriceLevel
	ladder.Ascend(func(level PriceLevel) bool {
		// Ascend walks from the best level, stop at the first one not better than price.
		if (isBid && level.Price.Gt(price)) || (!isBid && level.Price.Lt(price)) {
			stale = append(stale, level)
			return true
		}
		return false
	})
	for _, level := range stale {
		ladder.Delete(level)
	}

	return b.addQuote(isBid, price, size)
}

// Clear empties both sides, used when resyncing from a snapshot.
func (b *OrderBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids.Clear(false)
	b.asks.Clear(false)
}

func (b *OrderBook) BestBid() fixed.Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return best(b.bids).Price
}

func (b *OrderBook) BestAsk() fixed.Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return best(b.asks).Price
}

func (b *OrderBook) BidSize() fixed.Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return best(b.bids).Size
}

func (b *OrderBook) AskSize() fixed.Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return best(b.asks).Size
}

// Depth returns the number of bid and ask levels.
func (b *OrderBook) Depth() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bids.Len(), b.asks.Len()
}

// Snapshot returns up to depth levels per side, best first. A depth <= 0
// returns every level.
func (b *OrderBook) Snapshot(depth int) ([]PriceLevel, []PriceLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return collect(b.bids, depth), collect(b.asks, depth)
}

// ApplyQuote validates q and applies it as an add, or as a set-best when
// q.TopOfBook is set.
func (b *OrderBook) ApplyQuote(q Quote) (bool, error) {
	if q.Price.IsNegative() || q.Size.IsNegative() {
		return false, fmt.Errorf("%w: price %s size %s", ErrInvalidQuote, q.Price, q.Size)
	}
	if q.Price.IsZero() && !q.Size.IsZero() {
		return false, fmt.Errorf("%w: zero price with size %s", ErrInvalidQuote, q.Size)
	}

	b.mu.Lock()
	if q.TimeStamp.After(b.lastUpdate) {
		b.lastUpdate = q.TimeStamp
	}
	b.mu.Unlock()

	if q.TopOfBook {
		return b.SetBestBook(q.IsBid, q.Price, q.Size), nil
	}
	return b.AddQuote(q.IsBid, q.Price, q.Size), nil
}

// ToTick builds a tick from the top of the book.
func (b *OrderBook) ToTick() common.Tick {
	b.mu.Lock()
	defer b.mu.Unlock()

	bid := best(b.bids)
	ask := best(b.asks)
	return common.Tick{
		Bid:         bid.Price,
		Ask:         ask.Price,
		BidVolume:   bid.Size,
		AskVolume:   ask.Size,
		Source:      bookComponentName,
		Symbol:      b.ticker,
		ExecutionId: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   b.lastUpdate,
	}
}

func (b *OrderBook) addQuote(isBid bool, price, size fixed.Point) bool {
	if size.IsZero() {
		return b.removeQuote(isBid, price)
	}

	ladder := b.ladder(isBid)
	if _, ok := ladder.Get(PriceLevel{Price: price}); ok {
		return b.updateQuote(isBid, price, size)
	}

	ladder.ReplaceOrInsert(PriceLevel{Price: price, Size: size})
	return isTop(ladder, price)
}

func (b *OrderBook) updateQuote(isBid bool, price, size fixed.Point) bool {
	ladder := b.ladder(isBid)
	if _, ok := ladder.Get(PriceLevel{Price: price}); !ok {
		return false
	}
	if size.IsZero() {
		return b.removeQuote(isBid, price)
	}

	ladder.ReplaceOrInsert(PriceLevel{Price: price, Size: size})
	return isTop(ladder, price) && best(ladder).Size.IsPositive()
}

func (b *OrderBook) removeQuote(isBid bool, price fixed.Point) bool {
	ladder := b.ladder(isBid)
	wasTop := isTop(ladder, price)

	if _, ok := ladder.Delete(PriceLevel{Price: price}); !ok {
		return false
	}
	return wasTop && best(ladder).Size.IsPositive()
}

func (b *OrderBook) ladder(isBid bool) *btree.BTreeG[PriceLevel] {
	if isBid {
		return b.bids
	}
	return b.asks
}

func best(ladder *btree.BTreeG[PriceLevel]) PriceLevel {
	level, _ := ladder.Min()
	return level
}

func isTop(ladder *btree.BTreeG[PriceLevel], price fixed.Point) bool {
	level, ok := ladder.Min()
	return ok && level.Price.Eq(price)
}

func collect(ladder *btree.BTreeG[PriceLevel], depth int) []PriceLevel {
	levels := make([]PriceLevel, 0, ladder.Len())
	ladder.Ascend(func(level PriceLevel) bool {
		levels = append(levels, level)
		return depth <= 0 || len(levels) < depth
	})
	return levels
}
