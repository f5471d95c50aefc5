package orderbook

import (
	"sort"
	"sync"
	"time"

	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

// Quote is a normalized level update from a feed adapter.
type Quote struct {
	Ticker    string
	IsBid     bool
	Price     fixed.Point
	Size      fixed.Point
	TopOfBook bool
	TimeStamp time.Time
}

// Registry owns one OrderBook per ticker. Books are created on first use
// and live until removed.
type Registry struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

func NewRegistry() *Registry {
	return &Registry{
		books: make(map[string]*OrderBook),
	}
}

func (r *Registry) Get(ticker string) (*OrderBook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[ticker]
	return book, ok
}

func (r *Registry) GetOrCreate(ticker string) *OrderBook {
	if book, ok := r.Get(ticker); ok {
		return book
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if book, ok := r.books[ticker]; ok {
		return book
	}
	book := NewOrderBook(ticker)
	r.books[ticker] = book
	return book
}

func (r *Registry) Remove(ticker string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.books, ticker)
}

// Tickers returns the registered tickers in ascending order.
func (r *Registry) Tickers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tickers := make([]string, 0, len(r.books))
	for ticker := range r.books {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// Apply routes q to the book of its ticker.
func (r *Registry) Apply(q Quote) (bool, error) {
	return r.GetOrCreate(q.Ticker).ApplyQuote(q)
}
