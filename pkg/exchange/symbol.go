package exchange

import (
	"errors"
	"strings"
	"time"

	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

type SymbolClass string

const (
	Forex  SymbolClass = "forex"
	Equity SymbolClass = "equity"
	Crypto SymbolClass = "crypto"
)

var (
	ErrUnknownSymbol = errors.New("unknown symbol")
)

type SymbolInfo struct {
	SymbolName    string
	SymbolId      int64
	Class         SymbolClass
	QuoteCurrency string
	Digits        int
	PipSize       fixed.Point
	ContractSize  fixed.Point
	LotSize       fixed.Point
	Leverage      fixed.Point
}

// Security is a tradable symbol bound to the venue it trades on.
type Security struct {
	SymbolInfo
	Venue Venue
}

func NewSecurity(info SymbolInfo, venue Venue) Security {
	return Security{SymbolInfo: info, Venue: venue}
}

func (s Security) Symbol() string { return s.SymbolName }

func (s Security) IsOpen(t time.Time) bool {
	return s.Venue.IsOpen(t)
}

func (s Security) IsOpenDuringBar(start, end time.Time) bool {
	return s.Venue.IsOpenDuringBar(start, end)
}

// RoundPrice rounds to the symbol's quoted digits. Zero digits leaves the
// price untouched.
func (s Security) RoundPrice(price fixed.Point) fixed.Point {
	if s.Digits <= 0 {
		return price
	}
	return price.Round(s.Digits)
}

// Securities is a case-insensitive lookup by symbol name.
type Securities map[string]Security

func NewSecurities(securities ...Security) Securities {
	m := make(Securities, len(securities))
	for _, s := range securities {
		m.Add(s)
	}
	return m
}

func (m Securities) Add(s Security) {
	m[strings.ToUpper(s.SymbolName)] = s
}

func (m Securities) Get(symbol string) (Security, error) {
	s, ok := m[strings.ToUpper(symbol)]
	if !ok {
		return Security{}, ErrUnknownSymbol
	}
	return s, nil
}
