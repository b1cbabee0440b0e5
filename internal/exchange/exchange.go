// Package exchange defines the venue collaborators of the analytics engine and the
// concurrent fan-out used to query them.
package exchange

import (
	"context"
	"errors"
	"sort"
	"time"

	"market-analytics/internal/market"
)

var (
	// ErrUnknownExchange is returned when a name is not in the registry
	ErrUnknownExchange = errors.New("unknown exchange")

	// ErrSymbolNotListed is returned by venues that do not trade the symbol
	ErrSymbolNotListed = errors.New("symbol not listed")
)

// QuoteFetcher returns the best bid/ask and 24h volume of a symbol on one venue.
type QuoteFetcher interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (*market.ExchangeQuote, error)
}

// OrderBookFetcher returns a depth snapshot of a symbol on one venue.
type OrderBookFetcher interface {
	Name() string
	FetchOrderBook(ctx context.Context, symbol string, depth int) (*market.RawOrderBook, error)
}

// Venue is an exchange that serves both quotes and order books.
type Venue interface {
	QuoteFetcher
	OrderBookFetcher
}

// CandleSource returns ascending OHLCV candles.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
}

// LiquidationSource returns liquidation events seen for a symbol within the window.
type LiquidationSource interface {
	RecentLiquidations(symbol string, window time.Duration) []market.LiquidationEvent
}

// Registry is the immutable set of enabled venues, built once at startup.
type Registry struct {
	venues map[string]Venue
	names  []string
}

// NewRegistry indexes the venues by name. Later duplicates replace earlier ones.
func NewRegistry(venues ...Venue) *Registry {
	r := &Registry{venues: make(map[string]Venue, len(venues))}
	for _, v := range venues {
		if _, dup := r.venues[v.Name()]; !dup {
			r.names = append(r.names, v.Name())
		}
		r.venues[v.Name()] = v
	}
	sort.Strings(r.names)
	return r
}

// Names returns the sorted venue names.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Get returns the named venue.
func (r *Registry) Get(name string) (Venue, error) {
	v, ok := r.venues[name]
	if !ok {
		return nil, ErrUnknownExchange
	}
	return v, nil
}

// Subset returns the venues among names, skipping unknown ones, in name order.
func (r *Registry) Subset(names []string) []Venue {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Venue
	for _, n := range r.names {
		if len(names) == 0 || want[n] {
			out = append(out, r.venues[n])
		}
	}
	return out
}

// Len returns the number of venues.
func (r *Registry) Len() int {
	return len(r.names)
}
