// Package quote owns the simulated market data: a feed of per-symbol quotes
// seeded from a static catalog, and a background simulator that perturbs
// prices with a bounded random walk.
//
// All monetary values use shopspring/decimal — never float64 for money.
package quote

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradesim/market-engine/internal/model"
)

// ErrUnknownSymbol is returned for symbols not present in the catalog.
var ErrUnknownSymbol = errors.New("quote: unknown symbol")

// PriceScale is the number of decimal places quotes are rounded to.
const PriceScale int32 = 2

// Feed holds the current quote for every tradable symbol. One writer (the
// simulator) races with many readers; all access goes through the RWMutex so
// readers observe either the pre- or post-tick quote, never a torn value.
type Feed struct {
	mu     sync.RWMutex
	quotes map[string]*model.Quote
}

// NewFeed seeds a feed from a catalog. Daily high and low start at the
// opening price.
func NewFeed(catalog []CatalogEntry) *Feed {
	f := &Feed{quotes: make(map[string]*model.Quote, len(catalog))}
	now := time.Now().UTC()
	for _, c := range catalog {
		price := c.Price.Round(PriceScale)
		f.quotes[c.Symbol] = &model.Quote{
			Symbol:    c.Symbol,
			Name:      c.Name,
			Price:     price,
			DailyHigh: price,
			DailyLow:  price,
			UpdatedAt: now,
		}
	}
	return f
}

// Get returns a snapshot of one quote.
func (f *Feed) Get(symbol string) (model.Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	q, ok := f.quotes[symbol]
	if !ok {
		return model.Quote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return *q, nil
}

// List returns a snapshot of every quote keyed by symbol.
func (f *Feed) List() map[string]model.Quote {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]model.Quote, len(f.quotes))
	for sym, q := range f.quotes {
		out[sym] = *q
	}
	return out
}

// Symbols returns all catalog symbols in sorted order.
func (f *Feed) Symbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	syms := make([]string, 0, len(f.quotes))
	for sym := range f.quotes {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// ApplyDelta multiplies the symbol's price by (1 + pctChange), rounds to
// PriceScale, and folds the new price into the daily high/low. Returns the
// post-tick quote.
func (f *Feed) ApplyDelta(symbol string, pctChange decimal.Decimal) (model.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, ok := f.quotes[symbol]
	if !ok {
		return model.Quote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	one := decimal.NewFromInt(1)
	q.Price = q.Price.Mul(one.Add(pctChange)).Round(PriceScale)
	if q.Price.GreaterThan(q.DailyHigh) {
		q.DailyHigh = q.Price
	}
	if q.Price.LessThan(q.DailyLow) {
		q.DailyLow = q.Price
	}
	q.UpdatedAt = time.Now().UTC()

	return *q, nil
}
