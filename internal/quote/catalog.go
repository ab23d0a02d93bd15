package quote

import "github.com/shopspring/decimal"

// CatalogEntry is one tradable symbol with its opening price.
type CatalogEntry struct {
	Symbol string
	Name   string
	Price  decimal.Decimal
}

// DefaultCatalog returns the built-in symbol catalog. Symbols are seeded at
// process start and never added or removed at runtime.
func DefaultCatalog() []CatalogEntry {
	return []CatalogEntry{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.NewFromFloat(185.00)},
		{Symbol: "GOOGL", Name: "Alphabet Inc.", Price: decimal.NewFromFloat(2800.00)},
		{Symbol: "MSFT", Name: "Microsoft Corporation", Price: decimal.NewFromFloat(380.00)},
		{Symbol: "TSLA", Name: "Tesla Inc.", Price: decimal.NewFromFloat(250.00)},
		{Symbol: "AMZN", Name: "Amazon.com Inc.", Price: decimal.NewFromFloat(145.00)},
		{Symbol: "NVDA", Name: "NVIDIA Corporation", Price: decimal.NewFromFloat(450.00)},
		{Symbol: "META", Name: "Meta Platforms Inc.", Price: decimal.NewFromFloat(320.00)},
		{Symbol: "NFLX", Name: "Netflix Inc.", Price: decimal.NewFromFloat(400.00)},
	}
}
