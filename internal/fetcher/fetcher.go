package fetcher

import "StockPulse/internal/model"

// Fetcher defines the interface for retrieving candle data from a provider.
// Implementations do their own retry/backoff; the scheduler never retries a
// failed fetch within the same cycle.
type Fetcher interface {
	// FetchLatest returns the most recent candle for a symbol.
	FetchLatest(symbol string) (model.Candle, error)
	// FetchHistory returns candles covering the past days, oldest first.
	// No data is an empty slice, not an error.
	FetchHistory(symbol string, days int) ([]model.Candle, error)
	// Validate reports whether the provider knows the symbol.
	Validate(symbol string) bool
	Name() string
}
