package fetcher

import (
	"fmt"
	"sync"
	"time"

	"StockPulse/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Zero value is usable; symbols not configured get generated candles.
type MockFetcher struct {
	mu sync.Mutex

	Latest  map[string]model.Candle   // per-symbol latest candle
	History map[string][]model.Candle // per-symbol history
	Errs    map[string]error          // per-symbol fetch error
	Known   map[string]bool           // Validate results; nil means everything validates
	Price   float64                   // base price for generated candles
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Latest:  make(map[string]model.Candle),
		History: make(map[string][]model.Candle),
		Errs:    make(map[string]error),
		Price:   100,
	}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchLatest(symbol string) (model.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errs[symbol]; ok && err != nil {
		return model.Candle{}, err
	}
	if c, ok := m.Latest[symbol]; ok {
		return c, nil
	}
	return m.generate(symbol, time.Now().Truncate(5*time.Minute)), nil
}

func (m *MockFetcher) FetchHistory(symbol string, days int) ([]model.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errs[symbol]; ok && err != nil {
		return nil, err
	}
	if h, ok := m.History[symbol]; ok {
		return h, nil
	}
	if days < 1 {
		return nil, fmt.Errorf("mock: invalid days %d", days)
	}
	candles := make([]model.Candle, 0, days*12)
	start := time.Now().AddDate(0, 0, -days).Truncate(5 * time.Minute)
	for i := 0; i < days*12; i++ {
		candles = append(candles, m.generate(symbol, start.Add(time.Duration(i)*5*time.Minute)))
	}
	return candles, nil
}

func (m *MockFetcher) Validate(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Known == nil {
		return true
	}
	return m.Known[symbol]
}

func (m *MockFetcher) generate(symbol string, ts time.Time) model.Candle {
	p := m.Price
	if p == 0 {
		p = 100
	}
	return model.NewCandle(symbol, ts, p*0.999, p*1.005, p*0.995, p, 1_000_000)
}
