package scheduler

import (
	"log"
	"strings"
)

// AddSymbol admits a new symbol after validating it against the candle
// source. Returns true when the symbol is tracked afterwards: adding an
// already-tracked symbol is a success no-op, a symbol the provider does not
// know is rejected with false and no state change.
func (s *Scheduler) AddSymbol(symbol string) bool {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return false
	}

	if s.tracked(sym) {
		log.Printf("[INFO] symbol %s already being tracked", sym)
		return true
	}

	// Validate outside the lock; provider calls can be slow.
	if !s.fetcher.Validate(sym) {
		log.Printf("[WARN] invalid symbol: %s", sym)
		return false
	}

	s.mu.Lock()
	if !containsSymbol(s.symbols, sym) {
		s.symbols = append(s.symbols, sym)
	}
	count := len(s.symbols)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.TrackedSymbols.Set(float64(count))
	}
	log.Printf("[INFO] added symbol %s to tracking list", sym)
	return true
}

// RemoveSymbol drops a symbol from tracking. Returns false when it was not
// being tracked.
func (s *Scheduler) RemoveSymbol(symbol string) bool {
	sym := strings.ToUpper(strings.TrimSpace(symbol))

	s.mu.Lock()
	idx := -1
	for i, t := range s.symbols {
		if t == sym {
			idx = i
			break
		}
	}
	if idx >= 0 {
		s.symbols = append(s.symbols[:idx], s.symbols[idx+1:]...)
	}
	count := len(s.symbols)
	s.mu.Unlock()

	if idx < 0 {
		log.Printf("[WARN] symbol %s not in tracking list", sym)
		return false
	}
	if s.metrics != nil {
		s.metrics.TrackedSymbols.Set(float64(count))
	}
	log.Printf("[INFO] removed symbol %s from tracking list", sym)
	return true
}

// Symbols returns a copy of the tracked symbol list in insertion order.
func (s *Scheduler) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.symbols...)
}

func (s *Scheduler) tracked(sym string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return containsSymbol(s.symbols, sym)
}

func containsSymbol(symbols []string, sym string) bool {
	for _, t := range symbols {
		if t == sym {
			return true
		}
	}
	return false
}
