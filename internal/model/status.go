package model

import (
	"fmt"
	"time"
)

// MarketStatus describes the trading session at one instant.
// NextClose is the zero time when the market is closed.
type MarketStatus struct {
	IsOpen       bool
	IsTradingDay bool
	CurrentTime  time.Time
	NextOpen     time.Time
	NextClose    time.Time
}

func (m MarketStatus) String() string {
	state := "CLOSED"
	if m.IsOpen {
		state = "OPEN"
	}
	return fmt.Sprintf("Market: %s at %s", state, m.CurrentTime.Format("2006-01-02 15:04:05"))
}

// FetchResult is the outcome of one fetch attempt for one symbol.
// On failure, Candle is nil and Message carries the error text.
type FetchResult struct {
	Symbol    string
	Success   bool
	Candle    *Candle
	Message   string
	Timestamp time.Time
}

// SchedulerStatus is a point-in-time snapshot of the collection scheduler.
type SchedulerStatus struct {
	IsRunning       bool
	LastFetchTime   time.Time
	FetchCount      int64
	ErrorCount      int64
	MarketStatus    MarketStatus
	SymbolsCount    int
	TotalRecords    int
	MarketHoursOnly bool
}

func (s SchedulerStatus) String() string {
	state := "STOPPED"
	if s.IsRunning {
		state = "RUNNING"
	}
	lastFetch := "Never"
	if !s.LastFetchTime.IsZero() {
		lastFetch = s.LastFetchTime.Format("15:04:05")
	}
	return fmt.Sprintf("Tracker: %s | Last Fetch: %s | Records: %d", state, lastFetch, s.TotalRecords)
}

// StoreStats summarizes the contents of the sample store.
type StoreStats struct {
	TotalRecords    int
	SymbolCounts    map[string]int
	OldestTimestamp time.Time
	NewestTimestamp time.Time
	DatabaseSize    string
}
