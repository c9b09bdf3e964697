package scheduler

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"StockPulse/internal/config"
	"StockPulse/internal/fetcher"
	"StockPulse/internal/market"
	"StockPulse/internal/metrics"
	"StockPulse/internal/model"
	"StockPulse/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// openCalendar trades every day, all day.
func openCalendar(t *testing.T) *market.Calendar {
	t.Helper()
	cal, err := market.NewCalendar(config.MarketConfig{
		Open:        "00:00",
		Close:       "23:59",
		TradingDays: []int{0, 1, 2, 3, 4, 5, 6},
		Timezone:    "UTC",
	})
	if err != nil {
		t.Fatalf("new calendar: %v", err)
	}
	return cal
}

// closedCalendar never trades.
func closedCalendar(t *testing.T) *market.Calendar {
	t.Helper()
	cal, err := market.NewCalendar(config.MarketConfig{
		Open:        "09:15",
		Close:       "15:30",
		TradingDays: []int{},
		Timezone:    "UTC",
	})
	if err != nil {
		t.Fatalf("new calendar: %v", err)
	}
	return cal
}

func newTestScheduler(t *testing.T, cal *market.Calendar, f fetcher.Fetcher, symbols ...string) (*Scheduler, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	fcfg := config.FetchConfig{
		Symbols:         symbols,
		IntervalMinutes: 5,
		PauseMs:         1,
	}
	rcfg := config.RetentionConfig{Days: 30, CleanupTime: "06:00"}
	return New(fcfg, rcfg, cal, f, st, nil), st
}

var ts1 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestCollectPartialFailure(t *testing.T) {
	mock := fetcher.NewMockFetcher()
	mock.Latest["AAPL"] = model.NewCandle("AAPL", ts1, 100, 101, 97, 98, 2_000_000)
	mock.Latest["MSFT"] = model.NewCandle("MSFT", ts1, 50, 52, 49, 51, 1_000_000)
	mock.Errs["TSLA"] = errors.New("provider unavailable")

	s, st := newTestScheduler(t, openCalendar(t), mock, "AAPL", "MSFT", "TSLA")

	results := s.Collect(false)
	if len(results) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(results))
	}
	success := 0
	for _, r := range results {
		if r.Success {
			success++
		} else if r.Message == "" {
			t.Errorf("failed outcome for %s has no message", r.Symbol)
		}
	}
	if success != 2 {
		t.Errorf("successes = %d, want 2", success)
	}

	status := s.Status()
	if status.ErrorCount != 1 {
		t.Errorf("error count = %d, want 1", status.ErrorCount)
	}
	if status.FetchCount != 1 {
		t.Errorf("fetch count = %d, want 1", status.FetchCount)
	}
	if status.LastFetchTime.IsZero() {
		t.Error("last fetch time must advance even on partial failure")
	}

	n, err := st.TotalCount()
	if err != nil {
		t.Fatalf("total count: %v", err)
	}
	if n != 2 {
		t.Errorf("stored samples = %d, want 2", n)
	}
}

func TestCollectMarketGating(t *testing.T) {
	mock := fetcher.NewMockFetcher()
	mock.Latest["AAPL"] = model.NewCandle("AAPL", ts1, 100, 101, 97, 98, 2_000_000)

	s, _ := newTestScheduler(t, closedCalendar(t), mock, "AAPL")

	if results := s.Collect(false); results != nil {
		t.Errorf("closed market without force should skip, got %d outcomes", len(results))
	}
	if status := s.Status(); status.FetchCount != 0 {
		t.Errorf("skipped cycle must not advance fetch count, got %d", status.FetchCount)
	}

	if results := s.Collect(true); len(results) != 1 {
		t.Errorf("forced collection should run, got %d outcomes", len(results))
	}

	s.SetMarketHoursOnly(false)
	if results := s.Collect(false); len(results) != 1 {
		t.Errorf("gating disabled should collect, got %d outcomes", len(results))
	}
}

func TestAddRemoveSymbol(t *testing.T) {
	mock := fetcher.NewMockFetcher()
	mock.Known = map[string]bool{"NVDA": true}

	s, _ := newTestScheduler(t, openCalendar(t), mock, "AAPL")

	if !s.AddSymbol("nvda") {
		t.Error("valid symbol should be added")
	}
	if got := s.Symbols(); len(got) != 2 || got[1] != "NVDA" {
		t.Errorf("symbols = %v, want [AAPL NVDA]", got)
	}

	// Already tracked (case-insensitive): success no-op, no validation call needed.
	if !s.AddSymbol("aapl") {
		t.Error("re-adding a tracked symbol is a success no-op")
	}
	if got := s.Symbols(); len(got) != 2 {
		t.Errorf("duplicate add must not grow the list: %v", got)
	}

	if s.AddSymbol("FAKE") {
		t.Error("unknown symbol must be rejected")
	}
	if s.AddSymbol("  ") {
		t.Error("blank symbol must be rejected")
	}

	if !s.RemoveSymbol("AAPL") {
		t.Error("removing a tracked symbol should succeed")
	}
	if s.RemoveSymbol("AAPL") {
		t.Error("removing an absent symbol should report false")
	}
	if got := s.Symbols(); len(got) != 1 || got[0] != "NVDA" {
		t.Errorf("symbols = %v, want [NVDA]", got)
	}
}

func TestBackfillDedup(t *testing.T) {
	mock := fetcher.NewMockFetcher()
	history := make([]model.Candle, 0, 5)
	for i := 0; i < 5; i++ {
		history = append(history, model.NewCandle("AAPL", ts1.Add(time.Duration(i)*5*time.Minute), 100, 101, 97, 98, 2_000_000))
	}
	mock.History["AAPL"] = history

	s, _ := newTestScheduler(t, openCalendar(t), mock, "AAPL")

	n, err := s.Backfill("AAPL", 1)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if n != 5 {
		t.Errorf("first backfill wrote %d, want 5", n)
	}

	// Overlapping range: every row is a duplicate, so nothing counts.
	n, err = s.Backfill("AAPL", 1)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if n != 0 {
		t.Errorf("second backfill wrote %d, want 0", n)
	}

	if _, err := s.Backfill("AAPL", 0); err == nil {
		t.Error("non-positive days must be rejected before any work")
	}
}

func TestBackfillAll(t *testing.T) {
	mock := fetcher.NewMockFetcher()
	mock.History["AAPL"] = []model.Candle{model.NewCandle("AAPL", ts1, 100, 101, 97, 98, 2_000_000)}
	mock.History["MSFT"] = []model.Candle{model.NewCandle("MSFT", ts1, 50, 52, 49, 51, 1_000_000)}

	s, _ := newTestScheduler(t, openCalendar(t), mock, "AAPL", "MSFT")

	results := s.BackfillAll(1)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results["AAPL"] != 1 || results["MSFT"] != 1 {
		t.Errorf("results = %v, want 1 per symbol", results)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	mock := fetcher.NewMockFetcher()
	s, _ := newTestScheduler(t, openCalendar(t), mock, "AAPL")

	if s.Status().IsRunning {
		t.Error("scheduler must be created stopped")
	}

	s.Start()
	if !s.Status().IsRunning {
		t.Error("scheduler should be running after Start")
	}
	s.Start() // no-op with warning

	s.Stop()
	if s.Status().IsRunning {
		t.Error("scheduler should be stopped after Stop")
	}
	s.Stop() // no-op
}

func TestCleanupPurgesAndResetsErrors(t *testing.T) {
	mock := fetcher.NewMockFetcher()
	recent := time.Now().Add(-time.Hour)
	mock.Latest["AAPL"] = model.NewCandle("AAPL", recent, 100, 101, 97, 98, 2_000_000)
	mock.Errs["TSLA"] = errors.New("provider unavailable")

	s, st := newTestScheduler(t, openCalendar(t), mock, "AAPL", "TSLA")

	s.Collect(true)
	if got := s.Status().ErrorCount; got != 1 {
		t.Fatalf("error count = %d, want 1 before cleanup", got)
	}

	// One sample past the 30-day retention window.
	old := model.NewCandle("AAPL", time.Now().AddDate(0, 0, -40), 100, 101, 97, 98, 2_000_000)
	if _, err := st.Insert(old); err != nil {
		t.Fatalf("insert old sample: %v", err)
	}
	if n, err := st.TotalCount(); err != nil || n != 2 {
		t.Fatalf("total = %d (%v), want 2 before cleanup", n, err)
	}

	s.Cleanup()

	if got := s.Status().ErrorCount; got != 0 {
		t.Errorf("error count = %d, want 0 after cleanup", got)
	}
	n, err := st.TotalCount()
	if err != nil {
		t.Fatalf("total count: %v", err)
	}
	if n != 1 {
		t.Errorf("total = %d after cleanup, want only the recent sample", n)
	}
}

func TestCollectUpdatesStoredRecordsGauge(t *testing.T) {
	mock := fetcher.NewMockFetcher()
	mock.Latest["AAPL"] = model.NewCandle("AAPL", ts1, 100, 101, 97, 98, 2_000_000)

	st := newTestStore(t)
	m := metrics.New()
	fcfg := config.FetchConfig{Symbols: []string{"AAPL"}, IntervalMinutes: 5, PauseMs: 1}
	rcfg := config.RetentionConfig{Days: 30, CleanupTime: "06:00"}
	s := New(fcfg, rcfg, openCalendar(t), mock, st, m)

	s.Collect(true)

	if got := testutil.ToFloat64(m.TotalRecords); got != 1 {
		t.Errorf("stored records gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SamplesStored); got != 1 {
		t.Errorf("samples stored counter = %v, want 1", got)
	}

	// Duplicate cycle: the counter holds and the gauge still matches the store.
	s.Collect(true)
	if got := testutil.ToFloat64(m.TotalRecords); got != 1 {
		t.Errorf("gauge after duplicate cycle = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SamplesStored); got != 1 {
		t.Errorf("counter after duplicate cycle = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CyclesTotal); got != 2 {
		t.Errorf("cycles = %v, want 2", got)
	}
}

func TestNextCleanupTimeStaysOnClock(t *testing.T) {
	// Before today's due time: fires today.
	now := time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC)
	if next := nextCleanupTime(now, 6, 0); next.Day() != 2 || next.Hour() != 6 {
		t.Errorf("next = %v, want today 06:00", next)
	}

	// Past today's due time: fires tomorrow.
	now = time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	if next := nextCleanupTime(now, 6, 0); next.Day() != 3 || next.Hour() != 6 {
		t.Errorf("next = %v, want tomorrow 06:00", next)
	}

	// Across the fall-back transition the due time stays at the configured
	// wall clock instead of drifting an hour early.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	now = time.Date(2026, 10, 31, 7, 0, 0, 0, loc)
	next := nextCleanupTime(now, 6, 0)
	if next.Month() != time.November || next.Day() != 1 || next.Hour() != 6 || next.Minute() != 0 {
		t.Errorf("next across DST = %v, want Nov 1 06:00 local", next)
	}
}

func TestCollectNowWhileStopped(t *testing.T) {
	mock := fetcher.NewMockFetcher()
	mock.Latest["AAPL"] = model.NewCandle("AAPL", ts1, 100, 101, 97, 98, 2_000_000)

	s, st := newTestScheduler(t, openCalendar(t), mock, "AAPL")

	// Manual collection works without the recurring timer armed.
	results := s.CollectNow(true)
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("unexpected outcomes: %+v", results)
	}
	n, err := st.TotalCount()
	if err != nil {
		t.Fatalf("total count: %v", err)
	}
	if n != 1 {
		t.Errorf("stored samples = %d, want 1", n)
	}
}
