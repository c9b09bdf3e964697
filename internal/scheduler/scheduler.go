package scheduler

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"StockPulse/internal/config"
	"StockPulse/internal/fetcher"
	"StockPulse/internal/market"
	"StockPulse/internal/metrics"
	"StockPulse/internal/model"
	"StockPulse/internal/store"
)

const (
	tickInterval = time.Second
	stopTimeout  = 5 * time.Second
)

// Scheduler owns the recurring collection of candle samples for the tracked
// symbol set. One background goroutine drives two due-times (collection
// interval, daily cleanup) off a one-second tick; manual collection and
// backfill can run concurrently, with the store serializing writes.
type Scheduler struct {
	fetcher  fetcher.Fetcher
	store    *store.Store
	calendar *market.Calendar
	metrics  *metrics.Metrics // may be nil

	interval      time.Duration
	pause         time.Duration
	retentionDays int
	cleanupHour   int
	cleanupMin    int

	mu              sync.Mutex
	symbols         []string
	running         bool
	lastFetchTime   time.Time
	fetchCount      int64
	errorCount      int64
	marketHoursOnly bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a stopped Scheduler. m may be nil to disable metrics.
func New(fcfg config.FetchConfig, rcfg config.RetentionConfig, cal *market.Calendar,
	f fetcher.Fetcher, st *store.Store, m *metrics.Metrics) *Scheduler {

	ch, cm, err := config.ParseClock(rcfg.CleanupTime)
	if err != nil {
		ch, cm = 6, 0
	}
	symbols := make([]string, 0, len(fcfg.Symbols))
	for _, sym := range fcfg.Symbols {
		symbols = append(symbols, strings.ToUpper(strings.TrimSpace(sym)))
	}

	s := &Scheduler{
		fetcher:         f,
		store:           st,
		calendar:        cal,
		metrics:         m,
		interval:        time.Duration(fcfg.IntervalMinutes) * time.Minute,
		pause:           time.Duration(fcfg.PauseMs) * time.Millisecond,
		retentionDays:   rcfg.Days,
		cleanupHour:     ch,
		cleanupMin:      cm,
		symbols:         symbols,
		marketHoursOnly: true,
	}
	if m != nil {
		m.TrackedSymbols.Set(float64(len(symbols)))
	}
	return s
}

// Start arms the timers and launches the background worker.
// Calling Start on a running scheduler is a no-op with a warning.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("[WARN] scheduler is already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.run(stopCh, doneCh)
	log.Printf("[INFO] scheduler started (interval %s, market hours only: %t)",
		s.interval, s.MarketHoursOnly())
}

// Stop asks the worker to exit and waits up to stopTimeout for it. If the
// worker does not acknowledge in time the scheduler is marked stopped anyway.
// Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(stopTimeout):
		log.Printf("[WARN] scheduler worker did not exit within %s", stopTimeout)
	}
	log.Println("[INFO] scheduler stopped")
}

// run is the worker loop: one short tick, two non-blocking due-checks.
func (s *Scheduler) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	nextCollect := time.Now().Add(s.interval)
	nextCleanup := nextCleanupTime(time.Now(), s.cleanupHour, s.cleanupMin)

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			if !now.Before(nextCollect) {
				s.Collect(false)
				nextCollect = now.Add(s.interval)
			}
			if !now.Before(nextCleanup) {
				s.Cleanup()
				// Recompute from the clock time so the due-time stays
				// anchored across DST transitions.
				nextCleanup = nextCleanupTime(now, s.cleanupHour, s.cleanupMin)
			}
		}
	}
}

// nextCleanupTime returns the next occurrence of the daily maintenance time,
// computed on the wall clock so it holds steady across DST transitions.
func nextCleanupTime(now time.Time, hour, min int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location())
	if !next.After(now) {
		d := now.AddDate(0, 0, 1)
		next = time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, now.Location())
	}
	return next
}

// Collect fetches the latest candle for every tracked symbol and stores the
// results. When force is false, market-hours gating applies and a closed
// market yields no results. Per-symbol failures never abort the batch; the
// return value carries one outcome per symbol attempted.
func (s *Scheduler) Collect(force bool) []model.FetchResult {
	start := time.Now()
	status := s.calendar.Status(start)
	if s.metrics != nil {
		s.metrics.SetMarketOpen(status.IsOpen)
	}

	s.mu.Lock()
	hoursOnly := s.marketHoursOnly
	syms := append([]string(nil), s.symbols...)
	s.mu.Unlock()

	if hoursOnly && !status.IsOpen && !force {
		log.Printf("[INFO] %s, skipping collection", status)
		return nil
	}

	results := make([]model.FetchResult, 0, len(syms))
	saved := 0
	var failures int64
	for _, sym := range syms {
		candle, err := s.fetcher.FetchLatest(sym)
		if err != nil {
			failures++
			log.Printf("[WARN] fetch %s: %v", sym, err)
			results = append(results, model.FetchResult{
				Symbol: sym, Success: false, Message: err.Error(), Timestamp: time.Now(),
			})
			continue
		}
		written, err := s.store.Insert(candle)
		if err != nil {
			// Storage faults are logged and survived; the fetch itself succeeded.
			log.Printf("[ERROR] save %s: %v", sym, err)
		} else if written {
			saved++
		}
		c := candle
		results = append(results, model.FetchResult{
			Symbol: sym, Success: true, Candle: &c, Timestamp: time.Now(),
		})
	}

	s.mu.Lock()
	s.lastFetchTime = time.Now()
	s.fetchCount++
	s.errorCount += failures
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CyclesTotal.Inc()
		s.metrics.FetchErrors.Add(float64(failures))
		s.metrics.SamplesStored.Add(float64(saved))
		s.metrics.CollectDur.Observe(time.Since(start).Seconds())
		s.updateRecordsGauge()
	}

	log.Printf("[INFO] collection completed: %d/%d symbols fetched, %d new samples",
		len(syms)-int(failures), len(syms), saved)
	return results
}

// CollectNow triggers a synchronous collection, usable whether or not the
// recurring timer is armed.
func (s *Scheduler) CollectNow(force bool) []model.FetchResult {
	log.Println("[INFO] manual collection triggered")
	return s.Collect(force)
}

// Cleanup purges samples beyond the retention window and resets the error
// counter. The worker invokes it once per day at the configured time; it is
// also callable directly for manual maintenance. Failures are logged; the
// worker loop survives them.
func (s *Scheduler) Cleanup() {
	log.Println("[INFO] running daily cleanup")

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.store.PurgeOlderThan(cutoff)
	if err != nil {
		log.Printf("[ERROR] cleanup purge: %v", err)
	}

	s.mu.Lock()
	s.errorCount = 0
	s.mu.Unlock()

	if s.metrics != nil {
		s.updateRecordsGauge()
	}
	log.Printf("[INFO] daily cleanup completed: %d old samples removed", deleted)
}

// updateRecordsGauge refreshes the stored-records gauge from the store.
func (s *Scheduler) updateRecordsGauge() {
	total, err := s.store.TotalCount()
	if err != nil {
		log.Printf("[WARN] records gauge: %v", err)
		return
	}
	s.metrics.TotalRecords.Set(float64(total))
}

// Backfill fetches a historical range for one symbol, not gated by market
// hours, and returns the count of newly written rows. Duplicates are not
// counted.
func (s *Scheduler) Backfill(symbol string, days int) (int, error) {
	if days < 1 {
		return 0, fmt.Errorf("backfill days must be positive, got %d", days)
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	log.Printf("[INFO] backfilling %d days for %s", days, sym)

	candles, err := s.fetcher.FetchHistory(sym, days)
	if err != nil {
		return 0, fmt.Errorf("backfill %s: %w", sym, err)
	}

	saved := 0
	for _, c := range candles {
		written, err := s.store.Insert(c)
		if err != nil {
			log.Printf("[ERROR] backfill save %s: %v", sym, err)
			continue
		}
		if written {
			saved++
		}
	}
	if s.metrics != nil {
		s.metrics.SamplesStored.Add(float64(saved))
	}
	log.Printf("[INFO] backfilled %d samples for %s", saved, sym)
	return saved, nil
}

// BackfillAll backfills every tracked symbol with a small pause between
// symbols to bound burst load. The result maps symbol to newly written rows.
func (s *Scheduler) BackfillAll(days int) map[string]int {
	results := make(map[string]int)
	syms := s.Symbols()
	for i, sym := range syms {
		n, err := s.Backfill(sym, days)
		if err != nil {
			log.Printf("[WARN] backfill %s: %v", sym, err)
		}
		results[sym] = n
		if i < len(syms)-1 {
			time.Sleep(s.pause)
		}
	}
	return results
}

// SetMarketHoursOnly toggles market-hours gating for scheduled collection.
func (s *Scheduler) SetMarketHoursOnly(v bool) {
	s.mu.Lock()
	s.marketHoursOnly = v
	s.mu.Unlock()
	log.Printf("[INFO] market hours only mode: %t", v)
}

// MarketHoursOnly reports whether gating is enabled.
func (s *Scheduler) MarketHoursOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marketHoursOnly
}

// Status returns a snapshot of the scheduler; every field is computed fresh
// from its source of truth.
func (s *Scheduler) Status() model.SchedulerStatus {
	total, err := s.store.TotalCount()
	if err != nil {
		log.Printf("[WARN] status total count: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return model.SchedulerStatus{
		IsRunning:       s.running,
		LastFetchTime:   s.lastFetchTime,
		FetchCount:      s.fetchCount,
		ErrorCount:      s.errorCount,
		MarketStatus:    s.calendar.Status(time.Now()),
		SymbolsCount:    len(s.symbols),
		TotalRecords:    total,
		MarketHoursOnly: s.marketHoursOnly,
	}
}
