package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"StockPulse/internal/config"
	"StockPulse/internal/fetcher"
	"StockPulse/internal/market"
	"StockPulse/internal/metrics"
	"StockPulse/internal/scheduler"
	"StockPulse/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] StockPulse starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init market calendar
	cal, err := market.NewCalendar(cfg.Market)
	if err != nil {
		log.Fatalf("[FATAL] init market calendar: %v", err)
	}

	// Init store; a failure here aborts startup.
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("[FATAL] create data directory: %v", err)
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("[FATAL] init store: %v", err)
	}
	defer st.Close()

	// Init fetcher
	var f fetcher.Fetcher
	if os.Getenv("MOCK_FETCHER") == "true" {
		f = fetcher.NewMockFetcher()
	} else {
		f = fetcher.NewYahooFetcher(cfg.Fetch.CandleInterval, cfg.Proxy)
	}
	log.Printf("[INFO] data source: %s", f.Name())

	// Init metrics server
	m := metrics.New()
	msrv := metrics.NewServer(cfg.Metrics.Addr, m, st.DB())
	msrv.Start()

	// Init scheduler
	sched := scheduler.New(cfg.Fetch, cfg.Retention, cal, f, st, m)
	sched.Start()
	defer sched.Stop()

	// Optional: collect immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, collecting now")
		go sched.CollectNow(true)
	}

	log.Println("[INFO] StockPulse is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msrv.Stop(ctx)
	log.Println("[INFO] StockPulse stopped")
}
