package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the tracker. Each instance owns
// its registry, so tests can construct as many as they need.
type Metrics struct {
	reg *prometheus.Registry

	CyclesTotal    prometheus.Counter
	FetchErrors    prometheus.Counter
	SamplesStored  prometheus.Counter
	CollectDur     prometheus.Histogram
	MarketState    prometheus.Gauge
	TrackedSymbols prometheus.Gauge
	TotalRecords   prometheus.Gauge
}

// New registers and returns all tracker metrics.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_collection_cycles_total",
			Help: "Total collection cycles executed (scheduled and manual)",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_fetch_errors_total",
			Help: "Total per-symbol fetch failures",
		}),
		SamplesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_samples_stored_total",
			Help: "Total new samples written to the store",
		}),
		CollectDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_collect_duration_seconds",
			Help:    "Duration of one full collection cycle",
			Buckets: prometheus.DefBuckets,
		}),
		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
		TrackedSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_symbols",
			Help: "Number of symbols under scheduled collection",
		}),
		TotalRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_stored_records",
			Help: "Total samples currently in the store",
		}),
	}

	m.reg.MustRegister(
		m.CyclesTotal,
		m.FetchErrors,
		m.SamplesStored,
		m.CollectDur,
		m.MarketState,
		m.TrackedSymbols,
		m.TotalRecords,
	)
	return m
}

// SetMarketOpen records the market session gauge.
func (m *Metrics) SetMarketOpen(open bool) {
	if open {
		m.MarketState.Set(1)
	} else {
		m.MarketState.Set(0)
	}
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	srv *http.Server
	db  *sql.DB
}

// NewServer creates the metrics and health server. db backs the /healthz
// store ping and may be nil.
func NewServer(addr string, m *Metrics, db *sql.DB) *Server {
	s := &Server{db: db}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	storeOK := true
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		storeOK = s.db.PingContext(ctx) == nil
	}

	w.Header().Set("Content-Type", "application/json")
	status := "healthy"
	if !storeOK {
		status = "unhealthy"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(struct {
		Status  string `json:"status"`
		StoreOK bool   `json:"store_ok"`
	}{Status: status, StoreOK: storeOK})
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[INFO] metrics server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[ERROR] metrics server: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
