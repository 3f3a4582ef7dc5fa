package util

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BlocksIndexed tracks total number of blocks successfully indexed, by chain_id
	BlocksIndexed prometheus.CounterVec

	// TxIndexed tracks total number of transactions persisted, by chain_id
	TxIndexed prometheus.CounterVec

	// RPCErrors tracks total number of RPC errors by error type
	RPCErrors prometheus.CounterVec

	// SequencerDrops tracks blocks dropped by the sequencer as stale duplicates
	SequencerDrops prometheus.CounterVec

	// SequencerWindow tracks the current occupancy of the sequencer's reorder window
	SequencerWindow prometheus.GaugeVec

	// DispatcherDrops tracks blocks evicted from a subscriber's buffer on overflow
	DispatcherDrops prometheus.CounterVec

	// GapFillDuration tracks time to fetch and index one historical gap
	GapFillDuration prometheus.Histogram

	// GapsFound tracks number of gaps found per gap-fill pass, by chain_id
	GapsFound prometheus.CounterVec

	logger *slog.Logger
)

// Init initializes all Prometheus metrics
func Init() error {
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("initializing prometheus metrics")

	BlocksIndexed = *promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_blocks_indexed_total",
		Help: "Total number of blocks indexed",
	}, []string{"chain_id"})

	TxIndexed = *promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_transactions_indexed_total",
		Help: "Total number of transactions persisted",
	}, []string{"chain_id"})

	RPCErrors = *promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_rpc_errors_total",
		Help: "Total number of RPC errors by type",
	}, []string{"error_type"})

	SequencerDrops = *promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_sequencer_drops_total",
		Help: "Total number of blocks dropped by the sequencer as stale or duplicate",
	}, []string{"source"})

	SequencerWindow = *promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "indexer_sequencer_window_size",
		Help: "Current number of blocks buffered in the sequencer's reorder window",
	}, []string{"chain_id"})

	DispatcherDrops = *promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_dispatcher_drops_total",
		Help: "Total number of blocks evicted from a subscriber buffer on overflow",
	}, []string{"subscriber"})

	GapFillDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "indexer_gap_fill_duration_seconds",
		Help:    "Time to fetch and index one historical gap",
		Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	GapsFound = *promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_gaps_found_total",
		Help: "Total number of gaps found by the gap filler",
	}, []string{"chain_id"})

	logger.Info("prometheus metrics initialized successfully")
	return nil
}

// RecordBlockIndexed increments the blocks-indexed counter for a chain
func RecordBlockIndexed(chainID string) {
	BlocksIndexed.WithLabelValues(chainID).Inc()
}

// RecordTxIndexed increments the transactions-indexed counter for a chain
func RecordTxIndexed(chainID string, count int) {
	TxIndexed.WithLabelValues(chainID).Add(float64(count))
}

// RecordRPCError increments the RPC errors counter for a specific error type.
// errorType should be one of: connect, subscribe, timeout, transport, other
func RecordRPCError(errorType string) {
	switch errorType {
	case "connect", "subscribe", "timeout", "transport", "other":
		RPCErrors.WithLabelValues(errorType).Inc()
	default:
		if logger != nil {
			logger.Warn("unknown RPC error type", "error_type", errorType)
		}
		RPCErrors.WithLabelValues("other").Inc()
	}
}

// RecordSequencerDrop increments the sequencer drop counter for a source provider
func RecordSequencerDrop(source string) {
	SequencerDrops.WithLabelValues(source).Inc()
}

// SetSequencerWindow records the current window occupancy for a chain
func SetSequencerWindow(chainID string, size int) {
	SequencerWindow.WithLabelValues(chainID).Set(float64(size))
}

// RecordDispatcherDrop increments the dispatcher drop counter for a subscriber
func RecordDispatcherDrop(subscriber string) {
	DispatcherDrops.WithLabelValues(subscriber).Inc()
}

// RecordGapFillDuration records the duration of a single gap-fill fetch in seconds
func RecordGapFillDuration(seconds float64) {
	if seconds < 0 {
		if logger != nil {
			logger.Warn("invalid gap fill duration", "seconds", seconds)
		}
		return
	}
	GapFillDuration.Observe(seconds)
}

// RecordGapsFound increments the gaps-found counter for a chain by n
func RecordGapsFound(chainID string, n int) {
	GapsFound.WithLabelValues(chainID).Add(float64(n))
}

// GetMetricsPort returns the configured metrics port from environment
func GetMetricsPort() string {
	port := os.Getenv("METRICS_PORT")
	if port == "" {
		port = "9090"
	}
	return port
}

// GetMetricsEndpoint returns the configured metrics endpoint from environment
func GetMetricsEndpoint() string {
	endpoint := os.Getenv("METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = "/metrics"
	}
	return endpoint
}

// NewOpsMux builds the chi mux serving /healthz and the metrics endpoint.
// This is the one HTTP surface the indexer keeps: operational health and
// metrics, not a query API over indexed data.
func NewOpsMux(healthCheck func() error) *chi.Mux {
	mux := chi.NewRouter()

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if healthCheck != nil {
			if err := healthCheck(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "unhealthy: %v", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	mux.Handle(GetMetricsEndpoint(), promhttp.Handler())

	return mux
}

// StartMetricsServer starts an HTTP server serving /healthz and Prometheus metrics.
func StartMetricsServer(healthCheck func() error) error {
	addr := fmt.Sprintf(":%s", GetMetricsPort())

	logger.Info("starting ops server",
		"address", addr,
		"endpoint", GetMetricsEndpoint(),
	)

	srv := &http.Server{
		Addr:         addr,
		Handler:      NewOpsMux(healthCheck),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("ops server error", "error", err.Error())
		return fmt.Errorf("ops server error: %w", err)
	}

	return nil
}
