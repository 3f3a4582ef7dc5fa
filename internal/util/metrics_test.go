package util

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var metricsInitialized = false

// ensureMetricsInit initializes metrics once for all tests; promauto
// panics on a second registration of the same metric name.
func ensureMetricsInit(t *testing.T) {
	t.Helper()
	if !metricsInitialized {
		err := Init()
		require.NoError(t, err)
		metricsInitialized = true
	}
}

func TestInit(t *testing.T) {
	t.Run("initializes metrics without error", func(t *testing.T) {
		metricsInitialized = false
		err := Init()
		require.NoError(t, err)
		assert.NotNil(t, logger)
		metricsInitialized = true
	})
}

func TestRecordBlockIndexed(t *testing.T) {
	ensureMetricsInit(t)

	t.Run("increments counter for chain", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordBlockIndexed("cosmoshub-4")
		})
	})

	t.Run("tracks separate chains independently", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordBlockIndexed("osmosis-1")
			RecordBlockIndexed("cosmoshub-4")
		})
	})
}

func TestRecordTxIndexed(t *testing.T) {
	ensureMetricsInit(t)

	t.Run("adds count for chain", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordTxIndexed("cosmoshub-4", 12)
		})
	})

	t.Run("handles zero count", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordTxIndexed("cosmoshub-4", 0)
		})
	})
}

func TestRecordRPCError(t *testing.T) {
	ensureMetricsInit(t)

	t.Run("records known error types", func(t *testing.T) {
		for _, errType := range []string{"connect", "subscribe", "timeout", "transport", "other"} {
			assert.NotPanics(t, func() {
				RecordRPCError(errType)
			})
		}
	})

	t.Run("maps unknown error type to other", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordRPCError("something-unexpected")
		})
	})
}

func TestRecordSequencerDrop(t *testing.T) {
	ensureMetricsInit(t)

	t.Run("increments drop counter for source", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordSequencerDrop("ws-primary")
		})
	})
}

func TestSetSequencerWindow(t *testing.T) {
	ensureMetricsInit(t)

	t.Run("sets window gauge for chain", func(t *testing.T) {
		assert.NotPanics(t, func() {
			SetSequencerWindow("cosmoshub-4", 42)
		})
	})

	t.Run("handles zero window size", func(t *testing.T) {
		assert.NotPanics(t, func() {
			SetSequencerWindow("cosmoshub-4", 0)
		})
	})
}

func TestRecordDispatcherDrop(t *testing.T) {
	ensureMetricsInit(t)

	t.Run("increments drop counter for subscriber", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordDispatcherDrop("indexer-worker-cosmoshub-4")
		})
	})
}

func TestRecordGapFillDuration(t *testing.T) {
	ensureMetricsInit(t)

	t.Run("observes valid duration", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordGapFillDuration(1.5)
		})
	})

	t.Run("ignores negative duration", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordGapFillDuration(-1.0)
		})
	})

	t.Run("accepts zero duration", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordGapFillDuration(0)
		})
	})
}

func TestRecordGapsFound(t *testing.T) {
	ensureMetricsInit(t)

	t.Run("adds gap count for chain", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordGapsFound("cosmoshub-4", 3)
		})
	})

	t.Run("handles zero gaps", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordGapsFound("cosmoshub-4", 0)
		})
	})
}

func TestGetMetricsPort(t *testing.T) {
	t.Run("defaults to 9090", func(t *testing.T) {
		os.Unsetenv("METRICS_PORT")
		assert.Equal(t, "9090", GetMetricsPort())
	})

	t.Run("reads from environment", func(t *testing.T) {
		os.Setenv("METRICS_PORT", "9999")
		defer os.Unsetenv("METRICS_PORT")
		assert.Equal(t, "9999", GetMetricsPort())
	})
}

func TestGetMetricsEndpoint(t *testing.T) {
	t.Run("defaults to /metrics", func(t *testing.T) {
		os.Unsetenv("METRICS_ENDPOINT")
		assert.Equal(t, "/metrics", GetMetricsEndpoint())
	})

	t.Run("reads from environment", func(t *testing.T) {
		os.Setenv("METRICS_ENDPOINT", "/custom-metrics")
		defer os.Unsetenv("METRICS_ENDPOINT")
		assert.Equal(t, "/custom-metrics", GetMetricsEndpoint())
	})
}

func TestNewOpsMux(t *testing.T) {
	ensureMetricsInit(t)

	t.Run("healthz returns 200 when healthy", func(t *testing.T) {
		mux := NewOpsMux(func() error { return nil })

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})

	t.Run("healthz returns 503 when unhealthy", func(t *testing.T) {
		mux := NewOpsMux(func() error { return assert.AnError })

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("healthz returns 200 with nil health check", func(t *testing.T) {
		mux := NewOpsMux(nil)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("serves metrics endpoint", func(t *testing.T) {
		os.Unsetenv("METRICS_ENDPOINT")
		mux := NewOpsMux(nil)

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "go_goroutines")
	})
}
