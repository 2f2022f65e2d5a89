// Package metrics provides Prometheus metrics definitions.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/sherlock/internal/model"
)

const namespace = "sherlock"

// Gate outcomes.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

var (
	// GateEvaluations counts governance checks by component, operation and
	// outcome.
	GateEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_evaluations_total",
			Help:      "Governance gate evaluations by component, operation and outcome",
		},
		[]string{"component", "operation", "outcome"},
	)

	// Violations counts fatal governance outcomes by kind.
	Violations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Governance violations by kind",
		},
		[]string{"kind"},
	)

	// RecordLoadDuration tracks record read latency.
	RecordLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_load_seconds",
			Help:      "Record load duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"record"},
	)
)

// ObserveGate records the outcome of one check. A Violation counts as
// denied; any other error counts as an error.
func ObserveGate(component, operation string, err error) {
	outcome := OutcomeAllowed
	if err != nil {
		outcome = OutcomeError
		if kind := model.KindOf(err); kind != "" {
			outcome = OutcomeDenied
			Violations.WithLabelValues(string(kind)).Inc()
		}
	}
	GateEvaluations.WithLabelValues(component, operation, outcome).Inc()
}

// ObserveLoad matches the record store's load observer signature.
func ObserveLoad(kind string, d time.Duration) {
	RecordLoadDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr
// disables the listener.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listener started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
