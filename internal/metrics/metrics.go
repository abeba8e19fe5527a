// Package metrics exposes orchestrator activity as Prometheus metrics.
//
// Metrics implements lint.Observer and registers its collectors on a
// caller-supplied registry, so several instances can coexist in tests.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/linthost/internal/lint"
)

const namespace = "linthost"

// Metrics holds the orchestrator collectors.
type Metrics struct {
	// ChecksTotal counts completed check cycles.
	ChecksTotal prometheus.Counter

	// ToolRunsTotal counts tool processes that terminated.
	// Labels: tool, outcome (clean, nonzero)
	ToolRunsTotal *prometheus.CounterVec

	// SpawnFailuresTotal counts tools that could not be started.
	// Labels: tool
	SpawnFailuresTotal *prometheus.CounterVec

	// DiagnosticsTotal counts annotations sent to the sink.
	// Labels: tool, severity
	DiagnosticsTotal *prometheus.CounterVec

	// CheckDurationSeconds measures dispatch-to-completion time.
	CheckDurationSeconds prometheus.Histogram

	// QueuedRequests is the number of waiting check requests.
	QueuedRequests prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ChecksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Completed check cycles.",
		}),
		ToolRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_runs_total",
			Help:      "Tool processes that ran to termination, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		SpawnFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawn_failures_total",
			Help:      "Tool processes that could not be started.",
		}, []string{"tool"}),
		DiagnosticsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Annotations sent to the sink, by tool and severity.",
		}, []string{"tool", "severity"}),
		CheckDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Time from dispatch of a check to its last tool termination.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		QueuedRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Check requests waiting for dispatch.",
		}),
		gatherer: reg,
	}
}

// CheckStarted implements lint.Observer.
func (m *Metrics) CheckStarted(string) {}

// ToolCompleted implements lint.Observer.
func (m *Metrics) ToolCompleted(tool string, exitCode int) {
	outcome := "clean"
	if exitCode != 0 {
		outcome = "nonzero"
	}
	m.ToolRunsTotal.WithLabelValues(tool, outcome).Inc()
}

// SpawnFailed implements lint.Observer.
func (m *Metrics) SpawnFailed(tool string, _ error) {
	m.SpawnFailuresTotal.WithLabelValues(tool).Inc()
}

// DiagnosticEmitted implements lint.Observer.
func (m *Metrics) DiagnosticEmitted(d lint.Diagnostic) {
	m.DiagnosticsTotal.WithLabelValues(d.Tool, d.Severity.String()).Inc()
}

// CheckCompleted implements lint.Observer.
func (m *Metrics) CheckCompleted(res lint.CheckResult) {
	m.ChecksTotal.Inc()
	m.CheckDurationSeconds.Observe(res.Duration.Seconds())
}

// QueueDepth implements lint.Observer.
func (m *Metrics) QueueDepth(depth int) {
	m.QueuedRequests.Set(float64(depth))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
