// Package metrics collects Prometheus metrics for the call orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the set of collectors the orchestrator reports into. Create
// one per process with New; collectors register with the default registry
// and are served on /metrics.
type Metrics struct {
	// CallsStarted counts sessions created.
	CallsStarted prometheus.Counter

	// CallsFinalized counts finalizations by outcome.
	CallsFinalized *prometheus.CounterVec

	// TurnsProcessed counts processed customer utterances by signal.
	TurnsProcessed *prometheus.CounterVec

	// ActiveSessions tracks in-flight sessions.
	ActiveSessions prometheus.Gauge

	// GenerationDuration measures text generator latency in seconds.
	GenerationDuration prometheus.Histogram

	// GenerationFailures counts canned-line fallbacks.
	GenerationFailures prometheus.Counter

	// FinalizationFailures counts failed side effects by step
	// (record|email).
	FinalizationFailures *prometheus.CounterVec
}

// New creates and registers all collectors. Call once at startup.
func New() *Metrics {
	return &Metrics{
		CallsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "callagent_calls_started_total",
			Help: "Total number of call sessions created",
		}),
		CallsFinalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "callagent_calls_finalized_total",
			Help: "Total number of finalized calls by outcome",
		}, []string{"outcome"}),
		TurnsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "callagent_turns_processed_total",
			Help: "Total number of processed customer utterances by signal",
		}, []string{"signal"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "callagent_active_sessions",
			Help: "Number of in-flight call sessions",
		}),
		GenerationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "callagent_generation_duration_seconds",
			Help:    "Latency of text generator requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		GenerationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "callagent_generation_failures_total",
			Help: "Total number of generation failures recovered with canned lines",
		}),
		FinalizationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "callagent_finalization_failures_total",
			Help: "Total number of failed finalization side effects by step",
		}, []string{"step"}),
	}
}

// Nop returns a Metrics whose collectors are unregistered, for tests that
// construct multiple engines in one process.
func Nop() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		CallsStarted: f.NewCounter(prometheus.CounterOpts{Name: "callagent_calls_started_total", Help: "-"}),
		CallsFinalized: f.NewCounterVec(prometheus.CounterOpts{Name: "callagent_calls_finalized_total", Help: "-"},
			[]string{"outcome"}),
		TurnsProcessed: f.NewCounterVec(prometheus.CounterOpts{Name: "callagent_turns_processed_total", Help: "-"},
			[]string{"signal"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{Name: "callagent_active_sessions", Help: "-"}),
		GenerationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name: "callagent_generation_duration_seconds", Help: "-",
		}),
		GenerationFailures: f.NewCounter(prometheus.CounterOpts{Name: "callagent_generation_failures_total", Help: "-"}),
		FinalizationFailures: f.NewCounterVec(prometheus.CounterOpts{Name: "callagent_finalization_failures_total", Help: "-"},
			[]string{"step"}),
	}
}
