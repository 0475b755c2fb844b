// Package metrics exposes Prometheus collectors for evaluations and provider calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vowguard"

// #region collectors
// Metrics holds the collectors registered for one process.
type Metrics struct {
	evaluations      *prometheus.CounterVec
	violations       *prometheus.CounterVec
	declarations     prometheus.Counter
	hotspots         *prometheus.CounterVec
	contradiction    prometheus.Histogram
	evaluationTime   prometheus.Histogram
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
}

// New registers every collector on reg. A nil reg uses a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluations by persona and honesty outcome",
		}, []string{"persona", "honest"}),
		violations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Violation points recorded by vow",
		}, []string{"vow"}),
		declarations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "honest_declarations_total",
			Help:      "Replies replaced by the honest declaration",
		}),
		hotspots: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collapse_hotspots_total",
			Help:      "Collapse hotspots by trigger",
		}, []string{"trigger"}),
		contradiction: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "contradiction_score",
			Help:      "Distribution of contradiction scores",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		evaluationTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "End-to-end evaluation latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Provider attempts by operation and outcome",
		}, []string{"op", "outcome"}),
		providerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "duration_seconds",
			Help:      "Provider attempt latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
	}
}

// #endregion collectors

// #region recording
// Evaluation is the subset of an outcome the collectors care about.
type Evaluation struct {
	PersonaID     string
	Honest        bool
	Contradiction float64
	ViolatedVows  []string
	Triggers      []string
	Declared      bool
	Elapsed       time.Duration
}

// RecordEvaluation records one finished evaluation.
func (m *Metrics) RecordEvaluation(e Evaluation) {
	if m == nil {
		return
	}
	honest := "false"
	if e.Honest {
		honest = "true"
	}
	m.evaluations.WithLabelValues(e.PersonaID, honest).Inc()
	m.contradiction.Observe(e.Contradiction)
	m.evaluationTime.Observe(e.Elapsed.Seconds())
	for _, v := range e.ViolatedVows {
		m.violations.WithLabelValues(v).Inc()
	}
	for _, t := range e.Triggers {
		m.hotspots.WithLabelValues(t).Inc()
	}
	if e.Declared {
		m.declarations.Inc()
	}
}

// ObserveProvider matches provider.Observer and records one attempt.
func (m *Metrics) ObserveProvider(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(op, outcome).Inc()
	m.providerDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// #endregion recording
