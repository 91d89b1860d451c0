// Package metrics exposes Prometheus metrics for provider attempts and
// analysis requests.
package metrics

import (
	"fmt"
	"time"

	"VisionAnalytica/internal/entity"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type AnalysisMetrics struct {
	ProviderAttempts *prometheus.CounterVec
	ProviderSkipped  *prometheus.CounterVec
	AttemptDuration  *prometheus.HistogramVec
	Requests         *prometheus.CounterVec
	Violations       *prometheus.CounterVec
}

// NewAnalysisMetrics creates the metrics and registers them on registry.
func NewAnalysisMetrics(registry prometheus.Registerer) (*AnalysisMetrics, error) {
	m := &AnalysisMetrics{
		ProviderAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_attempts_total",
				Help: "Provider attempts partitioned by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		ProviderSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_skipped_total",
				Help: "Providers skipped because they were not configured.",
			},
			[]string{"provider"},
		),
		AttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_attempt_duration_seconds",
				Help:    "Time taken by a single provider attempt.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"provider"},
		),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_requests_total",
				Help: "Analysis requests partitioned by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		Violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "violations_total",
				Help: "Derived violations partitioned by type and severity.",
			},
			[]string{"type", "severity"},
		),
	}

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register analysis metrics: %w", err)
	}
	return m, nil
}

// Describe implements the prometheus.Collector interface.
func (m *AnalysisMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ProviderAttempts.Describe(ch)
	m.ProviderSkipped.Describe(ch)
	m.AttemptDuration.Describe(ch)
	m.Requests.Describe(ch)
	m.Violations.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *AnalysisMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ProviderAttempts.Collect(ch)
	m.ProviderSkipped.Collect(ch)
	m.AttemptDuration.Collect(ch)
	m.Requests.Collect(ch)
	m.Violations.Collect(ch)
}

func (m *AnalysisMetrics) ObserveAttempt(provider string, success bool, elapsed time.Duration) {
	m.ProviderAttempts.WithLabelValues(provider, outcome(success)).Inc()
	m.AttemptDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *AnalysisMetrics) IncSkipped(provider string) {
	m.ProviderSkipped.WithLabelValues(provider).Inc()
}

func (m *AnalysisMetrics) RecordRequest(kind string, err error) {
	m.Requests.WithLabelValues(kind, outcome(err == nil)).Inc()
}

func (m *AnalysisMetrics) RecordViolations(violations []entity.Violation) {
	for _, v := range violations {
		m.Violations.WithLabelValues(string(v.Type), string(v.Severity)).Inc()
	}
}

func outcome(success bool) string {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
