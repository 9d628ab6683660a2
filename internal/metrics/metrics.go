package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the node. The struct is
// passed explicitly to every component that records metrics.
type Metrics struct {
	// Stream metrics
	paymentsObservedTotal prometheus.Counter
	paymentsSkippedTotal  *prometheus.CounterVec
	streamReconnectsTotal prometheus.Counter

	// Analysis metrics
	analysisRequestsTotal *prometheus.CounterVec
	analysisDuration      prometheus.Histogram

	// Response metrics
	responsesSentTotal      prometheus.Counter
	responseDuration        prometheus.Histogram
	submissionFailuresTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Stream metrics
		paymentsObservedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "payments_observed_total",
				Help: "Total number of transactions seen on the payment stream",
			},
		),
		paymentsSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_skipped_total",
				Help: "Total number of observed payments skipped before a reply was sent",
			},
			[]string{"reason"},
		),
		streamReconnectsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stream_reconnects_total",
				Help: "Total number of ledger stream reconnect attempts",
			},
		),

		// Analysis metrics
		analysisRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_requests_total",
				Help: "Total number of memo analysis calls by outcome",
			},
			[]string{"status"},
		),
		analysisDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "analysis_duration_seconds",
				Help:    "Duration of memo analysis calls in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		// Response metrics
		responsesSentTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "responses_sent_total",
				Help: "Total number of reply payments confirmed on the ledger",
			},
		),
		responseDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "response_duration_seconds",
				Help:    "Time from picking up a payment to a confirmed reply in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		submissionFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "submission_failures_total",
				Help: "Total number of reply submissions that failed by pipeline stage",
			},
			[]string{"stage"},
		),
	}
}

// Stream metric helpers

// RecordPaymentObserved records a transaction delivered by the stream.
func (m *Metrics) RecordPaymentObserved() {
	m.paymentsObservedTotal.Inc()
}

// RecordPaymentSkipped records a payment dropped before a reply was sent.
func (m *Metrics) RecordPaymentSkipped(reason string) {
	m.paymentsSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordReconnect records a ledger stream reconnect attempt.
func (m *Metrics) RecordReconnect() {
	m.streamReconnectsTotal.Inc()
}

// Analysis metric helpers

// RecordAnalysis records a memo analysis call with duration.
func (m *Metrics) RecordAnalysis(ok bool, duration float64) {
	status := "success"
	if !ok {
		status = "error"
	}
	m.analysisRequestsTotal.WithLabelValues(status).Inc()
	m.analysisDuration.Observe(duration)
}

// Response metric helpers

// RecordResponseSent records a confirmed reply payment with duration.
func (m *Metrics) RecordResponseSent(duration float64) {
	m.responsesSentTotal.Inc()
	m.responseDuration.Observe(duration)
}

// RecordSubmissionFailure records a failed reply submission.
func (m *Metrics) RecordSubmissionFailure(stage string) {
	m.submissionFailuresTotal.WithLabelValues(stage).Inc()
}
