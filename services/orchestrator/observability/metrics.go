// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the pipeline.
//
// # Description
//
// Metrics cover every stage of message processing: classification outcomes,
// retrieval fill rates and latency, PII detections, verification statuses,
// stream durations, and audit write failures. Exposed via the /metrics
// endpoint; behavior never depends on them.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const (
	metricsNamespace  = "beacon"
	pipelineSubsystem = "pipeline"
)

// PipelineMetrics holds all Prometheus metrics for message processing.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring the pipeline.
// Initialize once at startup via NewPipelineMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type PipelineMetrics struct {
	// RequestsTotal counts pipeline requests.
	// Labels: endpoint (scan, prompt, chat_stream, verify), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// QueriesByType counts classified messages by QueryType.
	QueriesByType *prometheus.CounterVec

	// PIIDetectionsTotal counts redacted values by classification.
	PIIDetectionsTotal *prometheus.CounterVec

	// RetrievalSeconds measures retrieval wall-clock time.
	RetrievalSeconds prometheus.Histogram

	// RetrievalIncluded counts records included in context per section.
	// Labels: section (employees, memories)
	RetrievalIncluded *prometheus.CounterVec

	// ContextTokens measures TokenUsage.TotalTokens per request.
	ContextTokens prometheus.Histogram

	// VerificationsTotal counts verification outcomes by overall status.
	VerificationsTotal *prometheus.CounterVec

	// StreamDurationSeconds measures full stream duration.
	// Labels: status (success, error, cancelled)
	StreamDurationSeconds *prometheus.HistogramVec

	// ActiveStreams gauges currently live SSE streams.
	ActiveStreams prometheus.Gauge

	// AuditFailuresTotal counts dropped or failed audit writes.
	AuditFailuresTotal prometheus.Counter
}

// NewPipelineMetrics registers all metrics on the default registry.
func NewPipelineMetrics() *PipelineMetrics {
	return newPipelineMetrics(prometheus.DefaultRegisterer)
}

// NewPipelineMetricsWithRegistry registers on a caller-owned registry; tests
// use this to avoid duplicate-registration panics.
func NewPipelineMetricsWithRegistry(reg prometheus.Registerer) *PipelineMetrics {
	return newPipelineMetrics(reg)
}

func newPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)
	return &PipelineMetrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "requests_total",
			Help:      "Pipeline requests by endpoint and status.",
		}, []string{"endpoint", "status"}),

		QueriesByType: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "queries_by_type_total",
			Help:      "Classified messages by query type.",
		}, []string{"query_type"}),

		PIIDetectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "pii_detections_total",
			Help:      "Redacted values by classification.",
		}, []string{"classification"}),

		RetrievalSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "retrieval_seconds",
			Help:      "Context retrieval wall-clock time.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),

		RetrievalIncluded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "retrieval_included_total",
			Help:      "Records included in context by section.",
		}, []string{"section"}),

		ContextTokens: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "context_tokens",
			Help:      "Estimated context tokens used per request.",
			Buckets:   []float64{100, 250, 500, 750, 1000, 1500, 2000},
		}),

		VerificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "verifications_total",
			Help:      "Verification outcomes by overall status.",
		}, []string{"status"}),

		StreamDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "stream_duration_seconds",
			Help:      "Full SSE stream duration.",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"status"}),

		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "active_streams",
			Help:      "Currently live SSE streams.",
		}),

		AuditFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "audit_failures_total",
			Help:      "Dropped or failed audit writes.",
		}),
	}
}

// =============================================================================
// Recording Helpers
// =============================================================================

// ObserveRetrieval records one retrieval outcome from its metrics snapshot.
func (m *PipelineMetrics) ObserveRetrieval(rm *datatypes.RetrievalMetrics) {
	m.RetrievalSeconds.Observe(float64(rm.RetrievalTimeMs) / 1000)
	m.RetrievalIncluded.WithLabelValues("employees").Add(float64(rm.EmployeesIncluded))
	m.RetrievalIncluded.WithLabelValues("memories").Add(float64(rm.MemoriesIncluded))
	m.ContextTokens.Observe(float64(rm.Usage.TotalTokens))
}

// ObserveVerification records one verification outcome.
func (m *PipelineMetrics) ObserveVerification(res *datatypes.VerificationResult) {
	m.VerificationsTotal.WithLabelValues(string(res.OverallStatus)).Inc()
}

// ObserveStream records one finished stream.
func (m *PipelineMetrics) ObserveStream(status string, start time.Time) {
	m.StreamDurationSeconds.WithLabelValues(status).Observe(time.Since(start).Seconds())
}
