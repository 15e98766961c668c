// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"

	"github.com/beaconhq/BeaconLocal/services/llm"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/audit"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/conversation"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/observability"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// PipelineHandler serves the message-processing endpoints: PII scan, prompt
// build, verification, streaming chat, and audit.
//
// # Thread Safety
//
// Safe for concurrent use; all fields are read-only after construction.
type PipelineHandler struct {
	pipeline      *services.PipelineService
	llmClient     llm.StreamingClient
	auditor       *audit.Recorder
	conversations *conversation.Registry
	metrics       *observability.PipelineMetrics
	logger        *slog.Logger
	tracer        trace.Tracer
}

// NewPipelineHandler wires the handler. llmClient may be nil when only the
// non-streaming endpoints are served (UI-driven model calls); the streaming
// endpoint then returns 503.
func NewPipelineHandler(
	pipeline *services.PipelineService,
	llmClient llm.StreamingClient,
	auditor *audit.Recorder,
	conversations *conversation.Registry,
	metrics *observability.PipelineMetrics,
	logger *slog.Logger,
) *PipelineHandler {
	if pipeline == nil {
		panic("NewPipelineHandler: pipeline must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineHandler{
		pipeline:      pipeline,
		llmClient:     llmClient,
		auditor:       auditor,
		conversations: conversations,
		metrics:       metrics,
		logger:        logger,
		tracer:        otel.Tracer("beacon/orchestrator/handlers"),
	}
}

// recordRequest bumps the per-endpoint request counter if metrics are wired.
func (h *PipelineHandler) recordRequest(endpoint string, success bool) {
	if h.metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	h.metrics.RequestsTotal.WithLabelValues(endpoint, status).Inc()
}
