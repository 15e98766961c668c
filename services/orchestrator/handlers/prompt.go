// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// HandleBuildPrompt processes POST /v1/prompt.
//
// # Description
//
// Runs classification, aggregation, retrieval, and assembly for one user
// message, for UI-driven flows where the model call happens client-side.
// The response includes the aggregates snapshot the UI must return with its
// later /v1/verify call.
func (h *PipelineHandler) HandleBuildPrompt(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "HandleBuildPrompt")
	defer span.End()

	var req datatypes.BuildPromptRequest
	if err := c.BindJSON(&req); err != nil {
		span.RecordError(err)
		h.recordRequest("prompt", false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp, err := h.pipeline.BuildPrompt(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prompt build failed")
		h.recordRequest("prompt", false)
		h.logger.Error("prompt build failed", "request_id", req.RequestID, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	span.SetAttributes(
		attribute.String("request.id", resp.RequestID),
		attribute.String("query.type", string(resp.QueryType)),
		attribute.Int("context.tokens", resp.Metrics.Usage.TotalTokens),
	)
	h.recordRequest("prompt", true)
	c.JSON(http.StatusOK, resp)
}
