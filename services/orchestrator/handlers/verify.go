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
)

// HandleVerify processes POST /v1/verify.
//
// # Description
//
// Checks a completed model response against the aggregates snapshot from its
// prompt build. The snapshot travels with the request; this endpoint never
// recomputes aggregates, so verification always refers to the data the model
// actually saw.
func (h *PipelineHandler) HandleVerify(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "HandleVerify")
	defer span.End()

	var req datatypes.VerifyRequest
	if err := c.BindJSON(&req); err != nil {
		span.RecordError(err)
		h.recordRequest("verify", false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		h.recordRequest("verify", false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	result := h.pipeline.VerifyAnswer(req.ResponseText, req.QueryType, req.Aggregates)

	span.SetAttributes(
		attribute.String("verification.status", string(result.OverallStatus)),
		attribute.Int("verification.claims", len(result.Claims)),
	)
	h.recordRequest("verify", true)
	c.JSON(http.StatusOK, result)
}
