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
)

// HandleScanPII processes POST /v1/pii/scan.
//
// # Description
//
// Scans outgoing text and returns the redacted form with match offsets for
// UI highlighting. The scan fails open: a defect in the rule table returns
// the original text rather than blocking the message.
func (h *PipelineHandler) HandleScanPII(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "HandleScanPII")
	defer span.End()

	var req datatypes.PIIScanRequest
	if err := c.BindJSON(&req); err != nil {
		span.RecordError(err)
		h.recordRequest("scan", false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		h.recordRequest("scan", false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	result := h.pipeline.ScanPII(req.Text)
	h.recordRequest("scan", true)
	c.JSON(http.StatusOK, result)
}
