// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/beaconhq/BeaconLocal/services/hrstore"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"github.com/gin-gonic/gin"
)

const defaultAuditListLimit = 50

// AuditHandler serves the audit endpoints: fire-and-forget creation via the
// recorder, and synchronous listing for review tooling.
type AuditHandler struct {
	handler *PipelineHandler
	store   *hrstore.Store
}

// NewAuditHandler wires the audit endpoints.
func NewAuditHandler(handler *PipelineHandler, store *hrstore.Store) *AuditHandler {
	return &AuditHandler{handler: handler, store: store}
}

// HandleCreateAudit processes POST /v1/audit.
//
// The write is fire-and-forget: the response is 202 as soon as the entry is
// queued, and a full queue drops the entry with a log line rather than
// blocking the caller.
func (a *AuditHandler) HandleCreateAudit(c *gin.Context) {
	var req datatypes.CreateAuditRequest
	if err := c.BindJSON(&req); err != nil {
		a.handler.recordRequest("audit", false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		a.handler.recordRequest("audit", false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	a.handler.auditor.Record(&req)
	a.handler.recordRequest("audit", true)
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// HandleListAudit processes GET /v1/audit?limit=N, newest first.
func (a *AuditHandler) HandleListAudit(c *gin.Context) {
	limit := defaultAuditListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	entries, err := a.store.ListAuditEntries(c.Request.Context(), limit)
	if err != nil {
		a.handler.logger.Error("audit listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
