// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/beaconhq/BeaconLocal/pkg/validation"
	"github.com/beaconhq/BeaconLocal/services/aggregates"
	"github.com/beaconhq/BeaconLocal/services/hrstore"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves the HR record management endpoints. These exist for
// the desktop UI's settings screens and for data import tooling; the chat
// pipeline only reads.
type AdminHandler struct {
	store      *hrstore.Store
	aggregates *aggregates.Engine
	logger     *slog.Logger
}

// NewAdminHandler wires the record management endpoints.
func NewAdminHandler(store *hrstore.Store, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		store:      store,
		aggregates: aggregates.NewEngine(store),
		logger:     logger,
	}
}

// HandleUpsertEmployee processes POST /v1/admin/employees.
func (a *AdminHandler) HandleUpsertEmployee(c *gin.Context) {
	var emp datatypes.Employee
	if err := c.BindJSON(&emp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if emp.FirstName == "" || emp.LastName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "first_name and last_name are required"})
		return
	}
	if emp.Status == "" {
		emp.Status = datatypes.StatusActive
	}
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	emp.UpdatedAt = time.Now().UTC()

	if err := a.store.PutEmployee(c.Request.Context(), &emp); err != nil {
		a.logger.Error("employee upsert failed", "employee_id", emp.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store employee"})
		return
	}
	c.JSON(http.StatusOK, emp)
}

// HandleListEmployees processes GET /v1/admin/employees.
func (a *AdminHandler) HandleListEmployees(c *gin.Context) {
	employees, err := a.store.ListEmployees(c.Request.Context())
	if err != nil {
		a.logger.Error("employee listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list employees"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"employees": employees, "count": len(employees)})
}

// HandleGetEmployee processes GET /v1/admin/employees/:id.
func (a *AdminHandler) HandleGetEmployee(c *gin.Context) {
	emp, err := a.store.GetEmployee(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, hrstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
			return
		}
		a.logger.Error("employee fetch failed", "employee_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch employee"})
		return
	}
	c.JSON(http.StatusOK, emp)
}

// HandleDeleteEmployee processes DELETE /v1/admin/employees/:id.
func (a *AdminHandler) HandleDeleteEmployee(c *gin.Context) {
	if err := a.store.DeleteEmployee(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, hrstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
			return
		}
		a.logger.Error("employee delete failed", "employee_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete employee"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// HandleAddRating processes POST /v1/admin/ratings.
func (a *AdminHandler) HandleAddRating(c *gin.Context) {
	var rating datatypes.PerformanceRating
	if err := c.BindJSON(&rating); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if rating.EmployeeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "employee_id is required"})
		return
	}
	if rating.Score < 1 || rating.Score > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score must be between 1 and 5"})
		return
	}
	period, err := validation.SanitizePeriod(rating.Period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rating.Period = period
	if _, err := a.store.GetEmployee(c.Request.Context(), rating.EmployeeID); err != nil {
		if errors.Is(err, hrstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify employee"})
		return
	}
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = time.Now().UTC()
	}

	if err := a.store.PutRating(c.Request.Context(), &rating); err != nil {
		a.logger.Error("rating store failed", "employee_id", rating.EmployeeID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store rating"})
		return
	}
	c.JSON(http.StatusOK, rating)
}

// HandleAddEnps processes POST /v1/admin/enps.
func (a *AdminHandler) HandleAddEnps(c *gin.Context) {
	var resp datatypes.EnpsResponse
	if err := c.BindJSON(&resp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if resp.EmployeeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "employee_id is required"})
		return
	}
	if resp.Score < 0 || resp.Score > 10 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score must be between 0 and 10"})
		return
	}
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	if resp.SurveyDate.IsZero() {
		resp.SurveyDate = time.Now().UTC()
	}

	if err := a.store.PutEnpsResponse(c.Request.Context(), &resp); err != nil {
		a.logger.Error("enps store failed", "employee_id", resp.EmployeeID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store response"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandlePutProfile processes PUT /v1/admin/profile.
func (a *AdminHandler) HandlePutProfile(c *gin.Context) {
	var profile datatypes.CompanyProfile
	if err := c.BindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if profile.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if err := a.store.PutProfile(c.Request.Context(), &profile); err != nil {
		a.logger.Error("profile store failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// HandleGetAggregates processes GET /v1/aggregates: a fresh ground-truth
// snapshot for dashboards. Chat flows never call this; they carry the
// snapshot from their own prompt build.
func (a *AdminHandler) HandleGetAggregates(c *gin.Context) {
	agg, err := a.aggregates.Compute(c.Request.Context())
	if err != nil {
		a.logger.Error("aggregate computation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute aggregates"})
		return
	}
	c.JSON(http.StatusOK, agg)
}
