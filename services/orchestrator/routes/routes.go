// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/beaconhq/BeaconLocal/services/orchestrator/handlers"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers every endpoint the orchestrator serves.
//
// The pipeline handler is mandatory. The admin and audit handlers may be nil
// for stripped-down deployments (e.g. a scan-and-prompt sidecar); their route
// groups are simply not registered. A nil gatherer falls back to the default
// Prometheus registry. adminToken guards the /v1/admin group; empty disables
// the check for single-user deployments.
func SetupRoutes(router *gin.Engine, pipeline *handlers.PipelineHandler,
	admin *handlers.AdminHandler, auditH *handlers.AuditHandler,
	gatherer prometheus.Gatherer, adminToken string) {

	if pipeline == nil {
		panic("routes: pipeline handler is required")
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router.GET("/health", handlers.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/pii/scan", pipeline.HandleScanPII)
		v1.POST("/prompt", pipeline.HandleBuildPrompt)
		v1.POST("/verify", pipeline.HandleVerify)
		v1.POST("/chat/stream", pipeline.HandleChatStream)
		v1.DELETE("/chat/:conversation_id", pipeline.HandleCancelStream)

		if auditH != nil {
			v1.POST("/audit", auditH.HandleCreateAudit)
			v1.GET("/audit", auditH.HandleListAudit)
		}

		if admin != nil {
			v1.GET("/aggregates", admin.HandleGetAggregates)
			// HR record administration routes
			adminGroup := v1.Group("/admin")
			adminGroup.Use(middleware.AdminAuth(adminToken))
			{
				adminGroup.POST("/employees", admin.HandleUpsertEmployee)
				adminGroup.GET("/employees", admin.HandleListEmployees)
				adminGroup.GET("/employees/:id", admin.HandleGetEmployee)
				adminGroup.DELETE("/employees/:id", admin.HandleDeleteEmployee)
				adminGroup.POST("/ratings", admin.HandleAddRating)
				adminGroup.POST("/enps", admin.HandleAddEnps)
				adminGroup.PUT("/profile", admin.HandlePutProfile)
			}
		}
	}
}
