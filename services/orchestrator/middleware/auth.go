// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the orchestrator service.
//
// # Authentication Flow
//
// The admin auth middleware extracts a bearer token from the Authorization
// header and compares it against the configured admin token:
//
//	Request
//	   │
//	   ▼
//	AdminAuth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► Constant-time compare against configured token
//	   │
//	   └─► 401 on mismatch, otherwise continue
//
// # Local-First Behavior
//
// When no admin token is configured, all requests pass. This keeps the
// single-user desktop deployment working without any authentication
// infrastructure. Configure a token when the orchestrator is reachable by
// more than its own UI.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// =============================================================================
// Auth Middleware
// =============================================================================

// AdminAuth creates a Gin middleware that guards record administration
// endpoints with a static bearer token.
//
// # Description
//
// Extracts the bearer token from the Authorization header and compares it
// against expectedToken in constant time. An empty expectedToken disables
// the check entirely.
//
// # Examples
//
//	// Apply to route group
//	admin := v1.Group("/admin")
//	admin.Use(middleware.AdminAuth(os.Getenv("BEACON_ADMIN_TOKEN")))
//
// # Limitations
//
//   - Only supports Bearer token authentication
//   - Single shared token, no per-user identity
func AdminAuth(expectedToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expectedToken == "" {
			c.Next()
			return
		}

		token := extractBearerToken(c)
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		c.Next()
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken extracts the token from the Authorization header.
//
// Parses the Authorization header expecting format: "Bearer <token>".
// Returns empty string if the header is missing or malformed. The "Bearer"
// prefix is case-insensitive per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
