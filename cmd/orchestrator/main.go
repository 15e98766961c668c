// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command orchestrator starts the BeaconLocal orchestrator HTTP server.
//
// This is the main entry point for the orchestrator service. It reads
// configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 12410)
//   - BEACON_DATA_DIR: Badger record store directory (default: ./data/hrstore)
//   - BEACON_LLM_BACKEND: model backend - ollama, openai (default: ollama)
//   - BEACON_ENABLE_TRACING: export OTLP spans when "true" (default: false)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: beacon-otel-collector:4317)
//   - BEACON_LOG_DIR: directory for JSON log files (default: stderr only)
//   - BEACON_ADMIN_TOKEN: bearer token for /v1/admin endpoints (default: unguarded)
//   - BEACON_PII_RULES_PATH: YAML file overriding the embedded redaction rules,
//     hot-reloaded on change (default: embedded rules only)
//
// # Usage
//
//	# Build
//	go build -o orchestrator ./cmd/orchestrator
//
//	# Run
//	./orchestrator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/beaconhq/BeaconLocal/pkg/logging"
	"github.com/beaconhq/BeaconLocal/services/orchestrator"
)

func main() {
	// Setup structured logging
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("BEACON_LOG_DIR"),
		Service: "orchestrator",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := orchestrator.Config{
		Port:          getEnvInt("ORCHESTRATOR_PORT", 12410),
		DataDir:       getEnvString("BEACON_DATA_DIR", "./data/hrstore"),
		LLMBackend:    os.Getenv("BEACON_LLM_BACKEND"),
		EnableTracing: os.Getenv("BEACON_ENABLE_TRACING") == "true",
		AdminToken:    os.Getenv("BEACON_ADMIN_TOKEN"),
		PIIRulesPath:  os.Getenv("BEACON_PII_RULES_PATH"),
		OTelEndpoint:  getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "beacon-otel-collector:4317"),
	}

	slog.Info("Starting orchestrator",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"llm_backend", cfg.LLMBackend,
		"tracing", cfg.EnableTracing,
	)

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
