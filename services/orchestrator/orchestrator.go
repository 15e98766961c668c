// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator provides the core orchestrator service for BeaconLocal.
//
// This package contains the main Orchestrator type that coordinates all
// components of the service: HTTP routing, the HR record store, the PII
// redaction engine, the message pipeline, LLM clients, and observability
// infrastructure.
//
// # Usage
//
//	cfg := orchestrator.Config{Port: 12410, DataDir: "./data"}
//	svc, err := orchestrator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/beaconhq/BeaconLocal/services/hrstore"
	"github.com/beaconhq/BeaconLocal/services/llm"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/audit"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/conversation"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/handlers"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/observability"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/retention"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/routes"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/services"
	"github.com/beaconhq/BeaconLocal/services/redactor"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the orchestrator service.
//
// # Description
//
// Service abstracts the orchestrator lifecycle, enabling testing and
// alternative implementations. Run() blocks and should only be called once
// per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers must not
	// modify the router after construction.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration options.
//
// # Description
//
// Config centralizes all configuration for the orchestrator service. Values
// can be populated from environment variables, config files, or
// programmatically for testing. All fields have defaults applied by New().
//
// # Examples
//
//	// Minimal config (uses all defaults)
//	cfg := Config{}
//
//	// Custom port and explicit model backend
//	cfg := Config{
//	    Port:       8080,
//	    LLMBackend: "openai",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 12410
	Port int

	// DataDir is the directory holding the Badger record store.
	// Default: "./data/hrstore". Ignored when InMemory is true.
	DataDir string

	// InMemory runs the record store without disk persistence. Intended for
	// tests and demos; all records vanish on restart.
	InMemory bool

	// LLMBackend overrides the BEACON_LLM_BACKEND environment variable.
	// Valid values: "ollama", "openai". Empty defers to the environment.
	LLMBackend string

	// OTelEndpoint is the OpenTelemetry collector endpoint. The special
	// value "stdout" writes spans to stderr instead of exporting them,
	// which is useful when no collector is running.
	// Default: "beacon-otel-collector:4317"
	OTelEndpoint string

	// EnableTracing exports spans via OTLP. When false the global no-op
	// tracer stays in place and span creation is free.
	EnableTracing bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// AdminToken guards the /v1/admin endpoints with a static bearer token.
	// Empty disables the check for single-user deployments.
	AdminToken string

	// PIIRulesPath points at a YAML rule file that replaces the embedded
	// redaction table. The file is watched and reloaded on change. Empty
	// uses the embedded rules only.
	PIIRulesPath string

	// DisableRetention turns off the background pruning of aged audit rows
	// and conversation summaries. Pruning windows follow
	// retention.DefaultConfig().
	DisableRetention bool
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service is the main implementation that coordinates:
//   - HTTP routing via Gin
//   - The Badger-backed HR record store
//   - The PII redaction engine
//   - The message pipeline (classification, retrieval, assembly, verification)
//   - Model client management
//   - Fire-and-forget audit persistence
//   - OpenTelemetry tracing and Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	store         *hrstore.Store
	llmClient     llm.StreamingClient
	auditor       *audit.Recorder
	conversations *conversation.Registry
	retainer      *retention.Scheduler
	watchCancel   context.CancelFunc
	registry      *prometheus.Registry
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new orchestrator Service with the given configuration.
//
// # Description
//
// New initializes all orchestrator components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing (when enabled)
//  3. Opens the Badger record store
//  4. Builds the redaction engine and Prometheus metrics
//  5. Creates the model client from the environment
//  6. Wires the pipeline service, handlers, and HTTP routes
//
// A missing or unreachable model backend is not fatal: the service starts
// without streaming, POST /v1/chat/stream returns 503, and every other
// endpoint works normally.
//
// # Outputs
//
//   - Service: Ready-to-run orchestrator service
//   - error: Non-nil if initialization fails
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	if s.config.EnableTracing {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	redactorEngine, err := redactor.NewEngine()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to build redaction engine: %w", err)
	}

	s.registry = prometheus.NewRegistry()
	metrics := observability.NewPipelineMetricsWithRegistry(s.registry)

	s.initLLMClient()

	logger := slog.Default()

	if s.config.PIIRulesPath != "" {
		watchCtx, cancel := context.WithCancel(context.Background())
		s.watchCancel = cancel
		go func() {
			err := redactorEngine.WatchOverride(watchCtx, s.config.PIIRulesPath, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("PII rule override watcher stopped",
					"path", s.config.PIIRulesPath, "error", err)
			}
		}()
	}

	s.auditor = audit.NewRecorder(s.store, logger)
	s.conversations = conversation.NewRegistry(logger)

	pipeline := services.NewPipelineService(s.store, redactorEngine, metrics, logger)
	pipelineHandler := handlers.NewPipelineHandler(
		pipeline, s.llmClient, s.auditor, s.conversations, metrics, logger)
	adminHandler := handlers.NewAdminHandler(s.store, logger)
	auditHandler := handlers.NewAuditHandler(pipelineHandler, s.store)

	s.initRouter(pipelineHandler, adminHandler, auditHandler)

	if !s.config.DisableRetention {
		s.retainer = retention.NewScheduler(s.store, retention.DefaultConfig(), logger)
		if err := s.retainer.Start(context.Background()); err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to start retention scheduler: %w", err)
		}
	}

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error. Cleanup of
// the store, audit queue, and tracer is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting orchestrator server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12410
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/hrstore"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "beacon-otel-collector:4317"
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up an OTLP trace exporter sending spans to the configured collector
// over insecure gRPC (appropriate for internal networks). When the endpoint
// is "stdout" spans go to stderr instead. Returns a cleanup function to call
// on shutdown.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	traceExporter, err := s.newTraceExporter(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("beacon-orchestrator")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// newTraceExporter picks the span exporter for the configured endpoint.
func (s *service) newTraceExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if s.config.OTelEndpoint == "stdout" {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		return exporter, nil
	}

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return exporter, nil
}

// initStore opens the Badger record store.
func (s *service) initStore() error {
	var err error
	if s.config.InMemory {
		s.store, err = hrstore.OpenInMemory()
		if err == nil {
			slog.Info("Record store running in memory, records will not persist")
		}
		return err
	}

	storeCfg := hrstore.DefaultConfig()
	storeCfg.Path = s.config.DataDir
	s.store, err = hrstore.Open(storeCfg)
	if err == nil {
		slog.Info("Record store opened", "dir", s.config.DataDir)
	}
	return err
}

// initLLMClient creates the model client from configuration and environment.
// Failure is logged, not returned: the rest of the service is useful without
// a model backend.
func (s *service) initLLMClient() {
	backend := s.config.LLMBackend

	var client llm.StreamingClient
	var err error
	if backend != "" {
		client, err = llm.NewForBackend(backend)
	} else {
		client, err = llm.NewFromEnv()
	}
	if err != nil {
		slog.Warn("Model backend unavailable, streaming disabled", "error", err)
		return
	}
	s.llmClient = client
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter(pipeline *handlers.PipelineHandler,
	admin *handlers.AdminHandler, auditH *handlers.AuditHandler) {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("beacon-orchestrator"))

	routes.SetupRoutes(s.router, pipeline, admin, auditH, s.registry, s.config.AdminToken)
}

// cleanup releases all resources held by the service.
//
// # Description
//
// Called when Run() exits or on initialization failure. Cancels active
// streams, drains the audit queue, closes the store, and shuts down the
// tracer, in that order: audit rows queued by in-flight streams must land
// before the store closes.
func (s *service) cleanup() {
	if s.watchCancel != nil {
		s.watchCancel()
	}
	if s.retainer != nil {
		s.retainer.Stop()
	}
	if s.conversations != nil {
		s.conversations.Close()
	}
	if s.auditor != nil {
		s.auditor.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("record store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
