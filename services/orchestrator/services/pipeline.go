// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package services composes the pipeline stages into the operations the HTTP
// surface exposes.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/beaconhq/BeaconLocal/services/aggregates"
	"github.com/beaconhq/BeaconLocal/services/hrstore"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/budget"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/classify"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/observability"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/promptgen"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/retrieval"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/verify"
	"github.com/beaconhq/BeaconLocal/services/redactor"
	"go.opentelemetry.io/otel"
)

var pipelineTracer = otel.Tracer("beacon/orchestrator/pipeline")

// PipelineService runs the message pipeline: redaction, classification,
// budgeting, retrieval, prompt assembly, and post-stream verification.
//
// # Description
//
// One instance serves all requests; every per-request object (aggregates
// snapshot, retrieval result, verification) is created fresh inside each
// call, so concurrent requests share nothing mutable.
//
// # Thread Safety
//
// Safe for concurrent use.
type PipelineService struct {
	store      *hrstore.Store
	redactor   *redactor.Engine
	classifier *classify.Classifier
	retriever  *retrieval.Retriever
	aggregates *aggregates.Engine
	assembler  *promptgen.Assembler
	verifier   *verify.Verifier
	metrics    *observability.PipelineMetrics
	logger     *slog.Logger
}

// NewPipelineService wires the pipeline stages.
func NewPipelineService(
	store *hrstore.Store,
	redactorEngine *redactor.Engine,
	metrics *observability.PipelineMetrics,
	logger *slog.Logger,
) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{
		store:      store,
		redactor:   redactorEngine,
		classifier: classify.NewClassifier(),
		retriever:  retrieval.NewRetriever(store, logger),
		aggregates: aggregates.NewEngine(store),
		assembler:  promptgen.NewAssembler(),
		verifier:   verify.NewVerifier(),
		metrics:    metrics,
		logger:     logger,
	}
}

// ScanPII runs the redactor over text.
//
// Redaction is a safety net, not a gate: if scanning itself panics (a rule
// table defect), the caller gets the original text back unredacted and a
// distinct log line marks the fail-open, so the user is never blocked.
func (s *PipelineService) ScanPII(text string) (result *redactor.RedactionResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("PII scan failed open, sending original text", "panic", r)
			result = &redactor.RedactionResult{RedactedText: text}
		}
	}()

	result = s.redactor.Scan(text)
	if result.HadPII && s.metrics != nil {
		for _, m := range result.Matches {
			s.metrics.PIIDetectionsTotal.WithLabelValues(m.Classification).Inc()
		}
	}
	return result
}

// BuildPrompt runs classification, aggregation, retrieval, and assembly for
// one user message.
//
// # Description
//
// The returned response carries the exact aggregates snapshot the prompt was
// rendered from; VerifyAnswer for the same message must receive that snapshot
// back, never a recomputed one. Store-level failures degrade individual
// context sections; only a message that cannot be classified at all fails
// the call.
func (s *PipelineService) BuildPrompt(ctx context.Context, req *datatypes.BuildPromptRequest) (*datatypes.BuildPromptResponse, error) {
	ctx, span := pipelineTracer.Start(ctx, "pipeline.BuildPrompt")
	defer span.End()

	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prompt request: %w", err)
	}

	directory, err := s.store.ListEmployees(ctx)
	if err != nil {
		// Classification degrades to keyword-only; retrieval will log its
		// own degradation.
		s.logger.Error("directory unavailable for classification", "error", err)
		directory = nil
	}

	queryType := s.classifier.Classify(req.Message, req.SelectedEmployeeID, directory)
	if s.metrics != nil {
		s.metrics.QueriesByType.WithLabelValues(string(queryType)).Inc()
	}

	tokenBudget := budget.For(queryType)

	agg, err := s.aggregates.Compute(ctx)
	if err != nil {
		s.logger.Error("aggregate computation failed, prompt degrades to no metrics", "error", err)
		agg = nil
	}

	retrieved := s.retriever.Retrieve(ctx, &retrieval.Request{
		Message:            req.Message,
		QueryType:          queryType,
		Budget:             tokenBudget,
		SelectedEmployeeID: req.SelectedEmployeeID,
		Aggregates:         agg,
	})
	if s.metrics != nil {
		s.metrics.ObserveRetrieval(&retrieved.Metrics)
	}

	profile, err := s.store.GetProfile(ctx)
	if err != nil && !errors.Is(err, hrstore.ErrNotFound) {
		s.logger.Warn("company profile unavailable", "error", err)
	}

	// The prompt renders the retriever's view (its department list may be
	// truncated for budget); the response carries the untrimmed snapshot,
	// which is what verification must run against.
	prompt := s.assembler.Assemble(&promptgen.Input{
		Profile:          profile,
		Employees:        retrieved.Employees,
		Memories:         retrieved.Memories,
		Aggregates:       retrieved.Aggregates,
		AttachAggregates: retrieved.AttachAggregates,
	})

	ids := make([]string, 0, len(retrieved.Employees))
	for i := range retrieved.Employees {
		ids = append(ids, retrieved.Employees[i].Employee.ID)
	}

	s.logger.Info("prompt built",
		"request_id", req.RequestID,
		"query_type", queryType,
		"employees_included", retrieved.Metrics.EmployeesIncluded,
		"memories_included", retrieved.Metrics.MemoriesIncluded,
		"aggregates_attached", retrieved.AttachAggregates,
		"total_tokens", retrieved.Metrics.Usage.TotalTokens,
	)

	return &datatypes.BuildPromptResponse{
		RequestID:       req.RequestID,
		SystemPrompt:    prompt,
		EmployeeIDsUsed: ids,
		Aggregates:      agg,
		QueryType:       queryType,
		Metrics:         retrieved.Metrics,
	}, nil
}

// VerifyAnswer checks a completed response against the aggregates snapshot
// from its prompt build.
func (s *PipelineService) VerifyAnswer(responseText string, queryType datatypes.QueryType, agg *datatypes.OrgAggregates) *datatypes.VerificationResult {
	result := s.verifier.Verify(responseText, queryType, agg)
	if s.metrics != nil {
		s.metrics.ObserveVerification(result)
	}
	return result
}
