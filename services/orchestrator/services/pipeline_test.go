// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/beaconhq/BeaconLocal/services/hrstore"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/observability"
	"github.com/beaconhq/BeaconLocal/services/redactor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T) (*PipelineService, *hrstore.Store) {
	t.Helper()

	store, err := hrstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := redactor.NewEngine()
	require.NoError(t, err)

	metrics := observability.NewPipelineMetricsWithRegistry(prometheus.NewRegistry())
	return NewPipelineService(store, engine, metrics, slog.Default()), store
}

func seedEmployees(t *testing.T, store *hrstore.Store) {
	t.Helper()
	ctx := context.Background()
	hired := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)

	emps := []datatypes.Employee{
		{ID: "e1", FirstName: "Maria", LastName: "Santos", Role: "Engineer", Department: "Engineering", Status: datatypes.StatusActive, HireDate: hired, UpdatedAt: hired},
		{ID: "e2", FirstName: "James", LastName: "Okafor", Role: "Designer", Department: "Design", Status: datatypes.StatusActive, HireDate: hired, UpdatedAt: hired},
		{ID: "e3", FirstName: "Priya", LastName: "Nair", Role: "Manager", Department: "Engineering", Status: datatypes.StatusActive, HireDate: hired, UpdatedAt: hired},
	}
	for i := range emps {
		require.NoError(t, store.PutEmployee(ctx, &emps[i]))
	}
	require.NoError(t, store.PutRating(ctx, &datatypes.PerformanceRating{
		ID: "r1", EmployeeID: "e1", Score: 4.2, Period: "2025-Q2", CreatedAt: time.Now(),
	}))
}

func TestBuildPromptIndividualQuery(t *testing.T) {
	svc, store := newTestPipeline(t)
	seedEmployees(t, store)

	resp, err := svc.BuildPrompt(context.Background(), &datatypes.BuildPromptRequest{
		ConversationID: "c1",
		Message:        "How is Maria Santos doing this quarter?",
	})
	require.NoError(t, err)

	assert.Equal(t, datatypes.QueryIndividual, resp.QueryType)
	assert.Contains(t, resp.EmployeeIDsUsed, "e1")
	assert.Contains(t, resp.SystemPrompt, "Maria Santos")
	assert.Contains(t, resp.SystemPrompt, "4.2")
	require.NotNil(t, resp.Aggregates)
	assert.Equal(t, 3, resp.Aggregates.ActiveCount)
	assert.NotEmpty(t, resp.RequestID)
}

func TestBuildPromptAggregateQueryAttachesMetrics(t *testing.T) {
	svc, store := newTestPipeline(t)
	seedEmployees(t, store)

	resp, err := svc.BuildPrompt(context.Background(), &datatypes.BuildPromptRequest{
		ConversationID: "c1",
		Message:        "How many employees work in each department?",
	})
	require.NoError(t, err)

	assert.Equal(t, datatypes.QueryAggregate, resp.QueryType)
	assert.True(t, resp.Metrics.AggregatesAttached)
	assert.Contains(t, resp.SystemPrompt, "ORGANIZATION METRICS")
	assert.Contains(t, resp.SystemPrompt, "Engineering")
}

func TestBuildPromptRespectsBudgetInvariant(t *testing.T) {
	svc, store := newTestPipeline(t)
	seedEmployees(t, store)

	resp, err := svc.BuildPrompt(context.Background(), &datatypes.BuildPromptRequest{
		ConversationID: "c1",
		Message:        "Give me a list of everyone on the team",
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, resp.Metrics.Usage.TotalTokens, resp.Metrics.Budget.TotalContext)
	assert.LessOrEqual(t, resp.Metrics.Usage.EmployeeTokens, resp.Metrics.Budget.EmployeeContext)
}

func TestBuildPromptRejectsEmptyMessage(t *testing.T) {
	svc, _ := newTestPipeline(t)

	_, err := svc.BuildPrompt(context.Background(), &datatypes.BuildPromptRequest{
		ConversationID: "c1",
	})
	assert.Error(t, err)
}

func TestBuildPromptEmptyStore(t *testing.T) {
	svc, _ := newTestPipeline(t)

	resp, err := svc.BuildPrompt(context.Background(), &datatypes.BuildPromptRequest{
		ConversationID: "c1",
		Message:        "What is our turnover rate?",
	})
	require.NoError(t, err)

	assert.Empty(t, resp.EmployeeIDsUsed)
	require.NotNil(t, resp.Aggregates)
	assert.Equal(t, 0, resp.Aggregates.TotalHeadcount)
}

func TestScanPIIRedacts(t *testing.T) {
	svc, _ := newTestPipeline(t)

	res := svc.ScanPII("Maria's SSN is 536-90-4399")
	assert.True(t, res.HadPII)
	assert.NotContains(t, res.RedactedText, "536-90-4399")
}

func TestScanPIIPassesCleanText(t *testing.T) {
	svc, _ := newTestPipeline(t)

	res := svc.ScanPII("How many engineers do we have?")
	assert.False(t, res.HadPII)
	assert.Equal(t, "How many engineers do we have?", res.RedactedText)
}

func TestVerifyAnswerUsesSnapshotFromBuild(t *testing.T) {
	svc, store := newTestPipeline(t)
	seedEmployees(t, store)

	resp, err := svc.BuildPrompt(context.Background(), &datatypes.BuildPromptRequest{
		ConversationID: "c1",
		Message:        "What is our total headcount?",
	})
	require.NoError(t, err)

	result := svc.VerifyAnswer("We have 3 employees in total.", resp.QueryType, resp.Aggregates)
	assert.Equal(t, datatypes.StatusVerified, result.OverallStatus)

	result = svc.VerifyAnswer("We have 30 employees in total.", resp.QueryType, resp.Aggregates)
	assert.Equal(t, datatypes.StatusUnverified, result.OverallStatus)
}
