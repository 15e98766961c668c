// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the per-request pipeline value objects: query types,
// token budgets and usage, the denormalized employee view sent to the model,
// and the retrieval metrics snapshot. Everything here is created fresh per
// user message and discarded after the response is delivered.
package datatypes

import (
	"fmt"
	"time"
)

// =============================================================================
// Query Types
// =============================================================================

// QueryType routes retrieval budgets and verification. Assigned once per
// message by the classifier and immutable for the lifetime of the request.
type QueryType string

const (
	// QueryAggregate is a statistic over the whole population
	// ("how many", "average", "% of").
	QueryAggregate QueryType = "aggregate"

	// QueryList asks for an enumeration ("list everyone in Sales").
	QueryList QueryType = "list"

	// QueryIndividual is about one named or pre-selected employee.
	QueryIndividual QueryType = "individual"

	// QueryComparison compares two or more named employees.
	QueryComparison QueryType = "comparison"

	// QueryAttrition is about departures, turnover, and terminations.
	QueryAttrition QueryType = "attrition"

	// QueryGeneral is the fallback for everything else.
	QueryGeneral QueryType = "general"
)

// Valid reports whether t is a member of the closed enum.
func (t QueryType) Valid() bool {
	switch t {
	case QueryAggregate, QueryList, QueryIndividual, QueryComparison, QueryAttrition, QueryGeneral:
		return true
	}
	return false
}

// =============================================================================
// Token Budgets
// =============================================================================

// TokenBudget is the fixed context allocation for one query type.
//
// Invariant: TotalContext == EmployeeContext + ThemeContext + MemoryContext.
// Budgets are looked up from a fixed table in the budget package; they are
// never mutated per request.
type TokenBudget struct {
	EmployeeContext int `json:"employee_context"`
	ThemeContext    int `json:"theme_context"`
	MemoryContext   int `json:"memory_context"`
	TotalContext    int `json:"total_context"`
}

// Check verifies the budget invariant. A violation is a programming error in
// the budget table, not a runtime condition.
func (b TokenBudget) Check() error {
	if b.EmployeeContext < 0 || b.ThemeContext < 0 || b.MemoryContext < 0 {
		return fmt.Errorf("token budget has negative section: %+v", b)
	}
	if sum := b.EmployeeContext + b.ThemeContext + b.MemoryContext; sum != b.TotalContext {
		return fmt.Errorf("token budget total %d != section sum %d", b.TotalContext, sum)
	}
	return nil
}

// TokenUsage is the actual token consumption after retrieval.
//
// Invariant: TotalTokens never exceeds the TokenBudget.TotalContext it was
// retrieved under. The retriever enforces this by all-or-nothing inclusion;
// it truncates candidates, never the budget.
type TokenUsage struct {
	EmployeeTokens   int `json:"employee_tokens"`
	MemoryTokens     int `json:"memory_tokens"`
	AggregatesTokens int `json:"aggregates_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// =============================================================================
// Employee Context
// =============================================================================

// RatingTrend is the direction of the two most recent rating scores.
type RatingTrend string

const (
	TrendImproving RatingTrend = "improving"
	TrendStable    RatingTrend = "stable"
	TrendDeclining RatingTrend = "declining"
)

// EmployeeContext is the denormalized view of one employee built for
// prompting.
//
// # Description
//
// Built fresh per request from the store; never cached across requests
// because records can change between messages. The manager is resolved to a
// display name, the latest rating and its trend are precomputed, and full
// rating/eNPS history lists are carried so the model can answer
// trajectory questions.
type EmployeeContext struct {
	Employee     Employee            `json:"employee"`
	ManagerName  string              `json:"manager_name,omitempty"`
	LatestRating *PerformanceRating  `json:"latest_rating,omitempty"`
	RatingTrend  RatingTrend         `json:"rating_trend,omitempty"`
	Ratings      []PerformanceRating `json:"ratings,omitempty"`
	EnpsHistory  []EnpsResponse      `json:"enps_history,omitempty"`
}

// =============================================================================
// Retrieval Metrics
// =============================================================================

// RetrievalMetrics is an immutable observability snapshot of one retrieval.
//
// It records every decision the retriever made: how many candidates were
// found vs. actually included per section, whether aggregates were attached,
// the budget the decisions ran under, the resulting usage, and wall-clock
// time. It has no effect on behavior.
type RetrievalMetrics struct {
	EmployeesFound     int         `json:"employees_found"`
	EmployeesIncluded  int         `json:"employees_included"`
	MemoriesFound      int         `json:"memories_found"`
	MemoriesIncluded   int         `json:"memories_included"`
	AggregatesAttached bool        `json:"aggregates_attached"`
	Budget             TokenBudget `json:"budget"`
	Usage              TokenUsage  `json:"usage"`
	RetrievalTimeMs    int64       `json:"retrieval_time_ms"`
}

// NewRetrievalMetrics returns a zeroed snapshot carrying the budget, for the
// zero-result and degraded cases where retrieval still must report.
func NewRetrievalMetrics(budget TokenBudget) RetrievalMetrics {
	return RetrievalMetrics{Budget: budget}
}

// Elapsed stamps the wall-clock retrieval time.
func (m *RetrievalMetrics) Elapsed(start time.Time) {
	m.RetrievalTimeMs = time.Since(start).Milliseconds()
}
