// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/budget"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store with injectable failures.
type fakeStore struct {
	employees    []datatypes.Employee
	ratings      map[string][]datatypes.PerformanceRating
	enps         map[string][]datatypes.EnpsResponse
	summaries    []datatypes.ConversationSummary
	failEmployee bool
	failSummary  bool
}

func (f *fakeStore) ListEmployees(ctx context.Context) ([]datatypes.Employee, error) {
	if f.failEmployee {
		return nil, errors.New("store down")
	}
	return f.employees, nil
}

func (f *fakeStore) ListRatingsForEmployee(ctx context.Context, id string) ([]datatypes.PerformanceRating, error) {
	return f.ratings[id], nil
}

func (f *fakeStore) ListEnpsForEmployee(ctx context.Context, id string) ([]datatypes.EnpsResponse, error) {
	return f.enps[id], nil
}

func (f *fakeStore) ListSummaries(ctx context.Context) ([]datatypes.ConversationSummary, error) {
	if f.failSummary {
		return nil, errors.New("store down")
	}
	return f.summaries, nil
}

func testStore() *fakeStore {
	return &fakeStore{
		employees: []datatypes.Employee{
			{ID: "mgr", FirstName: "Dana", LastName: "Reyes", Role: "Director", Department: "Engineering",
				Status: datatypes.StatusActive, UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "e1", FirstName: "Maria", LastName: "Santos", Role: "Staff Engineer", Department: "Engineering",
				ManagerID: "mgr", Status: datatypes.StatusActive, UpdatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "e2", FirstName: "James", LastName: "Okafor", Role: "Designer", Department: "Product",
				Status: datatypes.StatusActive, UpdatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		},
		ratings: map[string][]datatypes.PerformanceRating{
			"e1": {
				{ID: "r2", EmployeeID: "e1", Score: 4.5, Period: "2025-H1", CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
				{ID: "r1", EmployeeID: "e1", Score: 3.5, Period: "2024-H2", CreatedAt: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)},
			},
		},
		enps: map[string][]datatypes.EnpsResponse{
			"e1": {{ID: "s1", EmployeeID: "e1", Score: 9, SurveyDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}},
		},
		summaries: []datatypes.ConversationSummary{
			{ID: "m1", ConversationID: "c1", Summary: "Discussed Maria Santos promotion timeline",
				Topics: []string{"promotion"}, CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "m2", ConversationID: "c2", Summary: "Budget planning for office relocation",
				CreatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func individualBudget() datatypes.TokenBudget {
	return budget.For(datatypes.QueryIndividual)
}

func TestRetrieveNamedEmployee(t *testing.T) {
	r := NewRetriever(testStore(), nil)
	res := r.Retrieve(context.Background(), &Request{
		Message:   "Is Maria Santos ready for promotion?",
		QueryType: datatypes.QueryIndividual,
		Budget:    individualBudget(),
	})

	require.Len(t, res.Employees, 1)
	ec := res.Employees[0]
	assert.Equal(t, "e1", ec.Employee.ID)
	assert.Equal(t, "Dana Reyes", ec.ManagerName)
	require.NotNil(t, ec.LatestRating)
	assert.InDelta(t, 4.5, ec.LatestRating.Score, 0.001)
	assert.Equal(t, datatypes.TrendImproving, ec.RatingTrend)
	assert.Len(t, ec.EnpsHistory, 1)

	// The promotion memory overlaps; the relocation one does not.
	require.Len(t, res.Memories, 1)
	assert.Equal(t, "m1", res.Memories[0].ID)

	assert.Equal(t, 1, res.Metrics.EmployeesIncluded)
	assert.Positive(t, res.Metrics.Usage.EmployeeTokens)
}

func TestRetrieveSelectedEmployeeAlwaysFirst(t *testing.T) {
	r := NewRetriever(testStore(), nil)
	res := r.Retrieve(context.Background(), &Request{
		Message:            "What do you think of Maria Santos?",
		QueryType:          datatypes.QueryIndividual,
		Budget:             individualBudget(),
		SelectedEmployeeID: "e2",
	})

	require.NotEmpty(t, res.Employees)
	assert.Equal(t, "e2", res.Employees[0].Employee.ID, "selected employee must be first")
}

func TestRetrieveSelectedSurvivesTinyBudget(t *testing.T) {
	// A budget too small for any full history still ships the selected
	// employee as a compact identity-only context.
	r := NewRetriever(testStore(), nil)
	tiny := datatypes.TokenBudget{EmployeeContext: 45, ThemeContext: 0, MemoryContext: 0, TotalContext: 45}
	res := r.Retrieve(context.Background(), &Request{
		Message:            "thoughts?",
		QueryType:          datatypes.QueryIndividual,
		Budget:             tiny,
		SelectedEmployeeID: "e1",
	})

	require.Len(t, res.Employees, 1)
	assert.Equal(t, "e1", res.Employees[0].Employee.ID)
	assert.Empty(t, res.Employees[0].Ratings)
}

func TestRetrieveRanksFullNameAboveRoleMention(t *testing.T) {
	r := NewRetriever(testStore(), nil)
	res := r.Retrieve(context.Background(), &Request{
		Message:   "Compare Maria Santos with our Designer",
		QueryType: datatypes.QueryComparison,
		Budget:    budget.For(datatypes.QueryComparison),
	})

	require.GreaterOrEqual(t, len(res.Employees), 2)
	assert.Equal(t, "e1", res.Employees[0].Employee.ID, "full-name match outranks role mention")
	assert.Equal(t, "e2", res.Employees[1].Employee.ID)
}

func TestRetrieveAllOrNothingUnderBudget(t *testing.T) {
	// Many employees, a budget that fits only some: usage must stay within
	// budget and every included employee must carry its whole history.
	store := testStore()
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("bulk%d", i)
		store.employees = append(store.employees, datatypes.Employee{
			ID: id, FirstName: "Engineer", LastName: fmt.Sprintf("Number%d", i),
			Role: "Engineer", Department: "Engineering", Status: datatypes.StatusActive,
		})
		for j := 0; j < 6; j++ {
			store.ratings[id] = append(store.ratings[id], datatypes.PerformanceRating{
				ID: fmt.Sprintf("%s-r%d", id, j), EmployeeID: id, Score: 3,
			})
		}
	}

	b := datatypes.TokenBudget{EmployeeContext: 300, ThemeContext: 100, MemoryContext: 100, TotalContext: 500}
	r := NewRetriever(store, nil)
	res := r.Retrieve(context.Background(), &Request{
		Message:   "How is the Engineering team doing?",
		QueryType: datatypes.QueryList,
		Budget:    b,
	})

	assert.LessOrEqual(t, res.Metrics.Usage.EmployeeTokens, b.EmployeeContext)
	assert.LessOrEqual(t, res.Metrics.Usage.TotalTokens, b.TotalContext)
	assert.Less(t, res.Metrics.EmployeesIncluded, res.Metrics.EmployeesFound,
		"budget should have excluded some candidates")
	for _, ec := range res.Employees {
		if len(store.ratings[ec.Employee.ID]) > 0 {
			assert.Len(t, ec.Ratings, len(store.ratings[ec.Employee.ID]),
				"included employee %s has truncated history", ec.Employee.ID)
		}
	}
}

func TestRetrieveAggregateAttachmentRule(t *testing.T) {
	agg := &datatypes.OrgAggregates{TotalHeadcount: 3, ActiveCount: 3}

	tests := []struct {
		name       string
		message    string
		queryType  datatypes.QueryType
		wantAttach bool
	}{
		{"aggregate query always attaches", "how many employees?", datatypes.QueryAggregate, true},
		{"attrition query always attaches", "turnover?", datatypes.QueryAttrition, true},
		{"general with org vocabulary and slack", "tell me about the company culture", datatypes.QueryGeneral, true},
		{"general without org vocabulary", "hello there", datatypes.QueryGeneral, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRetriever(testStore(), nil)
			res := r.Retrieve(context.Background(), &Request{
				Message:    tc.message,
				QueryType:  tc.queryType,
				Budget:     budget.For(tc.queryType),
				Aggregates: agg,
			})
			assert.Equal(t, tc.wantAttach, res.AttachAggregates)
			assert.Equal(t, tc.wantAttach, res.Metrics.AggregatesAttached)
			if tc.wantAttach {
				assert.Positive(t, res.Metrics.Usage.AggregatesTokens)
			}
		})
	}
}

func TestRetrieveAggregateUsageBoundedByThemeBudget(t *testing.T) {
	// An org with a very long department list must not blow the total budget
	// just because aggregate queries always attach the rollup: the rendered
	// department list is truncated to fit the theme section instead.
	agg := &datatypes.OrgAggregates{TotalHeadcount: 900, ActiveCount: 870}
	for i := 0; i < 150; i++ {
		agg.Departments = append(agg.Departments, datatypes.DepartmentStat{
			Name: fmt.Sprintf("Division %d", i), Count: 6, Percent: 0.7,
		})
	}

	b := budget.For(datatypes.QueryAggregate)
	r := NewRetriever(testStore(), nil)
	res := r.Retrieve(context.Background(), &Request{
		Message:    "how many employees do we have?",
		QueryType:  datatypes.QueryAggregate,
		Budget:     b,
		Aggregates: agg,
	})

	assert.True(t, res.AttachAggregates)
	assert.LessOrEqual(t, res.Metrics.Usage.AggregatesTokens, b.ThemeContext)
	assert.LessOrEqual(t, res.Metrics.Usage.TotalTokens, b.TotalContext,
		"usage %d exceeds budget total %d", res.Metrics.Usage.TotalTokens, b.TotalContext)

	require.NotNil(t, res.Aggregates)
	assert.Less(t, len(res.Aggregates.Departments), 150, "rendered view should be truncated")
	assert.Equal(t, 900, res.Aggregates.TotalHeadcount, "headline figures survive truncation")
	assert.Len(t, agg.Departments, 150, "the caller's snapshot must stay untouched")
}

func TestRetrieveAggregateDroppedWhenThemeSectionTooSmall(t *testing.T) {
	agg := &datatypes.OrgAggregates{TotalHeadcount: 3, ActiveCount: 3}
	b := datatypes.TokenBudget{EmployeeContext: 100, ThemeContext: 20, MemoryContext: 80, TotalContext: 200}

	r := NewRetriever(testStore(), nil)
	res := r.Retrieve(context.Background(), &Request{
		Message:    "how many employees?",
		QueryType:  datatypes.QueryAggregate,
		Budget:     b,
		Aggregates: agg,
	})

	assert.False(t, res.AttachAggregates)
	assert.Zero(t, res.Metrics.Usage.AggregatesTokens)
	assert.LessOrEqual(t, res.Metrics.Usage.TotalTokens, b.TotalContext)
}

func TestRetrieveSelectedOverdraftChargedToLaterSections(t *testing.T) {
	// Employee section smaller than even the compact identity view: the
	// selected employee still ships, and the shortfall comes out of the
	// memory and theme sections so the usage total stays within budget.
	b := datatypes.TokenBudget{EmployeeContext: 10, ThemeContext: 60, MemoryContext: 130, TotalContext: 200}

	r := NewRetriever(testStore(), nil)
	res := r.Retrieve(context.Background(), &Request{
		Message:            "what did we discuss about the promotion timeline?",
		QueryType:          datatypes.QueryIndividual,
		Budget:             b,
		SelectedEmployeeID: "e1",
		Aggregates:         &datatypes.OrgAggregates{TotalHeadcount: 3},
	})

	require.Len(t, res.Employees, 1)
	assert.Equal(t, "e1", res.Employees[0].Employee.ID)
	assert.Empty(t, res.Employees[0].Ratings, "overrun selection degrades to identity only")
	assert.LessOrEqual(t, res.Metrics.Usage.TotalTokens, b.TotalContext,
		"usage %d exceeds budget total %d", res.Metrics.Usage.TotalTokens, b.TotalContext)
}

func TestRetrieveDegradesSectionsIndependently(t *testing.T) {
	store := testStore()
	store.failEmployee = true
	r := NewRetriever(store, nil)
	res := r.Retrieve(context.Background(), &Request{
		Message:   "What did we say about Maria Santos promotion?",
		QueryType: datatypes.QueryIndividual,
		Budget:    individualBudget(),
	})

	assert.Empty(t, res.Employees, "employee section degraded to empty")
	assert.NotEmpty(t, res.Memories, "memory section still served")
	assert.Equal(t, 0, res.Metrics.EmployeesFound)
}

func TestRetrieveZeroResultStillReportsMetrics(t *testing.T) {
	store := testStore()
	store.failEmployee = true
	store.failSummary = true
	r := NewRetriever(store, nil)
	b := individualBudget()
	res := r.Retrieve(context.Background(), &Request{
		Message: "anything", QueryType: datatypes.QueryGeneral, Budget: b,
	})

	assert.Equal(t, b, res.Metrics.Budget)
	assert.Zero(t, res.Metrics.Usage.TotalTokens)
	assert.GreaterOrEqual(t, res.Metrics.RetrievalTimeMs, int64(0))
}

func TestDeriveTrend(t *testing.T) {
	mk := func(scores ...float64) []datatypes.PerformanceRating {
		out := make([]datatypes.PerformanceRating, len(scores))
		for i, s := range scores {
			out[i] = datatypes.PerformanceRating{Score: s}
		}
		return out
	}
	assert.Equal(t, datatypes.RatingTrend(""), deriveTrend(mk(4.0)))
	assert.Equal(t, datatypes.TrendImproving, deriveTrend(mk(4.0, 3.0)))
	assert.Equal(t, datatypes.TrendDeclining, deriveTrend(mk(3.0, 4.0)))
	assert.Equal(t, datatypes.TrendStable, deriveTrend(mk(4.0, 4.0)))
}
