// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package aggregates

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/beaconhq/BeaconLocal/services/hrstore"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

func seedStore(t *testing.T) *hrstore.Store {
	t.Helper()
	s, err := hrstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func putEmployee(t *testing.T, s *hrstore.Store, e datatypes.Employee) {
	t.Helper()
	if e.HireDate.IsZero() {
		e.HireDate = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if e.Status == "" {
		e.Status = datatypes.StatusActive
	}
	require.NoError(t, s.PutEmployee(context.Background(), &e))
}

func TestComputeHeadcountsAndDepartments(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	term := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	putEmployee(t, s, datatypes.Employee{ID: "1", FirstName: "A", LastName: "A", Department: "Engineering"})
	putEmployee(t, s, datatypes.Employee{ID: "2", FirstName: "B", LastName: "B", Department: "Engineering"})
	putEmployee(t, s, datatypes.Employee{ID: "3", FirstName: "C", LastName: "C", Department: "Sales", Status: datatypes.StatusOnLeave})
	putEmployee(t, s, datatypes.Employee{ID: "4", FirstName: "D", LastName: "D", Department: "Sales",
		Status: datatypes.StatusTerminated, TerminationDate: &term, TerminationType: datatypes.TerminationVoluntary})

	agg, err := NewEngineWithClock(s, func() time.Time { return testNow }).Compute(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, agg.TotalHeadcount)
	assert.Equal(t, 3, agg.ActiveCount) // on_leave is still employed
	assert.Equal(t, 1, agg.TerminatedCount)
	assert.Equal(t, 1, agg.OnLeaveCount)

	require.Len(t, agg.Departments, 2)
	assert.Equal(t, "Engineering", agg.Departments[0].Name)
	assert.Equal(t, 2, agg.Departments[0].Count)
	assert.InDelta(t, 66.7, agg.Departments[0].Percent, 0.001)
	assert.Equal(t, "Sales", agg.Departments[1].Name)
	assert.InDelta(t, 33.3, agg.Departments[1].Percent, 0.001)

	// Percentages are against active count, so they sum to ~100.
	var sum float64
	for _, d := range agg.Departments {
		sum += d.Percent
	}
	assert.InDelta(t, 100.0, sum, 0.2)

	n, ok := agg.DepartmentCount("engineering")
	assert.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestComputeRatingStatsUseLatestPerEmployee(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	putEmployee(t, s, datatypes.Employee{ID: "1", FirstName: "A", LastName: "A", Department: "Eng"})
	putEmployee(t, s, datatypes.Employee{ID: "2", FirstName: "B", LastName: "B", Department: "Eng"})

	// Employee 1 improved from 2.5 to 4.5; only the 4.5 counts.
	require.NoError(t, s.PutRating(ctx, &datatypes.PerformanceRating{
		ID: "r1", EmployeeID: "1", Score: 2.5, Period: "2024-H2",
		CreatedAt: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, s.PutRating(ctx, &datatypes.PerformanceRating{
		ID: "r2", EmployeeID: "1", Score: 4.5, Period: "2025-H1",
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, s.PutRating(ctx, &datatypes.PerformanceRating{
		ID: "r3", EmployeeID: "2", Score: 3.5, Period: "2025-H1",
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}))
	// Orphaned rating for a deleted employee is ignored.
	require.NoError(t, s.PutRating(ctx, &datatypes.PerformanceRating{
		ID: "r4", EmployeeID: "gone", Score: 1.0, Period: "2025-H1",
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}))

	agg, err := NewEngineWithClock(s, func() time.Time { return testNow }).Compute(ctx)
	require.NoError(t, err)

	require.NotNil(t, agg.AvgRating)
	assert.InDelta(t, 4.0, *agg.AvgRating, 0.001)
	assert.Equal(t, datatypes.RatingDistribution{MeetsExpectations: 1, Exceeds: 1}, agg.RatingDistribution)
}

func TestComputeAvgRatingNilWithoutRatings(t *testing.T) {
	s := seedStore(t)
	putEmployee(t, s, datatypes.Employee{ID: "1", FirstName: "A", LastName: "A"})

	agg, err := NewEngineWithClock(s, func() time.Time { return testNow }).Compute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, agg.AvgRating)
	assert.Nil(t, agg.Enps)
}

func TestComputeEnps(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	scores := []int{10, 9, 8, 7, 6, 2} // 2 promoters, 2 passives, 2 detractors
	for i, score := range scores {
		id := fmt.Sprintf("%d", i)
		putEmployee(t, s, datatypes.Employee{ID: id, FirstName: "E", LastName: id})
		require.NoError(t, s.PutEnpsResponse(ctx, &datatypes.EnpsResponse{
			ID: "resp" + id, EmployeeID: id, Score: score,
			SurveyDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}))
	}

	agg, err := NewEngineWithClock(s, func() time.Time { return testNow }).Compute(ctx)
	require.NoError(t, err)

	require.NotNil(t, agg.Enps)
	assert.Equal(t, 2, agg.Enps.Promoters)
	assert.Equal(t, 2, agg.Enps.Passives)
	assert.Equal(t, 2, agg.Enps.Detractors)
	assert.Equal(t, 6, agg.Enps.Total)
	assert.InDelta(t, 0.0, agg.Enps.Score, 0.001)
}

func TestComputeAttrition(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	hire := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	termVol := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	termInvol := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	lastYear := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		putEmployee(t, s, datatypes.Employee{
			ID: fmt.Sprintf("act%d", i), FirstName: "A", LastName: fmt.Sprintf("%d", i),
			Department: "Eng", HireDate: hire})
	}
	putEmployee(t, s, datatypes.Employee{ID: "t1", FirstName: "T", LastName: "One", HireDate: hire,
		Status: datatypes.StatusTerminated, TerminationDate: &termVol, TerminationType: datatypes.TerminationVoluntary})
	putEmployee(t, s, datatypes.Employee{ID: "t2", FirstName: "T", LastName: "Two", HireDate: hire,
		Status: datatypes.StatusTerminated, TerminationDate: &termInvol, TerminationType: datatypes.TerminationInvoluntary})
	// Last year's departure does not count toward YTD.
	putEmployee(t, s, datatypes.Employee{ID: "t3", FirstName: "T", LastName: "Three", HireDate: hire,
		Status: datatypes.StatusTerminated, TerminationDate: &lastYear, TerminationType: datatypes.TerminationVoluntary})

	agg, err := NewEngineWithClock(s, func() time.Time { return testNow }).Compute(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, agg.Attrition.YTDTerminations)
	assert.Equal(t, 1, agg.Attrition.Voluntary)
	assert.Equal(t, 1, agg.Attrition.Involuntary)
	assert.Greater(t, agg.Attrition.AvgTenureMonths, 12.0)
	require.NotNil(t, agg.Attrition.TurnoverRate)
	assert.Greater(t, *agg.Attrition.TurnoverRate, 0.0)
}

func TestTurnoverNilUnderOneMonthOfData(t *testing.T) {
	s := seedStore(t)
	putEmployee(t, s, datatypes.Employee{ID: "1", FirstName: "A", LastName: "A",
		HireDate: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)})

	// Mid-January: the year-to-date window is under 30 days.
	early := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	agg, err := NewEngineWithClock(s, func() time.Time { return early }).Compute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, agg.Attrition.TurnoverRate)
}

func TestComputeEmptyStore(t *testing.T) {
	s := seedStore(t)
	agg, err := NewEngineWithClock(s, func() time.Time { return testNow }).Compute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, agg.TotalHeadcount)
	assert.Empty(t, agg.Departments)
	assert.Nil(t, agg.AvgRating)
	assert.Nil(t, agg.Enps)
	assert.Nil(t, agg.Attrition.TurnoverRate)
}
