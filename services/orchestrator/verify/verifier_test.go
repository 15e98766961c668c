// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package verify

import (
	"testing"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAggregates() *datatypes.OrgAggregates {
	avg := 3.8
	turnover := 12.4
	return &datatypes.OrgAggregates{
		TotalHeadcount:  103,
		ActiveCount:     97,
		TerminatedCount: 6,
		Departments: []datatypes.DepartmentStat{
			{Name: "Engineering", Count: 48, Percent: 49.5},
			{Name: "Sales", Count: 30, Percent: 30.9},
			{Name: "People", Count: 19, Percent: 19.6},
		},
		AvgRating: &avg,
		Enps:      &datatypes.EnpsAggregate{Promoters: 40, Passives: 30, Detractors: 27, Total: 97, Score: 13.4},
		Attrition: datatypes.AttritionStats{YTDTerminations: 6, TurnoverRate: &turnover},
	}
}

func claimOfType(t *testing.T, claims []datatypes.NumericClaim, ct datatypes.ClaimType) datatypes.NumericClaim {
	t.Helper()
	for _, c := range claims {
		if c.Type == ct {
			return c
		}
	}
	t.Fatalf("no claim of type %q in %+v", ct, claims)
	return datatypes.NumericClaim{}
}

func TestVerifyCorrectAggregateAnswer(t *testing.T) {
	v := NewVerifier()
	answer := "We have 103 employees in total, and 97 are active right now."
	res := v.Verify(answer, datatypes.QueryAggregate, testAggregates())

	assert.True(t, res.IsAggregateQuery)
	require.Len(t, res.Claims, 2)

	total := claimOfType(t, res.Claims, datatypes.ClaimTotalHeadcount)
	assert.InDelta(t, 103, total.ValueFound, 0.001)
	assert.True(t, total.IsMatch)

	active := claimOfType(t, res.Claims, datatypes.ClaimActiveCount)
	assert.InDelta(t, 97, active.ValueFound, 0.001)
	assert.True(t, active.IsMatch)

	assert.Equal(t, datatypes.StatusVerified, res.OverallStatus)
	assert.NotEmpty(t, res.SQLQuery)
}

func TestVerifyCountsRequireExactEquality(t *testing.T) {
	v := NewVerifier()
	res := v.Verify("We have 104 employees.", datatypes.QueryAggregate, testAggregates())

	require.Len(t, res.Claims, 1)
	assert.False(t, res.Claims[0].IsMatch, "off-by-one count must not match")
	assert.Equal(t, datatypes.StatusUnverified, res.OverallStatus)
}

func TestVerifyRatesAllowHalfPointTolerance(t *testing.T) {
	v := NewVerifier()
	tests := []struct {
		name   string
		answer string
		match  bool
	}{
		{"turnover within tolerance", "Our turnover rate is 12% this year.", true},
		{"turnover outside tolerance", "Our turnover rate is 14% this year.", false},
		{"avg rating rounded", "The average rating is 4.0 out of 5.", true},
		{"enps rounded", "The eNPS score is 13 overall.", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := v.Verify(tc.answer, datatypes.QueryAggregate, testAggregates())
			require.Len(t, res.Claims, 1, "answer: %q", tc.answer)
			assert.Equal(t, tc.match, res.Claims[0].IsMatch)
		})
	}
}

func TestVerifyDepartmentClaims(t *testing.T) {
	v := NewVerifier()
	res := v.Verify("There are 48 people in Engineering.", datatypes.QueryAggregate, testAggregates())

	require.Len(t, res.Claims, 1)
	c := res.Claims[0]
	assert.Equal(t, datatypes.ClaimDepartmentCount, c.Type)
	require.NotNil(t, c.GroundTruth)
	assert.InDelta(t, 48, *c.GroundTruth, 0.001)
	assert.True(t, c.IsMatch)
}

func TestVerifyUnknownDepartmentYieldsNoClaim(t *testing.T) {
	v := NewVerifier()
	res := v.Verify("There are 12 people in Logistics, per our headcount review.",
		datatypes.QueryAggregate, testAggregates())

	// Conservative extraction: the unknown department produces no claim, and
	// its number must not be misread as a headcount claim either.
	assert.Empty(t, res.Claims)
	assert.Equal(t, datatypes.StatusUnverified, res.OverallStatus)
}

func TestVerifyPartialMatch(t *testing.T) {
	v := NewVerifier()
	res := v.Verify("We have 103 employees but only 90 are active.",
		datatypes.QueryAggregate, testAggregates())

	require.Len(t, res.Claims, 2)
	assert.Equal(t, datatypes.StatusPartialMatch, res.OverallStatus)
}

func TestVerifyNonAggregateQuerySuppressed(t *testing.T) {
	v := NewVerifier()
	res := v.Verify("Maria has been doing great work on the platform migration.",
		datatypes.QueryIndividual, testAggregates())

	assert.False(t, res.IsAggregateQuery)
	assert.Empty(t, res.Claims)
	assert.Equal(t, datatypes.StatusNotApplicable, res.OverallStatus)
}

func TestVerifyAggregateLanguageOverridesQueryType(t *testing.T) {
	// Even a General-classified query gets verified when the answer itself
	// talks like an aggregate answer.
	v := NewVerifier()
	res := v.Verify("Context: total headcount is 103 across three departments.",
		datatypes.QueryGeneral, testAggregates())

	assert.True(t, res.IsAggregateQuery)
	c := claimOfType(t, res.Claims, datatypes.ClaimTotalHeadcount)
	assert.True(t, c.IsMatch)
}

func TestVerifyAggregateAnswerWithNoNumbers(t *testing.T) {
	v := NewVerifier()
	res := v.Verify("Headcount has been growing steadily this quarter.",
		datatypes.QueryAggregate, testAggregates())

	assert.True(t, res.IsAggregateQuery)
	assert.Empty(t, res.Claims)
	assert.Equal(t, datatypes.StatusUnverified, res.OverallStatus)
}

func TestVerifyNilGroundTruthNeverMatches(t *testing.T) {
	agg := testAggregates()
	agg.Attrition.TurnoverRate = nil // under a month of data

	v := NewVerifier()
	res := v.Verify("Our turnover rate is 12% this year.", datatypes.QueryAggregate, agg)
	require.Len(t, res.Claims, 1)
	assert.Nil(t, res.Claims[0].GroundTruth)
	assert.False(t, res.Claims[0].IsMatch)
}

func TestVerifyNilAggregatesIsNotApplicable(t *testing.T) {
	v := NewVerifier()
	res := v.Verify("We have 103 employees.", datatypes.QueryAggregate, nil)
	assert.False(t, res.IsAggregateQuery)
	assert.Equal(t, datatypes.StatusNotApplicable, res.OverallStatus)
}

func TestVerifyPercentageClaim(t *testing.T) {
	v := NewVerifier()
	res := v.Verify("About 49.5% of the workforce is in Engineering.",
		datatypes.QueryAggregate, testAggregates())

	c := claimOfType(t, res.Claims, datatypes.ClaimPercentage)
	assert.True(t, c.IsMatch)
}
