// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func claim(match bool) NumericClaim {
	return NumericClaim{Type: ClaimActiveCount, ValueFound: 97, IsMatch: match}
}

func TestDeriveOverallStatus(t *testing.T) {
	tests := []struct {
		name        string
		isAggregate bool
		claims      []NumericClaim
		want        VerificationStatus
	}{
		{"not aggregate query", false, []NumericClaim{claim(true)}, StatusNotApplicable},
		{"aggregate with zero claims", true, nil, StatusUnverified},
		{"all claims match", true, []NumericClaim{claim(true), claim(true)}, StatusVerified},
		{"some claims match", true, []NumericClaim{claim(true), claim(false)}, StatusPartialMatch},
		{"no claims match", true, []NumericClaim{claim(false), claim(false)}, StatusUnverified},
		{"single matching claim", true, []NumericClaim{claim(true)}, StatusVerified},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveOverallStatus(tc.isAggregate, tc.claims)
			assert.Equal(t, tc.want, got)
		})
	}
}

// Verified iff claims exist and every claim matches.
func TestVerifiedRequiresAtLeastOneClaim(t *testing.T) {
	res := NewVerificationResult(true, nil, "")
	assert.Equal(t, StatusUnverified, res.OverallStatus)
	assert.NotNil(t, res.Claims, "claims must serialize as [], not null")
	assert.Len(t, res.Claims, 0)
}

func TestNewVerificationResultDerivesStatus(t *testing.T) {
	res := NewVerificationResult(true, []NumericClaim{claim(true)}, "SELECT COUNT(*) FROM employees WHERE status = 'active'")
	assert.Equal(t, StatusVerified, res.OverallStatus)
	assert.True(t, res.IsAggregateQuery)
	assert.NotEmpty(t, res.SQLQuery)
}

func TestGetEnpsCategoryBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  EnpsCategory
	}{
		{10, EnpsPromoter},
		{9, EnpsPromoter},
		{8, EnpsPassive},
		{7, EnpsPassive},
		{6, EnpsDetractor},
		{0, EnpsDetractor},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, GetEnpsCategory(tc.score), "score %d", tc.score)
	}
}

func TestTokenBudgetCheck(t *testing.T) {
	good := TokenBudget{EmployeeContext: 100, ThemeContext: 50, MemoryContext: 50, TotalContext: 200}
	assert.NoError(t, good.Check())

	bad := TokenBudget{EmployeeContext: 100, ThemeContext: 50, MemoryContext: 50, TotalContext: 300}
	assert.Error(t, bad.Check())

	negative := TokenBudget{EmployeeContext: -1, TotalContext: -1}
	assert.Error(t, negative.Check())
}
