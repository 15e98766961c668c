// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the ground-truth aggregate value objects. OrgAggregates
// is a derived, disposable rollup scoped to one request/verification pair;
// it is never persisted or cached.
package datatypes

import "time"

// =============================================================================
// Organization Aggregates
// =============================================================================

// DepartmentStat is one department's share of the active workforce.
// Percent is computed against the active count, not total headcount, and
// rounded to one decimal.
type DepartmentStat struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// RatingDistribution buckets rating scores into four bands.
//
// Bands: [1.0,2.0) needs improvement, [2.0,3.0) developing,
// [3.0,4.0) meets expectations, [4.0,5.0] exceeds expectations.
type RatingDistribution struct {
	NeedsImprovement  int `json:"needs_improvement"`
	Developing        int `json:"developing"`
	MeetsExpectations int `json:"meets_expectations"`
	Exceeds           int `json:"exceeds"`
}

// EnpsAggregate is the Net Promoter rollup over all survey responses.
//
// Score = 100 * (promoters - detractors) / total responses. Promoters are
// scores >= 9, passives 7-8, detractors <= 6.
type EnpsAggregate struct {
	Promoters  int     `json:"promoters"`
	Passives   int     `json:"passives"`
	Detractors int     `json:"detractors"`
	Total      int     `json:"total_responses"`
	Score      float64 `json:"score"`
}

// AttritionStats summarizes departures for the current year.
//
// TurnoverRate is annualized: (terminations / average headcount) scaled to a
// full year, expressed as a percentage. It is nil when fewer than one full
// month of data exists, because the ratio is unstable below that.
type AttritionStats struct {
	YTDTerminations int      `json:"ytd_terminations"`
	Voluntary       int      `json:"voluntary"`
	Involuntary     int      `json:"involuntary"`
	AvgTenureMonths float64  `json:"avg_tenure_months"`
	TurnoverRate    *float64 `json:"turnover_rate,omitempty"`
}

// OrgAggregates is the point-in-time ground-truth rollup computed directly
// from the store.
//
// # Description
//
// One instance is computed per user message during prompt building and the
// same instance is reused for answer verification, so the claims are checked
// against the exact snapshot the model was shown. AvgRating is nil when no
// ratings exist; Enps is nil when no survey responses exist.
type OrgAggregates struct {
	TotalHeadcount     int                `json:"total_headcount"`
	ActiveCount        int                `json:"active_count"`
	TerminatedCount    int                `json:"terminated_count"`
	OnLeaveCount       int                `json:"on_leave_count"`
	Departments        []DepartmentStat   `json:"departments"`
	AvgRating          *float64           `json:"avg_rating,omitempty"`
	RatingDistribution RatingDistribution `json:"rating_distribution"`
	Enps               *EnpsAggregate     `json:"enps,omitempty"`
	Attrition          AttritionStats     `json:"attrition"`
	ComputedAt         time.Time          `json:"computed_at"`
}

// DepartmentCount returns the active count for a department by
// case-insensitive name match, and whether it was found.
func (a *OrgAggregates) DepartmentCount(name string) (int, bool) {
	for _, d := range a.Departments {
		if equalFold(d.Name, name) {
			return d.Count, true
		}
	}
	return 0, false
}

// equalFold is a small ASCII-insensitive comparison to avoid pulling strings
// into the hot path signature; department names are ASCII in practice.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
