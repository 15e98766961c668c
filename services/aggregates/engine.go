// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package aggregates computes the organization-wide ground-truth rollup.
//
// Compute is a pure function of current store state. Results are never
// cached: the same snapshot that was rendered into a prompt is passed back
// for verification, and a cache here would let "verified" claims go stale
// whenever an employee or rating is edited between messages.
package aggregates

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
)

// Directory is the slice of the store the engine reads.
type Directory interface {
	ListEmployees(ctx context.Context) ([]datatypes.Employee, error)
	ListAllRatings(ctx context.Context) ([]datatypes.PerformanceRating, error)
	ListAllEnps(ctx context.Context) ([]datatypes.EnpsResponse, error)
}

// Engine computes OrgAggregates from a Directory.
//
// # Thread Safety
//
// Stateless apart from the injected clock; safe for concurrent use.
type Engine struct {
	dir Directory
	now func() time.Time
}

// NewEngine returns an Engine reading from dir.
func NewEngine(dir Directory) *Engine {
	return &Engine{dir: dir, now: time.Now}
}

// NewEngineWithClock is NewEngine with an injectable clock for tests.
func NewEngineWithClock(dir Directory, now func() time.Time) *Engine {
	return &Engine{dir: dir, now: now}
}

// Compute derives a fresh OrgAggregates snapshot from current store state.
//
// # Description
//
// Headcounts come straight from employee status. Department percentages are
// computed against the active count (on-leave included), not total headcount,
// so terminated employees never dilute the current-org view. Rating stats use
// each employee's most recent rating; orphaned history whose employee record
// was deleted is excluded. AvgRating is nil when no ratings exist and Enps is
// nil when no survey responses exist, so callers can distinguish "zero" from
// "no data".
func (e *Engine) Compute(ctx context.Context) (*datatypes.OrgAggregates, error) {
	employees, err := e.dir.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	ratings, err := e.dir.ListAllRatings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	responses, err := e.dir.ListAllEnps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enps responses: %w", err)
	}

	now := e.now().UTC()
	agg := &datatypes.OrgAggregates{ComputedAt: now}

	known := make(map[string]*datatypes.Employee, len(employees))
	for i := range employees {
		emp := &employees[i]
		known[emp.ID] = emp
		agg.TotalHeadcount++
		switch emp.Status {
		case datatypes.StatusTerminated:
			agg.TerminatedCount++
		case datatypes.StatusOnLeave:
			agg.OnLeaveCount++
			agg.ActiveCount++
		default:
			agg.ActiveCount++
		}
	}

	agg.Departments = departmentStats(employees, agg.ActiveCount)
	agg.AvgRating, agg.RatingDistribution = ratingStats(ratings, known)
	agg.Enps = enpsAggregate(responses, known)
	agg.Attrition = attritionStats(employees, now)

	return agg, nil
}

// departmentStats rolls up active employees by department, largest first.
func departmentStats(employees []datatypes.Employee, activeCount int) []datatypes.DepartmentStat {
	counts := make(map[string]int)
	for i := range employees {
		if employees[i].IsActive() && employees[i].Department != "" {
			counts[employees[i].Department]++
		}
	}
	stats := make([]datatypes.DepartmentStat, 0, len(counts))
	for name, n := range counts {
		pct := 0.0
		if activeCount > 0 {
			pct = round1(100 * float64(n) / float64(activeCount))
		}
		stats = append(stats, datatypes.DepartmentStat{Name: name, Count: n, Percent: pct})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Name < stats[j].Name
	})
	return stats
}

// ratingStats averages and buckets each employee's most recent rating.
//
// Bands: [1,2) needs improvement, [2,3) developing, [3,4) meets
// expectations, [4,5] exceeds.
func ratingStats(ratings []datatypes.PerformanceRating, known map[string]*datatypes.Employee) (*float64, datatypes.RatingDistribution) {
	latest := make(map[string]*datatypes.PerformanceRating)
	for i := range ratings {
		r := &ratings[i]
		if _, ok := known[r.EmployeeID]; !ok {
			continue
		}
		if cur, ok := latest[r.EmployeeID]; !ok || r.CreatedAt.After(cur.CreatedAt) {
			latest[r.EmployeeID] = r
		}
	}
	if len(latest) == 0 {
		return nil, datatypes.RatingDistribution{}
	}

	var dist datatypes.RatingDistribution
	var sum float64
	for _, r := range latest {
		sum += r.Score
		switch {
		case r.Score < 2.0:
			dist.NeedsImprovement++
		case r.Score < 3.0:
			dist.Developing++
		case r.Score < 4.0:
			dist.MeetsExpectations++
		default:
			dist.Exceeds++
		}
	}
	avg := round2(sum / float64(len(latest)))
	return &avg, dist
}

// enpsAggregate scores all survey responses: 100 * (promoters - detractors)
// divided by total responses.
func enpsAggregate(responses []datatypes.EnpsResponse, known map[string]*datatypes.Employee) *datatypes.EnpsAggregate {
	var agg datatypes.EnpsAggregate
	for i := range responses {
		if _, ok := known[responses[i].EmployeeID]; !ok {
			continue
		}
		agg.Total++
		switch datatypes.GetEnpsCategory(responses[i].Score) {
		case datatypes.EnpsPromoter:
			agg.Promoters++
		case datatypes.EnpsPassive:
			agg.Passives++
		default:
			agg.Detractors++
		}
	}
	if agg.Total == 0 {
		return nil
	}
	agg.Score = round1(100 * float64(agg.Promoters-agg.Detractors) / float64(agg.Total))
	return &agg
}

// minPeriodDays is the shortest year-to-date window for which an annualized
// turnover rate is reported. Below a month the ratio is too unstable.
const minPeriodDays = 30

// attritionStats summarizes year-to-date departures.
//
// Turnover is annualized as (terminations / average headcount in period) *
// (365 / period days), as a percentage. Average headcount is the midpoint of
// the headcount at the start of the year and the current active count.
// TurnoverRate stays nil when the year-to-date window is shorter than one
// month or no headcount existed. Average tenure is measured at departure for
// this year's leavers.
func attritionStats(employees []datatypes.Employee, now time.Time) datatypes.AttritionStats {
	var stats datatypes.AttritionStats
	periodStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	var tenureMonths float64
	startHeadcount := 0
	endHeadcount := 0
	for i := range employees {
		emp := &employees[i]
		if emp.IsActive() {
			endHeadcount++
		}
		if emp.HireDate.Before(periodStart) &&
			(emp.TerminationDate == nil || emp.TerminationDate.After(periodStart)) {
			startHeadcount++
		}
		if emp.Status != datatypes.StatusTerminated || emp.TerminationDate == nil {
			continue
		}
		if emp.TerminationDate.Before(periodStart) || emp.TerminationDate.After(now) {
			continue
		}
		stats.YTDTerminations++
		if emp.TerminationType == datatypes.TerminationInvoluntary {
			stats.Involuntary++
		} else {
			stats.Voluntary++
		}
		tenureMonths += emp.TerminationDate.Sub(emp.HireDate).Hours() / 24 / 30.44
	}

	if stats.YTDTerminations > 0 {
		stats.AvgTenureMonths = round1(tenureMonths / float64(stats.YTDTerminations))
	}

	periodDays := now.Sub(periodStart).Hours() / 24
	avgHeadcount := float64(startHeadcount+endHeadcount) / 2
	if periodDays >= minPeriodDays && avgHeadcount > 0 {
		rate := round1(float64(stats.YTDTerminations) / avgHeadcount * (365 / periodDays) * 100)
		stats.TurnoverRate = &rate
	}
	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
