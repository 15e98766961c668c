// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package verify checks the model's finished answer against the ground-truth
// aggregate snapshot that was used to build its prompt.
//
// Claim extraction is a rule table, not control flow: each ClaimType carries
// the regexes that recognize it and the tolerance its comparison allows.
// Extraction is deliberately conservative — a number with no recognized
// vocabulary next to it produces no claim, because a wrong claim type is
// worse than no claim.
package verify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
)

// Tolerances. Integer counts must be exact; rates, averages, and percentages
// allow model rounding.
const (
	toleranceExact = 0.0
	toleranceRate  = 0.5
)

// claimRule recognizes one ClaimType. Each pattern's first capture group is
// the numeric value; a second capture group, when present, names the
// department the value refers to.
type claimRule struct {
	claimType datatypes.ClaimType
	tolerance float64
	patterns  []*regexp.Regexp
}

// claimRules is ordered by specificity: earlier rules claim their number
// spans first, so "97 are active" is an active-count claim and never falls
// through to a looser rule.
var claimRules = []claimRule{
	{
		claimType: datatypes.ClaimActiveCount,
		tolerance: toleranceExact,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(\d+)\s+(?:are\s+|currently\s+)?active\b`),
			regexp.MustCompile(`(?i)\bactive\s+(?:employees|headcount)\s+(?:is|of|at)\s+(\d+)\b`),
		},
	},
	{
		claimType: datatypes.ClaimTurnoverRate,
		tolerance: toleranceRate,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*%\s+(?:annualized\s+|annual\s+)?(?:turnover|attrition)\b`),
			regexp.MustCompile(`(?i)\b(?:turnover|attrition)\s+(?:rate\s+)?(?:is|of|at)\s+(?:about\s+|around\s+|roughly\s+)?(\d+(?:\.\d+)?)\s*%`),
		},
	},
	{
		claimType: datatypes.ClaimAvgRating,
		tolerance: toleranceRate,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\baverage\s+(?:performance\s+)?rating\s+(?:is|of|at)\s+(?:about\s+|around\s+)?(\d+(?:\.\d+)?)\b`),
			regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s+average\s+(?:performance\s+)?rating\b`),
		},
	},
	{
		claimType: datatypes.ClaimEnpsScore,
		tolerance: toleranceRate,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\benps\s+(?:score\s+)?(?:is|of|at)\s+(?:about\s+|around\s+)?(-?\d+(?:\.\d+)?)\b`),
			regexp.MustCompile(`(?i)\benps\s+(?:score\s+)?(?:of\s+)?(-?\d+(?:\.\d+)?)\b`),
		},
	},
	{
		claimType: datatypes.ClaimDepartmentCount,
		tolerance: toleranceExact,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(\d+)\s+(?:people|employees|engineers|members)\s+(?:are\s+)?in\s+(?:the\s+)?([A-Za-z][A-Za-z &]*?)(?:\s+department)?\b[.,;:]?`),
			regexp.MustCompile(`(?i)\b([A-Za-z][A-Za-z &]*?)\s+(?:department\s+)?has\s+(\d+)\s+(?:people|employees|engineers|members)\b`),
		},
	},
	{
		claimType: datatypes.ClaimPercentage,
		tolerance: toleranceRate,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*%\s+(?:of\s+(?:the\s+)?(?:org|company|workforce|team)\s+)?(?:is|are|work)\s+in\s+(?:the\s+)?([A-Za-z][A-Za-z &]*?)\b[.,;:]?`),
		},
	},
	{
		claimType: datatypes.ClaimTotalHeadcount,
		tolerance: toleranceExact,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(\d+)\s+(?:total\s+)?employees\b`),
			regexp.MustCompile(`(?i)\b(?:total\s+)?headcount\s+(?:is|of|at)\s+(\d+)\b`),
			regexp.MustCompile(`(?i)\btotal\s+of\s+(\d+)\s+(?:people|employees)\b`),
		},
	},
}

// aggregateLanguage flags answers that read like an aggregate answer even
// when the query was classified otherwise.
var aggregateLanguage = regexp.MustCompile(`(?i)\b(headcount|total employees|turnover rate|attrition rate|average rating|enps)\b`)

// Verifier checks finished answers against an OrgAggregates snapshot.
//
// Stateless; safe for concurrent use.
type Verifier struct{}

// NewVerifier returns a Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify extracts numeric claims from responseText and checks each one
// against aggregates.
//
// # Description
//
// Runs meaningfully only when the query was classified Aggregate or the
// response itself contains aggregate-shaped language; otherwise the result
// carries IsAggregateQuery=false and the UI suppresses its badge. The
// aggregates argument must be the same snapshot that was rendered into the
// prompt — recomputing it here would let the data drift between what the
// model saw and what it is judged against.
func (v *Verifier) Verify(responseText string, queryType datatypes.QueryType, aggregates *datatypes.OrgAggregates) *datatypes.VerificationResult {
	isAggregate := queryType == datatypes.QueryAggregate || aggregateLanguage.MatchString(responseText)
	if !isAggregate || aggregates == nil {
		return datatypes.NewVerificationResult(false, nil, "")
	}

	claims := extractClaims(responseText, aggregates)
	return datatypes.NewVerificationResult(true, claims, describeQuery(claims))
}

// extractClaims runs the rule table over the answer. Each number span is
// claimed at most once, by the first (most specific) rule that recognizes it.
func extractClaims(text string, agg *datatypes.OrgAggregates) []datatypes.NumericClaim {
	var claims []datatypes.NumericClaim
	claimed := make(map[int]bool) // start offset of the number span

	for _, rule := range claimRules {
		for _, pat := range rule.patterns {
			for _, loc := range pat.FindAllStringSubmatchIndex(text, -1) {
				numStart, numEnd, name := claimGroups(text, pat, loc)
				if numStart < 0 || claimed[numStart] {
					continue
				}
				value, err := strconv.ParseFloat(text[numStart:numEnd], 64)
				if err != nil {
					continue
				}
				truth := groundTruth(rule.claimType, name, agg)
				if truth == nil && needsName(rule.claimType) {
					// Unrecognized department: prefer no claim, but still
					// consume the span so a looser rule cannot misread it.
					claimed[numStart] = true
					continue
				}
				claimed[numStart] = true
				claims = append(claims, datatypes.NumericClaim{
					Type:        rule.claimType,
					ValueFound:  value,
					GroundTruth: truth,
					IsMatch:     truth != nil && withinTolerance(value, *truth, rule.tolerance),
					Context:     strings.TrimSpace(text[loc[0]:loc[1]]),
				})
			}
		}
	}
	return claims
}

// claimGroups returns the number span and the optional department name from
// one match. Rules may put the name group before or after the number group.
func claimGroups(text string, pat *regexp.Regexp, loc []int) (numStart, numEnd int, name string) {
	numStart, numEnd = -1, -1
	for g := 1; g*2+1 < len(loc); g++ {
		s, e := loc[g*2], loc[g*2+1]
		if s < 0 {
			continue
		}
		frag := text[s:e]
		if isNumeric(frag) && numStart < 0 {
			numStart, numEnd = s, e
		} else if !isNumeric(frag) {
			name = strings.TrimSpace(frag)
		}
	}
	return numStart, numEnd, name
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// needsName reports whether a ClaimType is meaningless without a department
// name.
func needsName(t datatypes.ClaimType) bool {
	return t == datatypes.ClaimDepartmentCount || t == datatypes.ClaimPercentage
}

// groundTruth resolves the aggregate field a claim type is checked against.
// The switch is exhaustive over the closed ClaimType enum.
func groundTruth(t datatypes.ClaimType, name string, agg *datatypes.OrgAggregates) *float64 {
	f := func(v float64) *float64 { return &v }
	switch t {
	case datatypes.ClaimTotalHeadcount:
		return f(float64(agg.TotalHeadcount))
	case datatypes.ClaimActiveCount:
		return f(float64(agg.ActiveCount))
	case datatypes.ClaimDepartmentCount:
		if n, ok := agg.DepartmentCount(name); ok {
			return f(float64(n))
		}
		return nil
	case datatypes.ClaimAvgRating:
		if agg.AvgRating != nil {
			return f(*agg.AvgRating)
		}
		return nil
	case datatypes.ClaimEnpsScore:
		if agg.Enps != nil {
			return f(agg.Enps.Score)
		}
		return nil
	case datatypes.ClaimTurnoverRate:
		if agg.Attrition.TurnoverRate != nil {
			return f(*agg.Attrition.TurnoverRate)
		}
		return nil
	case datatypes.ClaimPercentage:
		for _, d := range agg.Departments {
			if strings.EqualFold(d.Name, name) {
				return f(d.Percent)
			}
		}
		return nil
	default:
		return nil
	}
}

func withinTolerance(found, truth, tolerance float64) bool {
	diff := found - truth
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// describeQuery renders the human-readable provenance string shown in the
// transparency view. It documents how the ground truth was computed; it is
// not re-executable.
func describeQuery(claims []datatypes.NumericClaim) string {
	if len(claims) == 0 {
		return ""
	}
	seen := make(map[datatypes.ClaimType]bool)
	var parts []string
	for _, c := range claims {
		if seen[c.Type] {
			continue
		}
		seen[c.Type] = true
		switch c.Type {
		case datatypes.ClaimTotalHeadcount:
			parts = append(parts, "SELECT COUNT(*) FROM employees")
		case datatypes.ClaimActiveCount:
			parts = append(parts, "SELECT COUNT(*) FROM employees WHERE status IN ('active','on_leave')")
		case datatypes.ClaimDepartmentCount, datatypes.ClaimPercentage:
			parts = append(parts, "SELECT department, COUNT(*) FROM employees WHERE status IN ('active','on_leave') GROUP BY department")
		case datatypes.ClaimAvgRating:
			parts = append(parts, "SELECT AVG(score) FROM latest_ratings")
		case datatypes.ClaimEnpsScore:
			parts = append(parts, "SELECT 100.0*(promoters-detractors)/COUNT(*) FROM enps_responses")
		case datatypes.ClaimTurnoverRate:
			parts = append(parts, "SELECT terminations/avg_headcount*annualization FROM attrition_ytd")
		}
	}
	return fmt.Sprintf("-- ground truth provenance\n%s;", strings.Join(parts, ";\n"))
}
