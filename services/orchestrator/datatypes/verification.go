// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the answer-verification value objects: numeric claims
// extracted from the model's free-text answer and the per-request
// verification result attached to the completed assistant message.
package datatypes

// =============================================================================
// Claim Types
// =============================================================================

// ClaimType identifies which ground-truth field a numeric claim is checked
// against. Closed enum; the verifier's comparator switches exhaustively over
// these so a new claim type is a compile-time exercise.
type ClaimType string

const (
	ClaimTotalHeadcount  ClaimType = "total_headcount"
	ClaimActiveCount     ClaimType = "active_count"
	ClaimDepartmentCount ClaimType = "department_count"
	ClaimAvgRating       ClaimType = "avg_rating"
	ClaimEnpsScore       ClaimType = "enps_score"
	ClaimTurnoverRate    ClaimType = "turnover_rate"
	ClaimPercentage      ClaimType = "percentage"
)

// NumericClaim is one detected quantity in the model's answer.
//
// GroundTruth is nil when the corresponding aggregate was unavailable (e.g.,
// an unrecognized department name); such claims never match. IsMatch is
// computed by the verifier with a type-specific tolerance, never asserted.
type NumericClaim struct {
	Type        ClaimType `json:"claim_type"`
	ValueFound  float64   `json:"value_found"`
	GroundTruth *float64  `json:"ground_truth,omitempty"`
	IsMatch     bool      `json:"is_match"`

	// Context is the matched text fragment, kept for the transparency view.
	Context string `json:"context,omitempty"`
}

// =============================================================================
// Verification Result
// =============================================================================

// VerificationStatus is the overall outcome of checking one answer.
type VerificationStatus string

const (
	// StatusVerified means at least one claim was extracted and all matched.
	StatusVerified VerificationStatus = "verified"

	// StatusPartialMatch means some but not all claims matched.
	StatusPartialMatch VerificationStatus = "partial_match"

	// StatusUnverified means no claims matched, or an aggregate-flavored
	// answer yielded zero extractable claims.
	StatusUnverified VerificationStatus = "unverified"

	// StatusNotApplicable means the query was not an aggregate query; the
	// UI badge is suppressed.
	StatusNotApplicable VerificationStatus = "not_applicable"
)

// VerificationResult is attached to the completed assistant message once the
// stream's done signal fires.
//
// OverallStatus is always derived from Claims via DeriveOverallStatus, never
// set independently. SQLQuery is a human-readable representation of how the
// ground truth was produced, shown on demand; it is documentation, not a
// re-executable query.
type VerificationResult struct {
	IsAggregateQuery bool               `json:"is_aggregate_query"`
	Claims           []NumericClaim     `json:"claims"`
	OverallStatus    VerificationStatus `json:"overall_status"`
	SQLQuery         string             `json:"sql_query,omitempty"`
}

// DeriveOverallStatus computes the overall status from the claim set.
//
// Priority order, reproduced exactly because the UI badge color depends on
// it: NotApplicable when not an aggregate query; Verified when at least one
// claim exists and all match; PartialMatch when some match; Unverified when
// none match or zero claims were extracted.
func DeriveOverallStatus(isAggregateQuery bool, claims []NumericClaim) VerificationStatus {
	if !isAggregateQuery {
		return StatusNotApplicable
	}
	if len(claims) == 0 {
		return StatusUnverified
	}
	matched := 0
	for _, c := range claims {
		if c.IsMatch {
			matched++
		}
	}
	switch {
	case matched == len(claims):
		return StatusVerified
	case matched > 0:
		return StatusPartialMatch
	default:
		return StatusUnverified
	}
}

// NewVerificationResult builds a result with the status derived from the
// claims. This is the only constructor the pipeline uses, which keeps the
// status/claims invariant true by construction.
func NewVerificationResult(isAggregateQuery bool, claims []NumericClaim, sqlQuery string) *VerificationResult {
	if claims == nil {
		claims = []NumericClaim{}
	}
	return &VerificationResult{
		IsAggregateQuery: isAggregateQuery,
		Claims:           claims,
		OverallStatus:    DeriveOverallStatus(isAggregateQuery, claims),
		SQLQuery:         sqlQuery,
	}
}
