// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains the persisted workforce records: employees, performance
// ratings, eNPS survey responses, cross-conversation memory summaries, and
// the company profile. All of these are read by the message pipeline; only
// conversation summaries are written by the core's sibling summary generator.
package datatypes

import (
	"time"
)

// =============================================================================
// Employee Records
// =============================================================================

// EmployeeStatus is the employment state of a workforce record.
type EmployeeStatus string

const (
	// StatusActive marks a currently employed record.
	StatusActive EmployeeStatus = "active"

	// StatusTerminated marks a record whose employment has ended.
	StatusTerminated EmployeeStatus = "terminated"

	// StatusOnLeave marks an employed record currently on leave.
	StatusOnLeave EmployeeStatus = "on_leave"
)

// TerminationType distinguishes voluntary from involuntary departures for
// attrition reporting.
type TerminationType string

const (
	TerminationVoluntary   TerminationType = "voluntary"
	TerminationInvoluntary TerminationType = "involuntary"
)

// Employee is one workforce record as stored.
//
// # Description
//
// Employee is the canonical persisted shape. The pipeline never sends this
// struct to the model directly; it is denormalized into an EmployeeContext
// (manager resolved by name, rating trend derived) per request.
//
// # Fields
//
//   - ID: UUID v4, primary key.
//   - FirstName/LastName: identity fields used for name-mention retrieval.
//   - Role: job title (e.g., "Staff Engineer").
//   - Department: org unit name used for department aggregates.
//   - ManagerID: employee ID of the direct manager, empty for top of chain.
//   - Status: active, terminated, or on_leave.
//   - HireDate: start of employment, used for tenure calculations.
//   - TerminationDate: set only when Status is terminated.
//   - TerminationType: voluntary/involuntary, set only when terminated.
//   - UpdatedAt: last mutation time; used as the retrieval tiebreaker.
type Employee struct {
	ID              string          `json:"id"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	Role            string          `json:"role"`
	Department      string          `json:"department"`
	ManagerID       string          `json:"manager_id,omitempty"`
	Status          EmployeeStatus  `json:"status"`
	HireDate        time.Time       `json:"hire_date"`
	TerminationDate *time.Time      `json:"termination_date,omitempty"`
	TerminationType TerminationType `json:"termination_type,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// FullName returns "First Last" for prompt rendering and mention matching.
func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// IsActive reports whether the record counts toward the current org view.
// On-leave employees are still employed and count as active for department
// percentage purposes.
func (e *Employee) IsActive() bool {
	return e.Status == StatusActive || e.Status == StatusOnLeave
}

// =============================================================================
// Performance and Survey Records
// =============================================================================

// PerformanceRating is one review cycle score for an employee.
//
// Scores are on a 1.0-5.0 scale. Period is a human label like "2025-H1".
type PerformanceRating struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	Score      float64   `json:"score"`
	Period     string    `json:"period"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EnpsResponse is one 0-10 survey answer from an employee.
type EnpsResponse struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	Score      int       `json:"score"`
	SurveyDate time.Time `json:"survey_date"`
}

// EnpsCategory buckets a 0-10 response for Net Promoter scoring.
type EnpsCategory string

const (
	EnpsPromoter  EnpsCategory = "promoter"
	EnpsPassive   EnpsCategory = "passive"
	EnpsDetractor EnpsCategory = "detractor"
)

// GetEnpsCategory classifies a 0-10 score. Boundaries are exact:
// 9-10 promoter, 7-8 passive, 0-6 detractor.
func GetEnpsCategory(score int) EnpsCategory {
	switch {
	case score >= 9:
		return EnpsPromoter
	case score >= 7:
		return EnpsPassive
	default:
		return EnpsDetractor
	}
}

// =============================================================================
// Conversation Memory
// =============================================================================

// ConversationSummary is a compressed record of one past conversation,
// written by the summary generator and read here as cross-conversation
// memory for retrieval.
type ConversationSummary struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Summary        string    `json:"summary"`
	Topics         []string  `json:"topics,omitempty"`
	EmployeeIDs    []string  `json:"employee_ids,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// =============================================================================
// Company Profile
// =============================================================================

// CompanyProfile is the single stored description of the organization,
// rendered into the prompt header so the model knows whose workforce it is
// answering about.
type CompanyProfile struct {
	Name         string `json:"name"`
	Industry     string `json:"industry,omitempty"`
	Mission      string `json:"mission,omitempty"`
	Headquarters string `json:"headquarters,omitempty"`
	FoundedYear  int    `json:"founded_year,omitempty"`
}
