// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classify assigns a QueryType to each incoming message.
//
// Classification is lexical, not ML: keyword and shape checks over the
// lowercased message plus an employee-mention scan against the directory.
// It is a pure function of the message text, the UI-selected employee ID,
// and the directory snapshot, so it is trivially testable and its output is
// stable for the lifetime of a request.
package classify

import (
	"strings"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
)

// Marker vocabularies. Matched as substrings of the lowercased message;
// multi-word phrases keep their internal spacing.
var (
	aggregateMarkers = []string{
		"how many", "average", "total", "%", "percent", "headcount",
		"head count", "enps", "nps score", "distribution", "breakdown",
		"what is our", "overall",
	}
	listMarkers = []string{
		"list", "who are", "show me", "show all", "give me all", "name the",
		"which employees",
	}
	comparisonMarkers = []string{
		" vs ", " vs. ", "versus", "compare", "comparison", "compared to",
		"difference between",
	}
	attritionMarkers = []string{
		"attrition", "turnover", "terminated", "termination", "left the company",
		"quit", "resigned", "resignation", "churn", "retention",
	}
)

// Classifier assigns QueryTypes using the employee directory for mention
// detection.
type Classifier struct{}

// NewClassifier returns a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify maps one message to a QueryType.
//
// # Description
//
// Ties are broken in the fixed priority order Individual > Comparison >
// Attrition > Aggregate > List > General: a named individual must never be
// diluted into an aggregate answer just because the sentence also contains
// an aggregate phrase. Individual wins when the UI pre-selected an employee
// or when exactly one directory employee is unambiguously named; two or more
// named employees suggest a comparison instead.
func (c *Classifier) Classify(message, selectedEmployeeID string, directory []datatypes.Employee) datatypes.QueryType {
	lower := strings.ToLower(message)
	mentioned := mentionedEmployees(lower, directory)

	switch {
	case selectedEmployeeID != "" || len(mentioned) == 1:
		return datatypes.QueryIndividual
	case containsAny(lower, comparisonMarkers) || len(mentioned) >= 2:
		return datatypes.QueryComparison
	case containsAny(lower, attritionMarkers):
		return datatypes.QueryAttrition
	case containsAny(lower, aggregateMarkers):
		return datatypes.QueryAggregate
	case containsAny(lower, listMarkers):
		return datatypes.QueryList
	default:
		return datatypes.QueryGeneral
	}
}

func containsAny(lower string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// mentionedEmployees returns the IDs of distinct employees named in the
// message. Full-name matches always count; a bare last name counts only when
// exactly one directory employee carries it, otherwise the mention is
// ambiguous and ignored.
func mentionedEmployees(lower string, directory []datatypes.Employee) []string {
	lastNameCount := make(map[string]int, len(directory))
	for i := range directory {
		lastNameCount[strings.ToLower(directory[i].LastName)]++
	}

	seen := make(map[string]bool)
	var ids []string
	for i := range directory {
		emp := &directory[i]
		if seen[emp.ID] {
			continue
		}
		full := strings.ToLower(emp.FullName())
		last := strings.ToLower(emp.LastName)
		if containsWord(lower, full) ||
			(last != "" && lastNameCount[last] == 1 && containsWord(lower, last)) {
			seen[emp.ID] = true
			ids = append(ids, emp.ID)
		}
	}
	return ids
}

// containsWord reports whether phrase occurs in text on word boundaries, so
// "art" does not match inside "department".
func containsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for from := 0; ; {
		idx := strings.Index(text[from:], phrase)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(phrase)
		leftOK := start == 0 || !isWordByte(text[start-1])
		rightOK := end == len(text) || !isWordByte(text[end])
		if leftOK && rightOK {
			return true
		}
		from = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}
