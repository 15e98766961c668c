// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import (
	"testing"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
)

var directory = []datatypes.Employee{
	{ID: "1", FirstName: "Maria", LastName: "Santos", Role: "Staff Engineer", Department: "Engineering"},
	{ID: "2", FirstName: "James", LastName: "Okafor", Role: "Designer", Department: "Product"},
	{ID: "3", FirstName: "Wei", LastName: "Chen", Role: "Engineer", Department: "Engineering"},
	{ID: "4", FirstName: "Lena", LastName: "Chen", Role: "Recruiter", Department: "People"},
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		selectedID string
		want       datatypes.QueryType
	}{
		{"plain aggregate", "How many employees do we have?", "", datatypes.QueryAggregate},
		{"average rating", "What's the average performance rating?", "", datatypes.QueryAggregate},
		{"percent sign", "What % of the org is in Sales?", "", datatypes.QueryAggregate},
		{"list query", "List everyone in Engineering", "", datatypes.QueryList},
		{"who are", "Who are the designers?", "", datatypes.QueryList},
		{"comparison marker", "Compare Engineering and Product headcount", "", datatypes.QueryComparison},
		{"vs marker", "Engineering vs Product attrition", "", datatypes.QueryComparison},
		{"attrition marker", "What's our turnover this year?", "", datatypes.QueryAttrition},
		{"left the company", "How many people left the company?", "", datatypes.QueryAttrition},
		{"general fallthrough", "Tell me about our hiring philosophy", "", datatypes.QueryGeneral},

		// Individual outranks everything else in the sentence.
		{"named individual", "Is Maria Santos due for promotion?", "", datatypes.QueryIndividual},
		{"individual beats aggregate phrase", "How many reports does Maria Santos have?", "", datatypes.QueryIndividual},
		{"selected employee forces individual", "How is this person doing?", "2", datatypes.QueryIndividual},
		{"unique last name", "What is Okafor working on?", "", datatypes.QueryIndividual},

		// Two named employees read as a comparison.
		{"two names", "Maria Santos or James Okafor for the lead role?", "", datatypes.QueryComparison},

		// A shared last name alone is ambiguous, so not Individual.
		{"ambiguous last name", "How is Chen performing?", "", datatypes.QueryGeneral},
		{"full name disambiguates", "How is Wei Chen performing?", "", datatypes.QueryIndividual},
	}

	c := NewClassifier()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(tc.message, tc.selectedID, directory)
			if got != tc.want {
				t.Errorf("Classify(%q, %q) = %q, want %q", tc.message, tc.selectedID, got, tc.want)
			}
		})
	}
}

func TestClassifyNameBoundaries(t *testing.T) {
	// "art" inside "department" must not match an employee named Art.
	dir := []datatypes.Employee{{ID: "9", FirstName: "Art", LastName: "Art"}}
	c := NewClassifier()
	if got := c.Classify("Tell me about the department", "", dir); got == datatypes.QueryIndividual {
		t.Errorf("substring inside a word was treated as a name mention")
	}
}

func TestClassifyEmptyDirectory(t *testing.T) {
	c := NewClassifier()
	if got := c.Classify("how many employees?", "", nil); got != datatypes.QueryAggregate {
		t.Errorf("got %q, want aggregate", got)
	}
}
