// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package redactor

import (
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

type ConfidenceLevel string

const (
	Low    ConfidenceLevel = "low"
	Medium ConfidenceLevel = "medium"
	High   ConfidenceLevel = "high"
)

// RuleFile is the on-disk/embedded shape of the redaction rule table.
type RuleFile struct {
	Classifications []Classification `yaml:"classifications"`
}

// Classification is one PII type: its detectors, the placeholder matches
// are replaced with, and the labels used in the human summary.
type Classification struct {
	Name          string    `yaml:"name"`
	Description   string    `yaml:"description"`
	Priority      int       `yaml:"priority"`
	Placeholder   string    `yaml:"placeholder"`
	LabelSingular string    `yaml:"label_singular"`
	LabelPlural   string    `yaml:"label_plural"`
	Patterns      []Pattern `yaml:"patterns"`
}

// Pattern is a single detector regex within a classification.
type Pattern struct {
	Id              string          `yaml:"id"`
	Description     string          `yaml:"description"`
	Regex           string          `yaml:"regex"`
	Confidence      ConfidenceLevel `yaml:"confidence"`
	compiledPattern *regexp.Regexp  `yaml:"-"`
}

func (c *ConfidenceLevel) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	incoming := ConfidenceLevel(s)
	switch incoming {
	case High, Medium, Low:
		*c = incoming
		return nil
	default:
		return fmt.Errorf("invalid value for Confidence: %q", incoming)
	}
}

// CompileRegexes compiles every pattern in the file. Placeholders must not
// themselves match any pattern, otherwise redaction would not be idempotent;
// that property is enforced here at load time rather than trusted.
func (f *RuleFile) CompileRegexes() error {
	for i := range f.Classifications {
		for j := range f.Classifications[i].Patterns {
			pattern := &f.Classifications[i].Patterns[j]
			re, err := regexp.Compile(pattern.Regex)
			if err != nil {
				return fmt.Errorf("failed to compile the regex %s: %w", pattern.Regex, err)
			}
			pattern.compiledPattern = re
		}
	}
	for i := range f.Classifications {
		placeholder := f.Classifications[i].Placeholder
		if placeholder == "" {
			return fmt.Errorf("classification %q has no placeholder", f.Classifications[i].Name)
		}
		for _, c := range f.Classifications {
			for _, p := range c.Patterns {
				if p.compiledPattern.MatchString(placeholder) {
					return fmt.Errorf("placeholder %q matches pattern %s; redaction would not be idempotent",
						placeholder, p.Id)
				}
			}
		}
	}
	return nil
}

// SortByPriority orders classifications from highest to lowest priority.
func (f *RuleFile) SortByPriority() {
	sort.Slice(f.Classifications, func(i, j int) bool {
		return f.Classifications[i].Priority > f.Classifications[j].Priority
	})
}

// =============================================================================
// Scan Results
// =============================================================================

// Match is one redacted span. Only offsets into the original text and the
// classification name are kept for UI highlighting; the matched value is
// never retained.
type Match struct {
	Start          int    `json:"start"`
	End            int    `json:"end"`
	Classification string `json:"classification"`
	PatternId      string `json:"pattern_id"`
}

// RedactionResult is the outcome of scanning one outgoing message.
//
// RedactedText is safe to send and to log. Summary is a short human string
// like "Redacted: 1 SSN, 2 credit cards", empty when HadPII is false.
type RedactionResult struct {
	RedactedText string  `json:"redacted_text"`
	Matches      []Match `json:"matches"`
	HadPII       bool    `json:"had_pii"`
	Summary      string  `json:"summary,omitempty"`
}
