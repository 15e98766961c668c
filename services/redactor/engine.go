// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package redactor scans outgoing user text for sensitive patterns and
// replaces matches with typed placeholders before anything leaves the local
// machine.
//
// Detection is a rule table, not control flow: the embedded
// pii_patterns.yaml maps pattern -> classification -> placeholder, so
// extending coverage is a data change. The redactor is a safety net, not a
// gate: callers must fail open (send the original text) if scanning itself
// fails, and must log that distinctly from a clean scan.
package redactor

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/beaconhq/BeaconLocal/services/redactor/enforcement"
	"gopkg.in/yaml.v3"
)

// Engine is the main entry point for PII redaction. It holds the compiled
// rule table and is safe for concurrent use; rule reloads swap the table
// atomically under a write lock.
type Engine struct {
	mu          sync.RWMutex
	classifiers []Classification
}

// NewEngine initializes an Engine from the rules embedded in the binary.
//
// It unmarshals the embedded YAML, compiles all regexes, verifies the
// idempotence property (no placeholder matches any pattern), and sorts
// classifications by priority. Returns an error if the embedded table is
// malformed; that is a build defect, so callers typically treat it as fatal
// at startup.
func NewEngine() (*Engine, error) {
	e := &Engine{}
	if err := e.load(enforcement.PIIPatterns); err != nil {
		return nil, fmt.Errorf("embedded rule table: %w", err)
	}
	return e, nil
}

// load parses, compiles, and installs a rule table. Used by NewEngine and by
// the override watcher.
func (e *Engine) load(raw []byte) error {
	var file RuleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("failed to unmarshal the redaction rule file: %w", err)
	}
	if err := file.CompileRegexes(); err != nil {
		return fmt.Errorf("failed to compile a regex: %w", err)
	}
	file.SortByPriority()

	e.mu.Lock()
	e.classifiers = file.Classifications
	e.mu.Unlock()
	return nil
}

// span is an internal match candidate before overlap resolution.
type span struct {
	start, end int
	classIdx   int
	patternId  string
}

// Scan runs every detector over text and returns the redacted form.
//
// # Description
//
// Overlapping matches are resolved by preferring the earliest match, and
// among matches starting at the same position, the longest. Each surviving
// match is replaced with its classification's placeholder. Match offsets in
// the result refer to the original text; the matched values themselves are
// never retained.
//
// Scanning already-redacted text is a no-op: placeholders contain no digits
// and the rule loader rejects tables where a placeholder would rematch.
func (e *Engine) Scan(text string) *RedactionResult {
	e.mu.RLock()
	classifiers := e.classifiers
	e.mu.RUnlock()

	var candidates []span
	for ci, classifier := range classifiers {
		for _, pattern := range classifier.Patterns {
			for _, loc := range pattern.compiledPattern.FindAllStringSubmatchIndex(text, -1) {
				start, end := loc[0], loc[1]
				// A capture group narrows the redacted span to the sensitive
				// digits (e.g. keeps the "account number" keyword visible).
				if len(loc) > 3 && loc[2] >= 0 {
					start, end = loc[2], loc[3]
				}
				candidates = append(candidates, span{start: start, end: end, classIdx: ci, patternId: pattern.Id})
			}
		}
	}

	if len(candidates) == 0 {
		return &RedactionResult{RedactedText: text}
	}

	// Earliest first; at equal start the longest wins, then the higher
	// priority classification (classifiers are already priority sorted).
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].start != candidates[j].start {
			return candidates[i].start < candidates[j].start
		}
		if candidates[i].end != candidates[j].end {
			return candidates[i].end > candidates[j].end
		}
		return candidates[i].classIdx < candidates[j].classIdx
	})

	var kept []span
	lastEnd := -1
	for _, c := range candidates {
		if c.start < lastEnd {
			continue // overlaps an earlier, already-kept match
		}
		kept = append(kept, c)
		lastEnd = c.end
	}

	var sb strings.Builder
	matches := make([]Match, 0, len(kept))
	counts := make(map[int]int)
	cursor := 0
	for _, k := range kept {
		sb.WriteString(text[cursor:k.start])
		sb.WriteString(classifiers[k.classIdx].Placeholder)
		cursor = k.end
		counts[k.classIdx]++
		matches = append(matches, Match{
			Start:          k.start,
			End:            k.end,
			Classification: classifiers[k.classIdx].Name,
			PatternId:      k.patternId,
		})
	}
	sb.WriteString(text[cursor:])

	return &RedactionResult{
		RedactedText: sb.String(),
		Matches:      matches,
		HadPII:       true,
		Summary:      buildSummary(classifiers, counts),
	}
}

// buildSummary renders "Redacted: 1 SSN, 2 credit cards" in priority order.
func buildSummary(classifiers []Classification, counts map[int]int) string {
	var parts []string
	for ci := range classifiers {
		n := counts[ci]
		if n == 0 {
			continue
		}
		label := classifiers[ci].LabelSingular
		if n != 1 {
			label = classifiers[ci].LabelPlural
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, label))
	}
	return "Redacted: " + strings.Join(parts, ", ")
}

// Classifications returns a snapshot of the installed rule table, for
// admin/debug endpoints.
func (e *Engine) Classifications() []Classification {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Classification, len(e.classifiers))
	copy(out, e.classifiers)
	return out
}
