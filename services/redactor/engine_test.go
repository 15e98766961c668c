// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package redactor

import (
	"strings"
	"sync"
	"testing"
)

func TestEngineScan(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("Failed to initialize engine: %v", err)
	}

	tests := []struct {
		name          string
		input         string
		wantPII       bool
		wantSummary   string
		wantRedacted  string
		wantMatchType string
	}{
		{
			name:    "safe string",
			input:   "How many active employees do we have?",
			wantPII: false,
		},
		{
			name:          "ssn embedded in sentence",
			input:         "my SSN is 123-45-6789, can you help",
			wantPII:       true,
			wantSummary:   "Redacted: 1 SSN",
			wantRedacted:  "my SSN is [REDACTED-SSN], can you help",
			wantMatchType: "ssn",
		},
		{
			name:          "grouped credit card",
			input:         "charge it to 4111-1111-1111-1111 please",
			wantPII:       true,
			wantSummary:   "Redacted: 1 credit card",
			wantRedacted:  "charge it to [REDACTED-CREDIT-CARD] please",
			wantMatchType: "credit_card",
		},
		{
			name:          "bank account with keyword",
			input:         "wire to account number 123456789012",
			wantPII:       true,
			wantSummary:   "Redacted: 1 bank account",
			wantRedacted:  "wire to account number [REDACTED-BANK-ACCOUNT]",
			wantMatchType: "bank_account",
		},
		{
			name:        "multiple types",
			input:       "ssn 999-88-7777 and cards 4111-1111-1111-1111 and 5500-0000-0000-0004",
			wantPII:     true,
			wantSummary: "Redacted: 1 SSN, 2 credit cards",
		},
		{
			name:    "plain counts are not bank accounts",
			input:   "we hired 103 people and 97 are active",
			wantPII: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := engine.Scan(tc.input)
			if res.HadPII != tc.wantPII {
				t.Fatalf("HadPII = %v, want %v (redacted: %q)", res.HadPII, tc.wantPII, res.RedactedText)
			}
			if !tc.wantPII {
				if res.RedactedText != tc.input {
					t.Errorf("safe input was modified: %q", res.RedactedText)
				}
				return
			}
			if tc.wantSummary != "" && res.Summary != tc.wantSummary {
				t.Errorf("Summary = %q, want %q", res.Summary, tc.wantSummary)
			}
			if tc.wantRedacted != "" && res.RedactedText != tc.wantRedacted {
				t.Errorf("RedactedText = %q, want %q", res.RedactedText, tc.wantRedacted)
			}
			if tc.wantMatchType != "" {
				if len(res.Matches) != 1 {
					t.Fatalf("expected 1 match, got %d", len(res.Matches))
				}
				if res.Matches[0].Classification != tc.wantMatchType {
					t.Errorf("match classification = %q, want %q", res.Matches[0].Classification, tc.wantMatchType)
				}
			}
		})
	}
}

// Redacted output must contain no digit of the original sensitive value.
func TestScanNeverLeaksDigits(t *testing.T) {
	engine, _ := NewEngine()
	res := engine.Scan("my SSN is 123-45-6789, can you help")
	for _, fragment := range []string{"123", "45", "6789"} {
		if strings.Contains(res.RedactedText, fragment) {
			t.Errorf("redacted text leaks %q: %q", fragment, res.RedactedText)
		}
	}
}

// Scanning already-redacted text changes nothing.
func TestScanIdempotent(t *testing.T) {
	engine, _ := NewEngine()
	first := engine.Scan("ssn 123-45-6789 card 4111-1111-1111-1111 account number 987654321000")
	second := engine.Scan(first.RedactedText)
	if second.HadPII {
		t.Fatalf("second scan found PII in %q", first.RedactedText)
	}
	if second.RedactedText != first.RedactedText {
		t.Errorf("second scan modified text: %q -> %q", first.RedactedText, second.RedactedText)
	}
}

// Match offsets refer to the original text, and matched content is not kept.
func TestMatchOffsets(t *testing.T) {
	engine, _ := NewEngine()
	input := "my SSN is 123-45-6789, can you help"
	res := engine.Scan(input)
	if len(res.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(res.Matches))
	}
	m := res.Matches[0]
	if input[m.Start:m.End] != "123-45-6789" {
		t.Errorf("offsets [%d:%d] select %q in original", m.Start, m.End, input[m.Start:m.End])
	}
}

func TestOverlapPrefersEarliestLongest(t *testing.T) {
	engine, _ := NewEngine()
	// 15- and 16-digit prefixes of the same run both match the contiguous
	// card pattern; only one placeholder may survive.
	res := engine.Scan("card 4111111111111111 on file")
	if !res.HadPII {
		t.Fatal("expected PII")
	}
	if len(res.Matches) != 1 {
		t.Fatalf("overlapping candidates not collapsed: %d matches", len(res.Matches))
	}
	if strings.Count(res.RedactedText, "[REDACTED-CREDIT-CARD]") != 1 {
		t.Errorf("expected exactly one placeholder: %q", res.RedactedText)
	}
}

func TestEngineConcurrency(t *testing.T) {
	engine, _ := NewEngine()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = engine.Scan("my SSN is 123-45-6789")
			}
		}()
	}
	wg.Wait()
}

func TestLoadRejectsNonIdempotentTable(t *testing.T) {
	e := &Engine{}
	bad := []byte(`
classifications:
  - name: digits
    priority: 10
    placeholder: "[HIDDEN-123]"
    label_singular: "number"
    label_plural: "numbers"
    patterns:
      - id: ANY_NUMBER
        description: "any number"
        regex: '\d+'
        confidence: low
`)
	if err := e.load(bad); err == nil {
		t.Fatal("expected load to reject placeholder that rematches its own pattern")
	}
}
