// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up in
// database keys or queries. Using these validators keeps junk and injection
// attempts out of the record store.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// periodPattern matches valid review period labels.
// Allows: a four-digit year alone (2025), a quarter (2025-Q1..Q4),
// a half (2025-H1..H2), or a month (2025-01..12).
var periodPattern = regexp.MustCompile(`^\d{4}(-(Q[1-4]|H[1-2]|0[1-9]|1[0-2]))?$`)

// ValidatePeriod validates a performance review period label.
//
// Valid periods:
//   - "2025" (annual)
//   - "2025-Q1" through "2025-Q4" (quarterly)
//   - "2025-H1", "2025-H2" (semi-annual)
//   - "2025-01" through "2025-12" (monthly)
//
// Returns an error if the period is invalid.
//
// Example:
//
//	if err := validation.ValidatePeriod(period); err != nil {
//	    return fmt.Errorf("invalid period: %w", err)
//	}
//	// Safe to use as part of a store key
func ValidatePeriod(period string) error {
	if period == "" {
		return fmt.Errorf("period cannot be empty")
	}

	if !periodPattern.MatchString(period) {
		return fmt.Errorf("invalid period format: %q (want YYYY, YYYY-Qn, YYYY-Hn, or YYYY-MM)", period)
	}

	return nil
}

// ValidatePeriods validates multiple period labels.
// Returns an error listing all invalid periods if any fail validation.
func ValidatePeriods(periods []string) error {
	var invalid []string
	for _, p := range periods {
		if err := ValidatePeriod(p); err != nil {
			invalid = append(invalid, p)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid periods: %v", invalid)
	}
	return nil
}

// SanitizePeriod normalizes and validates a period label.
// Returns the uppercase trimmed period if valid, or an error if invalid.
//
// Use this when you need both validation and normalization:
//
//	safePeriod, err := validation.SanitizePeriod(userInput)
//	if err != nil {
//	    return err
//	}
//	// safePeriod is uppercase and validated
func SanitizePeriod(period string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(period))
	if err := ValidatePeriod(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
