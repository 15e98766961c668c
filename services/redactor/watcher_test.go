// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package redactor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const badgeRules = `classifications:
  - name: badge
    description: "Internal badge number"
    priority: 50
    placeholder: "[REDACTED-BADGE]"
    label_singular: "badge number"
    label_plural: "badge numbers"
    patterns:
      - id: BADGE_PREFIXED
        description: "BDG- prefixed badge id"
        regex: 'BDG-\d{4}'
        confidence: high
`

func TestWatchOverrideInstallsAndReloadsRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(badgeRules), 0o600))

	engine, err := NewEngine()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- engine.WatchOverride(ctx, path, nil) }()

	// Startup load installs the override before the watch loop begins.
	require.Eventually(t, func() bool {
		return engine.Scan("badge BDG-1234 lost").HadPII
	}, 2*time.Second, 20*time.Millisecond, "override not installed at startup")

	// The override replaces the whole table, embedded rules included.
	assert.False(t, engine.Scan("my ssn is 536-90-4399").HadPII)

	// Rewriting the file swaps the table in place.
	rewritten := strings.Replace(badgeRules, `BDG-\d{4}`, `TAG-\d{4}`, 1)
	require.NoError(t, os.WriteFile(path, []byte(rewritten), 0o600))
	require.Eventually(t, func() bool {
		return engine.Scan("asset TAG-7777 missing").HadPII
	}, 2*time.Second, 20*time.Millisecond, "rewritten rules file not reloaded")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchOverrideKeepsPreviousRulesOnBrokenEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(badgeRules), 0o600))

	engine, err := NewEngine()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- engine.WatchOverride(ctx, path, nil) }()

	require.Eventually(t, func() bool {
		return engine.Scan("badge BDG-1234").HadPII
	}, 2*time.Second, 20*time.Millisecond)

	// A broken edit is rejected; the previous table stays installed.
	require.NoError(t, os.WriteFile(path, []byte("classifications: {not valid"), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.True(t, engine.Scan("badge BDG-1234").HadPII,
		"previous rules must survive a malformed rewrite")

	cancel()
	<-done
}

func TestWatchOverrideMissingPathFails(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	err = engine.WatchOverride(context.Background(),
		filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}
