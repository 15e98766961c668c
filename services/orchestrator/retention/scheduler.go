// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retention runs background cleanup of aged records.
//
// Audit rows and conversation summaries accumulate forever on a
// single-user machine unless something prunes them. The scheduler in this
// package periodically deletes entries older than the configured windows.
// Retention is deliberately conservative: nothing under 30 days is ever
// deleted, and a zero window disables pruning for that record type.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// minWindow is the floor for any retention window. Shorter windows are
// clamped up so a misconfigured deployment cannot silently destroy its
// audit trail.
const minWindow = 30 * 24 * time.Hour

// PurgeStore is the slice of the record store the scheduler needs.
// *hrstore.Store satisfies it.
type PurgeStore interface {
	PurgeAuditEntriesBefore(ctx context.Context, cutoff time.Time) (int, error)
	PurgeSummariesBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Config holds configuration for the retention scheduler.
type Config struct {
	// Interval is how often cleanup runs. Default: 12 hours.
	Interval time.Duration

	// AuditWindow is how long audit rows are kept. Zero disables audit
	// pruning. Values under 30 days are clamped to 30 days.
	AuditWindow time.Duration

	// SummaryWindow is how long conversation summaries are kept. Zero
	// disables summary pruning. Values under 30 days are clamped.
	SummaryWindow time.Duration
}

// DefaultConfig returns production defaults: cleanup twice a day, audit
// rows kept for a year, summaries for 90 days.
func DefaultConfig() Config {
	return Config{
		Interval:      12 * time.Hour,
		AuditWindow:   365 * 24 * time.Hour,
		SummaryWindow: 90 * 24 * time.Hour,
	}
}

// Result summarizes one cleanup cycle.
type Result struct {
	AuditDeleted   int
	SummaryDeleted int
	Duration       time.Duration
}

// Scheduler periodically prunes aged records from the store.
//
// # Thread Safety
//
// All public methods are safe for concurrent use. Start/Stop transitions
// are protected by a mutex; only one loop runs at a time.
type Scheduler struct {
	store  PurgeStore
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	done    chan struct{}
	running bool
}

// NewScheduler creates a retention scheduler. Call Start to begin pruning.
func NewScheduler(store PurgeStore, config Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.AuditWindow > 0 && config.AuditWindow < minWindow {
		config.AuditWindow = minWindow
	}
	if config.SummaryWindow > 0 && config.SummaryWindow < minWindow {
		config.SummaryWindow = minWindow
	}
	return &Scheduler{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Start begins the background cleanup loop. Returns an error if the
// scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("retention scheduler starting",
		"interval", s.config.Interval.String(),
		"audit_window", s.config.AuditWindow.String(),
		"summary_window", s.config.SummaryWindow.String(),
	)

	go s.runLoop(ctx)
	return nil
}

// Stop signals the loop to exit. Safe to call multiple times. Does not
// interrupt an in-progress purge.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.done)
	s.running = false
	s.logger.Info("retention scheduler stopped")
}

// RunNow performs one cleanup cycle immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (Result, error) {
	return s.runCycle(ctx)
}

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Initial cleanup on start, then on every tick.
	s.executeCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.executeCycle(ctx)
		}
	}
}

func (s *Scheduler) executeCycle(ctx context.Context) {
	result, err := s.runCycle(ctx)
	if err != nil {
		s.logger.Error("retention cycle failed", "error", err)
		return
	}
	if result.AuditDeleted > 0 || result.SummaryDeleted > 0 {
		s.logger.Info("retention cycle completed",
			"audit_deleted", result.AuditDeleted,
			"summaries_deleted", result.SummaryDeleted,
			"duration_ms", result.Duration.Milliseconds(),
		)
	} else {
		s.logger.Debug("retention cycle completed, nothing to prune")
	}
}

func (s *Scheduler) runCycle(ctx context.Context) (Result, error) {
	start := time.Now()
	var result Result

	if s.config.AuditWindow > 0 {
		deleted, err := s.store.PurgeAuditEntriesBefore(ctx, start.Add(-s.config.AuditWindow))
		if err != nil {
			return result, fmt.Errorf("audit purge failed: %w", err)
		}
		result.AuditDeleted = deleted
	}

	if s.config.SummaryWindow > 0 {
		deleted, err := s.store.PurgeSummariesBefore(ctx, start.Add(-s.config.SummaryWindow))
		if err != nil {
			return result, fmt.Errorf("summary purge failed: %w", err)
		}
		result.SummaryDeleted = deleted
	}

	result.Duration = time.Since(start)
	return result, nil
}
