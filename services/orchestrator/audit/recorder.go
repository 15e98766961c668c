// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package audit persists one row per completed exchange, fire-and-forget.
//
// Writes go through a buffered queue drained by a single worker goroutine,
// so a slow or failing store can never delay the user-visible response. A
// full queue drops the entry and logs; audit is best-effort by contract.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
)

// Sink is where audit rows land. *hrstore.Store satisfies it.
type Sink interface {
	PutAuditEntry(ctx context.Context, e *datatypes.AuditEntry) error
}

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
)

// Recorder accepts audit requests and writes them asynchronously.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
	queue  chan *datatypes.AuditEntry

	// mu orders Record against Close: the read side is held across the
	// queue send so the channel can never be closed mid-send.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewRecorder starts the worker goroutine. Call Close during shutdown to
// drain what is queued.
func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		sink:   sink,
		logger: logger,
		queue:  make(chan *datatypes.AuditEntry, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues one exchange for persistence. Never blocks and never
// returns an error to the caller; validation failures and a full queue are
// logged and dropped.
func (r *Recorder) Record(req *datatypes.CreateAuditRequest) {
	if err := req.Validate(); err != nil {
		r.logger.Warn("audit entry rejected", "error", err)
		return
	}
	entry := datatypes.NewAuditEntry(req)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("audit recorder closed, entry dropped",
			"conversation_id", req.ConversationID)
		return
	}
	select {
	case r.queue <- entry:
	default:
		r.logger.Warn("audit queue full, entry dropped",
			"conversation_id", req.ConversationID)
	}
}

// Close stops accepting entries and drains the queue. Record calls racing
// with or arriving after Close are dropped, not panicked.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.queue)
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.sink.PutAuditEntry(ctx, entry); err != nil {
			r.logger.Error("audit write failed", "entry_id", entry.ID, "error", err)
		}
		cancel()
	}
}
