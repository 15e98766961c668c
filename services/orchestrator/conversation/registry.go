// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation tracks the in-flight stream per conversation so a new
// conversation or a deletion can cancel an abandoned response.
//
// The invariant the registry protects: chunks, verification, and audit rows
// must never attach to a conversation the user has already left. Each
// conversation has at most one live stream; starting a second one cancels
// the first.
package conversation

import (
	"context"
	"log/slog"
	"sync"
)

// stream is one live registration. Identified by pointer so a release from a
// superseded stream cannot evict its successor.
type stream struct {
	cancel context.CancelFunc
}

// Registry maps conversation IDs to their active stream.
//
// # Thread Safety
//
// Safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	active map[string]*stream
	logger *slog.Logger
	closed bool
}

// NewRegistry returns an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		active: make(map[string]*stream),
		logger: logger,
	}
}

// Begin registers a new stream for conversationID and returns its context.
//
// Any stream already live for the same conversation is cancelled first: the
// user sent a new message (or recreated the conversation), so the old
// response is abandoned. The returned release function must be called when
// the stream finishes, successfully or not.
func (r *Registry) Begin(parent context.Context, conversationID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	s := &stream{cancel: cancel}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return ctx, func() {}
	}
	if prev, ok := r.active[conversationID]; ok {
		r.logger.Info("superseding in-flight stream", "conversation_id", conversationID)
		prev.cancel()
	}
	r.active[conversationID] = s
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		if r.active[conversationID] == s {
			delete(r.active, conversationID)
		}
		r.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// Cancel aborts the live stream for conversationID, if any. Returns whether
// a stream was actually cancelled.
func (r *Registry) Cancel(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.active[conversationID]
	if !ok {
		return false
	}
	delete(r.active, conversationID)
	s.cancel()
	r.logger.Info("stream cancelled", "conversation_id", conversationID)
	return true
}

// ActiveCount reports how many streams are live, for the health surface.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Close cancels every live stream and rejects new registrations. Used at
// shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, s := range r.active {
		s.cancel()
		delete(r.active, id)
	}
}
