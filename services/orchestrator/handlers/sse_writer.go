// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter writes Server-Sent Events to an HTTP response.
//
// # Description
//
// Abstracts the SSE wire format (event: type\ndata: json\n\n) away from the
// streaming handler so tests can capture events without a real connection.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the keep-alive ticker and
// the token pump write from different goroutines.
//
// # Assumptions
//
//   - Caller has set SSE headers via SetSSEHeaders before the first write.
type SSEWriter interface {
	// WriteEvent serializes one event and flushes it immediately.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteStatus writes a status event ("Retrieving context...").
	WriteStatus(message string) error

	// WriteToken streams one model token in display order.
	WriteToken(content string) error

	// WriteError informs the client of a failure. The message must already
	// be sanitized; internal details never reach the client.
	WriteError(errMsg string) error

	// WriteDone closes the logical stream, attaching the verification
	// result and retrieval metrics for the completed message. Call once.
	WriteDone(conversationID string, verification *datatypes.VerificationResult, metrics *datatypes.RetrievalMetrics) error

	// WriteKeepAlive sends an SSE comment to reset proxy idle timers.
	// Comments are ignored by clients and carry no event.
	WriteKeepAlive() error
}

// =============================================================================
// Implementation
// =============================================================================

// sseWriter implements SSEWriter over an http.ResponseWriter.
//
// # Thread Safety
//
// Thread-safe via mutex. Cannot be reused across requests.
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEWriter wraps w. Returns an error if w does not support http.Flusher,
// which SSE requires for immediate delivery.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

func (w *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

func (w *sseWriter) WriteStatus(message string) error {
	return w.WriteEvent(datatypes.StreamEvent{Type: datatypes.EventStatus, Content: message})
}

func (w *sseWriter) WriteToken(content string) error {
	return w.WriteEvent(datatypes.StreamEvent{Type: datatypes.EventToken, Content: content})
}

func (w *sseWriter) WriteError(errMsg string) error {
	return w.WriteEvent(datatypes.StreamEvent{Type: datatypes.EventError, Content: errMsg})
}

func (w *sseWriter) WriteDone(conversationID string, verification *datatypes.VerificationResult, metrics *datatypes.RetrievalMetrics) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:           datatypes.EventDone,
		ConversationID: conversationID,
		Verification:   verification,
		Metrics:        metrics,
	})
}

func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetSSEHeaders configures the response for SSE streaming. Must run before
// any body write; X-Accel-Buffering disables nginx buffering.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

var _ SSEWriter = (*sseWriter)(nil)
