// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/beaconhq/BeaconLocal/services/llm"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// keepAliveInterval paces SSE comments to stay under proxy idle timeouts
// (60s for nginx/ALB defaults).
const keepAliveInterval = 15 * time.Second

// HandleChatStream processes POST /v1/chat/stream.
//
// # Description
//
// Runs the full pipeline in-process. The flow is:
//  1. Parse and validate the request
//  2. Redact the outgoing message (fail-open)
//  3. Register the stream; a second stream on the same conversation
//     supersedes the first
//  4. Build the prompt (classification, aggregates, retrieval, assembly)
//  5. Stream model tokens over SSE, accumulating for verification
//  6. Verify the complete answer against the prompt's aggregates snapshot
//  7. Fire-and-forget audit, then emit the done event
//
// Errors after streaming starts are sent as SSE error events, not HTTP
// statuses.
func (h *PipelineHandler) HandleChatStream(c *gin.Context) {
	start := time.Now()
	ctx, span := h.tracer.Start(c.Request.Context(), "HandleChatStream")
	defer span.End()

	if h.llmClient == nil {
		h.recordRequest("chat_stream", false)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model backend not configured"})
		return
	}

	var req datatypes.ChatStreamRequest
	if err := c.BindJSON(&req); err != nil {
		span.RecordError(err)
		h.recordRequest("chat_stream", false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		h.recordRequest("chat_stream", false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}
	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.String("conversation.id", req.ConversationID),
	)

	// Redact before the message reaches retrieval, the model, or audit.
	scan := h.pipeline.ScanPII(req.Message)
	redactedMessage := scan.RedactedText

	// A new stream on the same conversation cancels the previous one.
	streamCtx, release := h.conversations.Begin(ctx, req.ConversationID)
	defer release()

	if h.metrics != nil {
		h.metrics.ActiveStreams.Inc()
		defer h.metrics.ActiveStreams.Dec()
	}

	SetSSEHeaders(c.Writer)
	sse, err := NewSSEWriter(c.Writer)
	if err != nil {
		span.RecordError(err)
		h.recordRequest("chat_stream", false)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	if err := sse.WriteStatus("Retrieving context..."); err != nil {
		span.RecordError(err)
		return
	}

	keepAliveDone := make(chan struct{})
	go h.runKeepAlive(streamCtx, sse, keepAliveDone)
	defer close(keepAliveDone)

	resp, err := h.pipeline.BuildPrompt(streamCtx, &datatypes.BuildPromptRequest{
		RequestID:          req.RequestID,
		ConversationID:     req.ConversationID,
		Message:            redactedMessage,
		SelectedEmployeeID: req.SelectedEmployeeID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prompt build failed")
		h.logger.Error("prompt build failed during stream",
			"request_id", req.RequestID, "error", err)
		h.observeStream("error", start)
		h.recordRequest("chat_stream", false)
		_ = sse.WriteError("Failed to build context")
		return
	}
	span.SetAttributes(attribute.String("query.type", string(resp.QueryType)))

	if err := sse.WriteStatus("Generating response..."); err != nil {
		span.RecordError(err)
		return
	}

	// Accumulate tokens for verification and audit. Without an accumulator
	// the stream still runs; verification and audit are skipped.
	accumulator, accErr := NewTokenAccumulator(h.logger)
	if accErr != nil {
		h.logger.Warn("token accumulator unavailable, skipping verification and audit",
			"request_id", req.RequestID, "error", accErr)
	}
	defer func() {
		if accumulator != nil {
			accumulator.Destroy()
		}
	}()

	messages := buildChatMessages(resp.SystemPrompt, req.History, redactedMessage)
	streamErr := h.streamTokens(streamCtx, messages, sse, accumulator)

	if streamErr != nil {
		span.RecordError(streamErr)
		span.SetStatus(codes.Error, "model streaming failed")
		if errors.Is(streamErr, context.Canceled) || errors.Is(streamErr, context.DeadlineExceeded) {
			h.logger.Info("stream cancelled",
				"request_id", req.RequestID, "conversation_id", req.ConversationID)
			h.observeStream("cancelled", start)
		} else {
			h.logger.Error("model streaming failed",
				"request_id", req.RequestID, "error", streamErr)
			h.observeStream("error", start)
			_ = sse.WriteError("Model generation failed")
		}
		h.recordRequest("chat_stream", false)
		return
	}

	var verification *datatypes.VerificationResult
	var answer string
	if accumulator != nil {
		var finalizeErr error
		answer, _, finalizeErr = accumulator.Finalize()
		if finalizeErr != nil {
			h.logger.Warn("accumulator finalize failed, skipping verification",
				"request_id", req.RequestID, "error", finalizeErr)
		} else {
			// Verify against the snapshot the prompt was built from, never a
			// recomputed one.
			verification = h.pipeline.VerifyAnswer(answer, resp.QueryType, resp.Aggregates)
		}
	}

	if h.auditor != nil && answer != "" {
		h.auditor.Record(&datatypes.CreateAuditRequest{
			ConversationID:  req.ConversationID,
			RequestRedacted: redactedMessage,
			ResponseText:    answer,
			EmployeeIDsUsed: resp.EmployeeIDsUsed,
		})
	}

	if err := sse.WriteDone(req.ConversationID, verification, &resp.Metrics); err != nil {
		span.RecordError(err)
		h.logger.Error("failed to write done event", "request_id", req.RequestID, "error", err)
		return
	}

	h.observeStream("success", start)
	h.recordRequest("chat_stream", true)
	span.SetStatus(codes.Ok, "stream completed")
}

// HandleCancelStream processes DELETE /v1/chat/:conversation_id, cancelling
// the active stream for that conversation if one exists.
func (h *PipelineHandler) HandleCancelStream(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	if h.conversations == nil || conversationID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active stream"})
		return
	}
	if !h.conversations.Cancel(conversationID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active stream"})
		return
	}
	h.logger.Info("stream cancelled by client", "conversation_id", conversationID)
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// streamTokens pumps model events to the SSE writer, accumulating visible
// tokens when an accumulator is available.
func (h *PipelineHandler) streamTokens(ctx context.Context, messages []datatypes.Message, sse SSEWriter, accumulator TokenAccumulator) error {
	callback := func(event llm.StreamEvent) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch event.Type {
		case llm.StreamEventToken:
			if accumulator != nil {
				if err := accumulator.Write(event.Content); err != nil {
					h.logger.Warn("failed to accumulate token",
						"accumulator_id", accumulator.ID(), "error", err)
				}
			}
			return sse.WriteToken(event.Content)
		case llm.StreamEventError:
			// Backend error details stay in the logs; the client gets a
			// generic message.
			h.logger.Error("model backend reported stream error", "error", event.Error)
			return sse.WriteError("Model generation failed")
		}
		// Thinking events never reach the client; reasoning may restate
		// workforce data the visible answer would not.
		return nil
	}

	return h.llmClient.ChatStream(ctx, messages, llm.GenerationParams{}, callback)
}

// runKeepAlive sends SSE comments until the stream ends.
func (h *PipelineHandler) runKeepAlive(ctx context.Context, sse SSEWriter, done <-chan struct{}) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sse.WriteKeepAlive(); err != nil {
				h.logger.Debug("keepalive write failed", "error", err)
				return
			}
		}
	}
}

// buildChatMessages assembles the conversation sent to the model: system
// prompt, prior history, then the redacted user message.
func buildChatMessages(systemPrompt string, history []datatypes.Message, userMessage string) []datatypes.Message {
	messages := make([]datatypes.Message, 0, len(history)+2)
	messages = append(messages, datatypes.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, datatypes.Message{Role: "user", Content: userMessage})
	return messages
}

func (h *PipelineHandler) observeStream(status string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveStream(status, start)
	}
}
