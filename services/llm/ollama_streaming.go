// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// =============================================================================
// Stream Events
// =============================================================================

// StreamEventType discriminates events delivered to a StreamCallback.
type StreamEventType string

const (
	// StreamEventToken carries one piece of visible response content.
	StreamEventToken StreamEventType = "token"

	// StreamEventThinking carries model reasoning content. Emitted only when
	// the model produces it and the config does not redact it.
	StreamEventThinking StreamEventType = "thinking"

	// StreamEventError carries a backend-reported failure. The stream ends
	// after this event.
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one unit of streamed output.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// StreamCallback receives events in arrival order. Returning an error aborts
// the stream.
type StreamCallback func(event StreamEvent) error

// =============================================================================
// Stream Configuration
// =============================================================================

// StreamConfig bounds one streamed response.
//
// # Description
//
// MaxResponseLength caps total visible content bytes; content past the cap is
// truncated, not errored, so a runaway model cannot exhaust the accumulator.
// MaxThinkingLength does the same for reasoning content. RedactThinking drops
// reasoning entirely, for deployments where reasoning may restate workforce
// data that the response itself would not. Zero values disable each limit.
type StreamConfig struct {
	RedactThinking     bool
	MaxThinkingLength  int
	MaxResponseLength  int
	RateLimitPerSecond int
}

// DefaultStreamConfig returns the production defaults: 100 KB response cap,
// thinking passed through unlimited.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		MaxResponseLength: 100 * 1024,
	}
}

// =============================================================================
// Chunk Processing
// =============================================================================

// ollamaStreamChunk is one NDJSON line from Ollama's /api/chat stream.
type ollamaStreamChunk struct {
	Message       datatypes.Message `json:"message"`
	Thinking      string            `json:"thinking,omitempty"`
	Done          bool              `json:"done"`
	DoneReason    string            `json:"done_reason,omitempty"`
	TotalDuration int64             `json:"total_duration,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// DefaultStreamProcessor applies StreamConfig limits to a chunk sequence and
// forwards the surviving events to a callback.
//
// # Thread Safety
//
// Safe for concurrent use, though chunks from one stream arrive serially.
type DefaultStreamProcessor struct {
	cfg    StreamConfig
	logger *slog.Logger

	mu             sync.Mutex
	tokenCount     int
	responseLength int
	thinkingLength int
	lastEmit       time.Time
}

// NewDefaultStreamProcessor returns a processor with fresh counters.
func NewDefaultStreamProcessor(cfg StreamConfig, logger *slog.Logger) *DefaultStreamProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultStreamProcessor{cfg: cfg, logger: logger}
}

// ProcessChunk handles one chunk. It returns done=true when the stream has
// logically ended, whether by completion or backend error.
func (p *DefaultStreamProcessor) ProcessChunk(ctx context.Context, chunk *ollamaStreamChunk, callback StreamCallback) (bool, error) {
	if chunk.Error != "" {
		if cbErr := callback(StreamEvent{Type: StreamEventError, Error: chunk.Error}); cbErr != nil {
			p.logger.Warn("callback failed while delivering stream error", "error", cbErr)
		}
		return true, fmt.Errorf("ollama stream error: %s", chunk.Error)
	}

	if chunk.Thinking != "" && !p.cfg.RedactThinking {
		content := p.clampThinking(chunk.Thinking)
		if content != "" {
			if err := callback(StreamEvent{Type: StreamEventThinking, Content: content}); err != nil {
				return false, fmt.Errorf("stream callback: %w", err)
			}
		}
	}

	if chunk.Message.Content != "" {
		content := p.clampResponse(chunk.Message.Content)
		if content != "" {
			p.throttle(ctx)
			if err := callback(StreamEvent{Type: StreamEventToken, Content: content}); err != nil {
				return false, fmt.Errorf("stream callback: %w", err)
			}
		}
	}

	return chunk.Done, nil
}

// GetTokenCount reports visible tokens emitted so far.
func (p *DefaultStreamProcessor) GetTokenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenCount
}

// GetResponseLength reports visible content bytes emitted so far.
func (p *DefaultStreamProcessor) GetResponseLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.responseLength
}

func (p *DefaultStreamProcessor) clampResponse(content string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.MaxResponseLength > 0 {
		remaining := p.cfg.MaxResponseLength - p.responseLength
		if remaining <= 0 {
			return ""
		}
		if len(content) > remaining {
			p.logger.Warn("response length limit reached, truncating",
				"limit", p.cfg.MaxResponseLength)
			content = content[:remaining]
		}
	}
	p.tokenCount++
	p.responseLength += len(content)
	return content
}

func (p *DefaultStreamProcessor) clampThinking(content string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.MaxThinkingLength > 0 {
		remaining := p.cfg.MaxThinkingLength - p.thinkingLength
		if remaining <= 0 {
			return ""
		}
		if len(content) > remaining {
			content = content[:remaining]
		}
	}
	p.thinkingLength += len(content)
	return content
}

// throttle paces token delivery when RateLimitPerSecond is set. Used to keep
// slow terminal clients from being flooded by fast local models.
func (p *DefaultStreamProcessor) throttle(ctx context.Context) {
	if p.cfg.RateLimitPerSecond <= 0 {
		return
	}
	p.mu.Lock()
	interval := time.Second / time.Duration(p.cfg.RateLimitPerSecond)
	wait := interval - time.Since(p.lastEmit)
	p.lastEmit = time.Now().Add(wait)
	p.mu.Unlock()

	if wait <= 0 {
		return
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// =============================================================================
// Streaming Client
// =============================================================================

// ChatStream streams a conversation with default limits.
func (o *OllamaClient) ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback) error {
	return o.ChatStreamWithConfig(ctx, messages, params, callback, DefaultStreamConfig())
}

// ChatStreamWithConfig streams a conversation via Ollama's NDJSON chat API.
//
// # Description
//
// Events are delivered to callback in arrival order. Malformed NDJSON lines
// are logged and skipped so one bad chunk does not kill a long answer. The
// stream ends on the done chunk, a backend error chunk, context
// cancellation, or a callback error.
func (o *OllamaClient) ChatStreamWithConfig(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback, cfg StreamConfig) error {
	ctx, span := ollamaTracer.Start(ctx, "OllamaClient.ChatStream")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", o.model),
		attribute.Int("llm.num_messages", len(messages)),
	)

	payload := ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   true,
		Options:  generationOptions(params),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal Ollama stream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("create Ollama stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("Ollama stream call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
		return fmt.Errorf("Ollama stream failed with status %d", resp.StatusCode)
	}

	processor := NewDefaultStreamProcessor(cfg, slog.Default())
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		chunk, err := o.parseStreamChunk(line)
		if err != nil {
			slog.Warn("skipping malformed stream chunk", "error", err)
			continue
		}
		done, err := processor.ProcessChunk(ctx, chunk, callback)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		if done {
			span.SetAttributes(attribute.Int("llm.tokens", processor.GetTokenCount()))
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, ctxErr.Error())
			return ctxErr
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("read Ollama stream: %w", err)
	}
	// EOF without a done chunk; the connection dropped mid-answer.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("Ollama stream ended without completion")
}

// parseStreamChunk decodes one NDJSON line.
func (o *OllamaClient) parseStreamChunk(line []byte) (*ollamaStreamChunk, error) {
	var chunk ollamaStreamChunk
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, fmt.Errorf("empty chunk")
	}
	if err := json.Unmarshal(line, &chunk); err != nil {
		return nil, fmt.Errorf("parse stream chunk: %w", err)
	}
	return &chunk, nil
}

var _ StreamingClient = (*OllamaClient)(nil)
