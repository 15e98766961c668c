// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides clients for the model backends Beacon can stream
// from: a local Ollama server or any OpenAI-compatible endpoint.
package llm

import (
	"context"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
)

// GenerationParams tunes one generation request. Nil fields fall back to the
// backend's defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient is the minimal interface any backend implements.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// StreamingClient is a backend that can deliver tokens as they are produced.
// The chat streaming handler requires this; batch-only backends cannot serve
// the SSE endpoint.
type StreamingClient interface {
	LLMClient

	// ChatStream sends a conversation and invokes callback for every event
	// until the stream completes, the context is cancelled, or the callback
	// returns an error.
	ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback) error
}
