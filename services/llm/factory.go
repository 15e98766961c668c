// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"fmt"
	"os"
	"strings"
)

// backendEnv selects the model backend: "ollama" (default) or "openai".
const backendEnv = "BEACON_LLM_BACKEND"

// NewFromEnv builds the configured streaming backend.
//
// Ollama is the default because it keeps every token on the machine. The
// openai backend exists for OpenAI-compatible local servers and, when
// explicitly configured with a real key, the hosted API.
func NewFromEnv() (StreamingClient, error) {
	return NewForBackend(os.Getenv(backendEnv))
}

// NewForBackend builds the named backend. An empty name means ollama.
func NewForBackend(backend string) (StreamingClient, error) {
	switch strings.ToLower(backend) {
	case "", "ollama":
		return NewOllamaClient()
	case "openai":
		return NewOpenAIClient()
	default:
		return nil, fmt.Errorf("unknown %s value %q, want ollama or openai", backendEnv, backend)
	}
}
