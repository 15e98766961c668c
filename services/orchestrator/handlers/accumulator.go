// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides the HTTP surface of the orchestrator service.
//
// This file implements accumulation of streamed model tokens. The verifier
// and the audit logger need the complete response text, and that text can
// contain workforce details, so tokens accumulate in mlocked memory that is
// wiped once the response has been delivered.
package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// AccumulatorBufferSize bounds one response. 256 KB is roughly 65k tokens,
// far above anything the local models produce in one answer.
const AccumulatorBufferSize = 256 * 1024

// insecureMemoryEnv acknowledges running without mlock guarantees.
const insecureMemoryEnv = "BEACON_INSECURE_MEMORY"

var (
	memguardInitOnce sync.Once
	mlockSufficient  bool
)

// TokenAccumulator collects streamed tokens for verification and audit.
//
// # Thread Safety
//
// Implementations are safe for concurrent use.
//
// # Limitations
//
//   - Fixed capacity; cannot be reused after Finalize or Destroy.
type TokenAccumulator interface {
	// Write appends one token. Tokens are hashed as they arrive.
	Write(token string) error

	// Finalize returns the complete answer and its SHA-256 hex hash, then
	// wipes the buffer. Call once.
	Finalize() (answer string, hash string, err error)

	// Destroy wipes without returning data; for error paths. Idempotent.
	Destroy()

	// ID identifies this accumulator in logs.
	ID() string
}

// NewTokenAccumulator returns a secure (mlocked) accumulator when the system
// allows it. With insufficient mlock limits it fails, unless
// BEACON_INSECURE_MEMORY=true explicitly accepts plain heap storage.
func NewTokenAccumulator(logger *slog.Logger) (TokenAccumulator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		var limit unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &limit); err == nil {
			mlockSufficient = limit.Cur == unix.RLIM_INFINITY || limit.Cur >= AccumulatorBufferSize
		}
	})

	if !mlockSufficient {
		if os.Getenv(insecureMemoryEnv) != "true" {
			return nil, fmt.Errorf("mlock limit below %d bytes; raise RLIMIT_MEMLOCK or set %s=true",
				AccumulatorBufferSize, insecureMemoryEnv)
		}
		logger.Warn("accumulating response in unlocked memory, data may swap to disk")
		return &heapAccumulator{id: uuid.New().String(), hasher: sha256.New()}, nil
	}

	buf := memguard.NewBuffer(AccumulatorBufferSize)
	return &secureAccumulator{id: uuid.New().String(), buffer: buf, hasher: sha256.New()}, nil
}

// =============================================================================
// Secure Implementation
// =============================================================================

// secureAccumulator stores tokens in a memguard LockedBuffer: mlocked against
// swap, guard-paged, and explicitly wiped on Destroy.
type secureAccumulator struct {
	id        string
	mu        sync.Mutex
	buffer    *memguard.LockedBuffer
	offset    int
	hasher    hash.Hash
	destroyed bool
}

func (a *secureAccumulator) Write(token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.offset+len(token) > AccumulatorBufferSize {
		return fmt.Errorf("response exceeds %d byte accumulator capacity", AccumulatorBufferSize)
	}
	copy(a.buffer.Bytes()[a.offset:], token)
	a.offset += len(token)
	a.hasher.Write([]byte(token))
	return nil
}

func (a *secureAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return "", "", fmt.Errorf("accumulator already destroyed")
	}
	answer := string(a.buffer.Bytes()[:a.offset])
	sum := hex.EncodeToString(a.hasher.Sum(nil))
	a.buffer.Destroy()
	a.destroyed = true
	return answer, sum, nil
}

func (a *secureAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.buffer.Destroy()
	a.destroyed = true
}

func (a *secureAccumulator) ID() string { return a.id }

// =============================================================================
// Heap Fallback
// =============================================================================

// heapAccumulator is the acknowledged-insecure fallback. Same contract,
// standard Go memory.
type heapAccumulator struct {
	id        string
	mu        sync.Mutex
	data      []byte
	hasher    hash.Hash
	destroyed bool
}

func (a *heapAccumulator) Write(token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if len(a.data)+len(token) > AccumulatorBufferSize {
		return fmt.Errorf("response exceeds %d byte accumulator capacity", AccumulatorBufferSize)
	}
	a.data = append(a.data, token...)
	a.hasher.Write([]byte(token))
	return nil
}

func (a *heapAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return "", "", fmt.Errorf("accumulator already destroyed")
	}
	answer := string(a.data)
	sum := hex.EncodeToString(a.hasher.Sum(nil))
	a.wipe()
	return answer, sum, nil
}

func (a *heapAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.destroyed {
		a.wipe()
	}
}

func (a *heapAccumulator) wipe() {
	for i := range a.data {
		a.data[i] = 0
	}
	a.data = nil
	a.destroyed = true
}

func (a *heapAccumulator) ID() string { return a.id }

var (
	_ TokenAccumulator = (*secureAccumulator)(nil)
	_ TokenAccumulator = (*heapAccumulator)(nil)
)
