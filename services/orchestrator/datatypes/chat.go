// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the request and response types for the four logical
// calls the chat UI makes into the core: PII scanning, system-prompt
// building, streamed chat with post-stream verification, and audit entry
// creation.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single user message.
	// Checked by byte length, not rune count.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxMessagesPerRequest bounds the conversation history sent per request.
	MaxMessagesPerRequest = 100
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for request datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageContentBytes on string fields to keep
// oversized payloads out of the pipeline.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// generateUUID returns a new UUID v4 string for request/response IDs.
func generateUUID() string {
	return uuid.NewString()
}

// =============================================================================
// Messages
// =============================================================================

// Message is one turn of conversation history passed with a chat request.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required,maxbytes"`
}

// =============================================================================
// PII Scan
// =============================================================================

// PIIScanRequest is the body of POST /v1/pii/scan, called before every
// outgoing user message.
type PIIScanRequest struct {
	Text string `json:"text" validate:"required,maxbytes"`
}

// Validate validates the PIIScanRequest fields.
func (r *PIIScanRequest) Validate() error {
	return chatValidate.Struct(r)
}

// =============================================================================
// Prompt Building
// =============================================================================

// BuildPromptRequest is the body of POST /v1/prompt, called once per user
// message to assemble the system prompt.
//
// SelectedEmployeeID carries explicit UI selection; when set, that employee
// is always included in context regardless of budget pressure.
type BuildPromptRequest struct {
	RequestID          string `json:"request_id" validate:"omitempty,uuid4"`
	ConversationID     string `json:"conversation_id" validate:"omitempty,uuid4"`
	Message            string `json:"message" validate:"required,maxbytes"`
	SelectedEmployeeID string `json:"selected_employee_id" validate:"omitempty,uuid4"`
}

// Validate validates the BuildPromptRequest fields.
func (r *BuildPromptRequest) Validate() error {
	return chatValidate.Struct(r)
}

// EnsureDefaults populates the request ID if the client did not send one.
func (r *BuildPromptRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
}

// BuildPromptResponse is what the UI passes onward to the model call,
// plus the observability snapshot.
//
// Aggregates is the exact ground-truth snapshot the prompt was built from.
// Callers that verify via POST /v1/verify must send this snapshot back
// unchanged so verification never refers to recomputed data.
type BuildPromptResponse struct {
	RequestID       string           `json:"request_id"`
	SystemPrompt    string           `json:"system_prompt"`
	EmployeeIDsUsed []string         `json:"employee_ids_used"`
	Aggregates      *OrgAggregates   `json:"aggregates,omitempty"`
	QueryType       QueryType        `json:"query_type"`
	Metrics         RetrievalMetrics `json:"metrics"`
}

// =============================================================================
// Verification
// =============================================================================

// VerifyRequest is the body of POST /v1/verify for UI-driven flows where the
// model call happens outside this process. Aggregates must be the snapshot
// returned by the prompt build for the same message.
type VerifyRequest struct {
	ResponseText string         `json:"response_text" validate:"required"`
	QueryType    QueryType      `json:"query_type" validate:"required"`
	Aggregates   *OrgAggregates `json:"aggregates"`
}

// Validate validates the VerifyRequest fields.
func (r *VerifyRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// Streaming Chat
// =============================================================================

// ChatStreamRequest is the body of POST /v1/chat/stream. The server runs the
// full pipeline in-process: redaction check, prompt build, model call,
// accumulation, verification, audit.
type ChatStreamRequest struct {
	RequestID          string    `json:"request_id" validate:"omitempty,uuid4"`
	ConversationID     string    `json:"conversation_id" validate:"required,uuid4"`
	Message            string    `json:"message" validate:"required,maxbytes"`
	History            []Message `json:"history" validate:"max=100,dive"`
	SelectedEmployeeID string    `json:"selected_employee_id" validate:"omitempty,uuid4"`
}

// Validate validates the ChatStreamRequest fields.
func (r *ChatStreamRequest) Validate() error {
	return chatValidate.Struct(r)
}

// EnsureDefaults populates the request ID if the client did not send one.
func (r *ChatStreamRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
}

// =============================================================================
// Stream Events
// =============================================================================

// StreamEventType discriminates SSE events on the chat stream.
type StreamEventType string

const (
	EventStatus StreamEventType = "status"
	EventToken  StreamEventType = "token"
	EventError  StreamEventType = "error"
	EventDone   StreamEventType = "done"
)

// StreamEvent is one SSE frame on the chat stream. The done event carries
// the verification result and retrieval metrics for the completed message.
type StreamEvent struct {
	Type           StreamEventType     `json:"type"`
	Content        string              `json:"content,omitempty"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Verification   *VerificationResult `json:"verification,omitempty"`
	Metrics        *RetrievalMetrics   `json:"metrics,omitempty"`
}

// =============================================================================
// Audit
// =============================================================================

// CreateAuditRequest is the body of POST /v1/audit, fire-and-forget after
// each completed exchange. RequestRedacted must already have passed through
// the redactor; the core never stores raw user text in audit rows.
type CreateAuditRequest struct {
	ConversationID  string   `json:"conversation_id" validate:"omitempty,uuid4"`
	RequestRedacted string   `json:"request_redacted" validate:"required"`
	ResponseText    string   `json:"response_text" validate:"required"`
	EmployeeIDsUsed []string `json:"employee_ids_used"`
}

// Validate validates the CreateAuditRequest fields.
func (r *CreateAuditRequest) Validate() error {
	return chatValidate.Struct(r)
}

// AuditEntry is one persisted audit row.
type AuditEntry struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id,omitempty"`
	RequestRedacted string    `json:"request_redacted"`
	ResponseText    string    `json:"response_text"`
	EmployeeIDsUsed []string  `json:"employee_ids_used,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewAuditEntry builds a persisted row from a request with a fresh ID and
// timestamp.
func NewAuditEntry(req *CreateAuditRequest) *AuditEntry {
	return &AuditEntry{
		ID:              generateUUID(),
		ConversationID:  req.ConversationID,
		RequestRedacted: req.RequestRedacted,
		ResponseText:    req.ResponseText,
		EmployeeIDsUsed: req.EmployeeIDsUsed,
		CreatedAt:       time.Now().UTC(),
	}
}
