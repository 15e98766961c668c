// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBuildPromptRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     BuildPromptRequest
		wantErr bool
	}{
		{
			name:    "valid minimal",
			req:     BuildPromptRequest{Message: "How many employees do we have?"},
			wantErr: false,
		},
		{
			name: "valid with selection",
			req: BuildPromptRequest{
				Message:            "Tell me about their last review",
				SelectedEmployeeID: uuid.NewString(),
			},
			wantErr: false,
		},
		{
			name:    "empty message",
			req:     BuildPromptRequest{},
			wantErr: true,
		},
		{
			name:    "oversized message",
			req:     BuildPromptRequest{Message: strings.Repeat("a", MaxMessageContentBytes+1)},
			wantErr: true,
		},
		{
			name:    "malformed employee id",
			req:     BuildPromptRequest{Message: "hi", SelectedEmployeeID: "not-a-uuid"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildPromptRequestEnsureDefaults(t *testing.T) {
	req := BuildPromptRequest{Message: "hi"}
	req.EnsureDefaults()
	assert.NotEmpty(t, req.RequestID)
	_, err := uuid.Parse(req.RequestID)
	assert.NoError(t, err)

	fixed := BuildPromptRequest{RequestID: "11111111-1111-4111-8111-111111111111", Message: "hi"}
	fixed.EnsureDefaults()
	assert.Equal(t, "11111111-1111-4111-8111-111111111111", fixed.RequestID)
}

func TestChatStreamRequestValidation(t *testing.T) {
	valid := ChatStreamRequest{
		ConversationID: uuid.NewString(),
		Message:        "How is the Sales team doing?",
		History: []Message{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi there"},
		},
	}
	assert.NoError(t, valid.Validate())

	missingConversation := ChatStreamRequest{Message: "hi"}
	assert.Error(t, missingConversation.Validate())

	badRole := valid
	badRole.History = []Message{{Role: "narrator", Content: "x"}}
	assert.Error(t, badRole.Validate())
}

func TestCreateAuditRequestValidation(t *testing.T) {
	valid := CreateAuditRequest{
		RequestRedacted: "my ssn is [REDACTED-SSN]",
		ResponseText:    "I can't help with that.",
	}
	assert.NoError(t, valid.Validate())

	entry := NewAuditEntry(&valid)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Equal(t, valid.RequestRedacted, entry.RequestRedacted)

	missing := CreateAuditRequest{ResponseText: "x"}
	assert.Error(t, missing.Validate())
}

func TestEmployeeHelpers(t *testing.T) {
	e := Employee{FirstName: "Dana", LastName: "Whitfield", Status: StatusOnLeave}
	assert.Equal(t, "Dana Whitfield", e.FullName())
	assert.True(t, e.IsActive(), "on-leave employees are still employed")

	e.Status = StatusTerminated
	assert.False(t, e.IsActive())
}

func TestQueryTypeValid(t *testing.T) {
	for _, qt := range []QueryType{QueryAggregate, QueryList, QueryIndividual, QueryComparison, QueryAttrition, QueryGeneral} {
		assert.True(t, qt.Valid())
	}
	assert.False(t, QueryType("semantic").Valid())
}
