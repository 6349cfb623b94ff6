package routing

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uzsupport/murojaat/internal/profile"
	"github.com/uzsupport/murojaat/store"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "plain json",
			raw:  `{"department_name": "Billing", "routing_confidence": 0.8, "reason": "r", "message_type": "inquiry"}`,
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"department_name\": \"Billing\", \"routing_confidence\": 0.8, \"reason\": \"r\", \"message_type\": \"complaint\"}\n```",
		},
		{
			name:    "not json",
			raw:     "definitely billing",
			wantErr: true,
		},
		{
			name:    "missing department name",
			raw:     `{"routing_confidence": 0.8, "reason": "r", "message_type": "inquiry"}`,
			wantErr: true,
		},
		{
			name:    "confidence above one",
			raw:     `{"department_name": "Billing", "routing_confidence": 1.5, "reason": "r", "message_type": "inquiry"}`,
			wantErr: true,
		},
		{
			name:    "negative confidence",
			raw:     `{"department_name": "Billing", "routing_confidence": -0.1, "reason": "r", "message_type": "inquiry"}`,
			wantErr: true,
		},
		{
			name:    "invalid message type",
			raw:     `{"department_name": "Billing", "routing_confidence": 0.8, "reason": "r", "message_type": "rant"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := parseDecision(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "Billing", decision.DepartmentName)
		})
	}
}

func TestArbiterPromptMentionsCandidates(t *testing.T) {
	candidates := []*store.DepartmentCandidate{
		{DepartmentID: 1, Name: "Water Utilities", Description: "Water supply", Score: 0.91},
		{DepartmentID: 2, Name: "Billing", Description: "Payments", Score: 0.55},
	}

	prompt := buildArbiterUserPrompt("suv yo'q", candidates)
	require.Contains(t, prompt, "semantic similarity search")
	require.Contains(t, prompt, "Water Utilities (similarity 0.91): Water supply")
	require.Contains(t, prompt, "Billing (similarity 0.55): Payments")
	require.Contains(t, prompt, "suv yo'q")
}

func TestArbiterMarksUnknownDepartmentInvalid(t *testing.T) {
	driver := newFakeDriver()
	driver.departments = []*store.Department{
		{ID: 1, Name: "Billing", IsActive: true},
	}
	llm := &fakeLLM{response: `{"department_name": "Archives", "routing_confidence": 0.9, "reason": "r", "message_type": "inquiry"}`}
	arbiter := NewArbiter(llm, store.New(driver, &profile.Profile{}))

	result, err := arbiter.Arbitrate(context.Background(), "text", nil, nil)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, ReasonUnknownDepartment, result.InvalidReason)
	require.True(t, strings.Contains(result.InvalidDetail, "Archives"))
	require.NotEmpty(t, result.Raw)
}

func TestArbiterFlagsOverrideOutsideCandidates(t *testing.T) {
	driver := newFakeDriver()
	driver.departments = []*store.Department{
		{ID: 1, Name: "Billing", IsActive: true},
		{ID: 2, Name: "Roads", IsActive: true},
	}
	candidates := []*store.DepartmentCandidate{
		{DepartmentID: 1, Name: "Billing", Score: 0.7},
	}
	llm := &fakeLLM{response: `{"department_name": "Roads", "routing_confidence": 0.9, "reason": "pothole", "message_type": "complaint"}`}
	arbiter := NewArbiter(llm, store.New(driver, &profile.Profile{}))

	result, err := arbiter.Arbitrate(context.Background(), "text", candidates, nil)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.True(t, result.Override)
	require.Equal(t, int32(2), result.Department.ID)
}
