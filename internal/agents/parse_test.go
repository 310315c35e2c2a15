package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/internal/domain/decision"
	"arbiter/pkg/errors"
)

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		found    bool
	}{
		{
			name:     "bare object",
			response: `{"action": "approve"}`,
			want:     `{"action": "approve"}`,
			found:    true,
		},
		{
			name:     "object wrapped in prose",
			response: `Sure, here is my answer: {"action": "approve"} hope that helps`,
			want:     `{"action": "approve"}`,
			found:    true,
		},
		{
			name:     "nested braces stay balanced",
			response: `{"action": "approve", "considerations": {"risk": "low"}}`,
			want:     `{"action": "approve", "considerations": {"risk": "low"}}`,
			found:    true,
		},
		{
			name:     "stray closing brace before the object",
			response: `} {"action": "x"}`,
			want:     `{"action": "x"}`,
			found:    true,
		},
		{
			name:     "no object",
			response: "I cannot answer in the requested format.",
			found:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONBlock(tt.response)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseContribution_RoundTrip(t *testing.T) {
	original := &decision.Contribution{
		AgentType:          decision.AgentRisk,
		Action:             "escalate_review",
		Confidence:         0.85,
		Reasoning:          "elevated exposure on the account",
		AlternativeActions: []string{"approve_with_limit", "defer"},
	}

	parsed, err := ParseContribution(decision.AgentRisk, SerializeContribution(original))
	require.NoError(t, err)

	assert.Equal(t, original.Action, parsed.Action)
	assert.Equal(t, original.Confidence, parsed.Confidence)
	assert.Equal(t, original.Reasoning, parsed.Reasoning)
	assert.Equal(t, original.AlternativeActions, parsed.AlternativeActions)
}

func TestParseContribution_Errors(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"no json block", "plain prose without structure"},
		{"malformed json", `{"action": "approve", }`},
		{"missing action", `{"confidence": 0.8, "reasoning": "something"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseContribution(decision.AgentStrategy, tt.response)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrParsing))
		})
	}
}

func TestParseContribution_ClampsConfidence(t *testing.T) {
	parsed, err := ParseContribution(decision.AgentStrategy, `{"action": "approve", "confidence": 1.7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, parsed.Confidence)

	parsed, err = ParseContribution(decision.AgentStrategy, `{"action": "approve", "confidence": -0.3}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, parsed.Confidence)
}

func TestFallbackContribution(t *testing.T) {
	c := FallbackContribution(decision.AgentEthics, "inference call failed")

	assert.Equal(t, "fallback_action", c.Action)
	assert.Equal(t, 0.5, c.Confidence)
	assert.True(t, c.IsErrorResponse)
	assert.Equal(t, decision.AgentEthics, c.AgentType)
	assert.Contains(t, c.Reasoning, "inference call failed")
}

func TestParseResolution(t *testing.T) {
	r, err := ParseResolution("c1", `{"resolution": "risk wins on tie", "recommended_action": "defer", "confidence": 0.7}`)
	require.NoError(t, err)
	assert.Equal(t, "c1", r.ConflictID)
	assert.Equal(t, "defer", r.RecommendedAction)
	assert.Equal(t, 0.7, r.Confidence)
	assert.False(t, r.IsFallback)

	_, err = ParseResolution("c1", `{"resolution": "", "recommended_action": "defer"}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrParsing))
}

func TestFallbackResolution(t *testing.T) {
	r := FallbackResolution("c9")

	assert.Equal(t, "c9", r.ConflictID)
	assert.Equal(t, "manual_review", r.RecommendedAction)
	assert.Equal(t, 0.5, r.Confidence)
	assert.True(t, r.IsFallback)
}
