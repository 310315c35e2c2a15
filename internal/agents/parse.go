package agents

import (
	"encoding/json"
	"time"

	"arbiter/internal/domain/decision"
	"arbiter/pkg/errors"
)

// ExtractJSONBlock returns the first balanced {...} block in the response.
// Agents are instructed to answer in JSON, but models sometimes wrap the
// object in surrounding prose.
func ExtractJSONBlock(response string) (string, bool) {
	start := -1
	braceCount := 0

	for i, ch := range response {
		if ch == '{' {
			if start == -1 {
				start = i
			}
			braceCount++
		} else if ch == '}' && start != -1 {
			braceCount--
			if braceCount == 0 {
				return response[start : i+1], true
			}
		}
	}

	return "", false
}

// contributionPayload is the JSON shape agents are asked to produce.
type contributionPayload struct {
	Action             string                 `json:"action"`
	Confidence         float64                `json:"confidence"`
	Reasoning          string                 `json:"reasoning"`
	AlternativeActions []string               `json:"alternative_actions"`
	Considerations     map[string]interface{} `json:"considerations"`
}

// ParseContribution extracts a contribution from raw model output. Returns
// an ErrParsing-classed error when no valid JSON block with a non-empty
// action is found; callers fall back via FallbackContribution.
func ParseContribution(agentType decision.AgentType, response string) (*decision.Contribution, error) {
	block, ok := ExtractJSONBlock(response)
	if !ok {
		return nil, errors.Wrapf(errors.ErrParsing, "no JSON block in %s response", agentType)
	}

	var payload contributionPayload
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return nil, errors.Wrapf(errors.ErrParsing, "malformed %s response: %v", agentType, err)
	}

	if payload.Action == "" {
		return nil, errors.Wrapf(errors.ErrParsing, "%s response missing action", agentType)
	}

	return &decision.Contribution{
		AgentType:          agentType,
		Action:             payload.Action,
		Confidence:         clampConfidence(payload.Confidence),
		Reasoning:          payload.Reasoning,
		AlternativeActions: dedupe(payload.AlternativeActions),
		Considerations:     payload.Considerations,
		CreatedAt:          time.Now(),
	}, nil
}

// SerializeContribution renders a contribution back into the JSON shape
// agents produce.
func SerializeContribution(c *decision.Contribution) string {
	payload := contributionPayload{
		Action:             c.Action,
		Confidence:         c.Confidence,
		Reasoning:          c.Reasoning,
		AlternativeActions: c.AlternativeActions,
		Considerations:     c.Considerations,
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// FallbackContribution is the canonical degraded contribution used when an
// agent call fails or its output cannot be parsed. Integration proceeds at
// reduced confidence instead of aborting the run.
func FallbackContribution(agentType decision.AgentType, reason string) *decision.Contribution {
	return &decision.Contribution{
		AgentType:       agentType,
		Action:          "fallback_action",
		Confidence:      0.5,
		Reasoning:       "Agent response unavailable: " + reason,
		IsErrorResponse: true,
		CreatedAt:       time.Now(),
	}
}

// resolutionPayload is the JSON shape the debate moderator produces.
type resolutionPayload struct {
	Resolution        string            `json:"resolution"`
	RecommendedAction string            `json:"recommended_action"`
	Confidence        float64           `json:"confidence"`
	AgentFeedback     map[string]string `json:"agent_feedback"`
}

// ParseResolution extracts a debate resolution from raw moderator output.
// Both resolution text and recommended action are required.
func ParseResolution(conflictID string, response string) (*decision.Resolution, error) {
	block, ok := ExtractJSONBlock(response)
	if !ok {
		return nil, errors.Wrap(errors.ErrParsing, "no JSON block in moderator response")
	}

	var payload resolutionPayload
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return nil, errors.Wrapf(errors.ErrParsing, "malformed moderator response: %v", err)
	}

	if payload.Resolution == "" || payload.RecommendedAction == "" {
		return nil, errors.Wrap(errors.ErrParsing, "moderator response missing resolution or recommended_action")
	}

	feedback := make(map[decision.AgentType]string, len(payload.AgentFeedback))
	for agent, note := range payload.AgentFeedback {
		feedback[decision.AgentType(agent)] = note
	}

	return &decision.Resolution{
		ConflictID:        conflictID,
		Resolution:        payload.Resolution,
		RecommendedAction: payload.RecommendedAction,
		Confidence:        clampConfidence(payload.Confidence),
		AgentFeedback:     feedback,
	}, nil
}

// FallbackResolution recommends manual review when the moderator output is
// unusable.
func FallbackResolution(conflictID string) *decision.Resolution {
	return &decision.Resolution{
		ConflictID:        conflictID,
		Resolution:        "Automatic resolution failed; the conflict requires manual review.",
		RecommendedAction: "manual_review",
		Confidence:        0.5,
		IsFallback:        true,
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func dedupe(actions []string) []string {
	if len(actions) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(actions))
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
