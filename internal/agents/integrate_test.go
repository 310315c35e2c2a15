package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"arbiter/internal/domain/decision"
)

func contribution(agentType decision.AgentType, action string, confidence float64, alternatives ...string) *decision.Contribution {
	return &decision.Contribution{
		AgentType:          agentType,
		Action:             action,
		Confidence:         confidence,
		Reasoning:          string(agentType) + " reasoning",
		AlternativeActions: alternatives,
	}
}

func TestIntegrate_AdoptsFirstContribution(t *testing.T) {
	var result RunningResult

	Integrate(&result, contribution(decision.AgentStrategy, "qualify_lead", 0.7, "nurture_lead"))

	assert.Equal(t, "qualify_lead", result.Action)
	assert.Equal(t, 0.7, result.Confidence)
	assert.Equal(t, []string{"nurture_lead"}, result.AlternativeActions)
	assert.Contains(t, result.Reasoning, "[strategy]")
}

func TestIntegrate_HigherConfidenceWins(t *testing.T) {
	var result RunningResult
	Integrate(&result, contribution(decision.AgentStrategy, "qualify_lead", 0.7))
	Integrate(&result, contribution(decision.AgentRisk, "disqualify_lead", 0.8))

	assert.Equal(t, "disqualify_lead", result.Action)
	assert.Equal(t, 0.8, result.Confidence)
	assert.Contains(t, result.AlternativeActions, "qualify_lead")
}

func TestIntegrate_TieKeepsExistingAction(t *testing.T) {
	var result RunningResult
	Integrate(&result, contribution(decision.AgentStrategy, "qualify_lead", 0.8))
	Integrate(&result, contribution(decision.AgentRisk, "disqualify_lead", 0.8))

	assert.Equal(t, "qualify_lead", result.Action)
	assert.Equal(t, 0.8, result.Confidence)
	assert.Contains(t, result.AlternativeActions, "disqualify_lead")
}

func TestIntegrate_LowerConfidenceKeepsExisting(t *testing.T) {
	var result RunningResult
	Integrate(&result, contribution(decision.AgentStrategy, "qualify_lead", 0.9))
	Integrate(&result, contribution(decision.AgentEthics, "qualify_lead", 0.7))

	assert.Equal(t, "qualify_lead", result.Action)
	assert.Equal(t, 0.9, result.Confidence)
	assert.NotContains(t, result.AlternativeActions, "qualify_lead",
		"the winning action must not appear among its own alternatives")
}

func TestIntegrate_ConcatenatesLabeledReasoning(t *testing.T) {
	var result RunningResult
	Integrate(&result, contribution(decision.AgentStrategy, "qualify_lead", 0.9))
	Integrate(&result, contribution(decision.AgentEthics, "qualify_lead", 0.7))

	assert.Contains(t, result.Reasoning, "[strategy] strategy reasoning")
	assert.Contains(t, result.Reasoning, "[ethics] ethics reasoning")
}

func TestIntegrate_UnionsAlternativesWithoutDuplicates(t *testing.T) {
	var result RunningResult
	Integrate(&result, contribution(decision.AgentStrategy, "qualify_lead", 0.9, "nurture_lead", "escalate"))
	Integrate(&result, contribution(decision.AgentEthics, "qualify_lead", 0.7, "nurture_lead", "defer"))

	assert.Equal(t, []string{"nurture_lead", "escalate", "defer"}, result.AlternativeActions)
}
