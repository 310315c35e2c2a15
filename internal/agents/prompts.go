package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"arbiter/internal/domain/decision"
)

const contributionFormat = `Respond with a single JSON object:
{
  "action": "<recommended action, snake_case>",
  "confidence": <0.0-1.0>,
  "reasoning": "<2-4 sentences explaining your recommendation>",
  "alternative_actions": ["<other viable actions, best first>"],
  "considerations": {"<factor>": "<note>"}
}`

const resolutionFormat = `Respond with a single JSON object:
{
  "resolution": "<how the disagreement should be settled and why>",
  "recommended_action": "<the action the group should take>",
  "confidence": <0.0-1.0>,
  "agent_feedback": {"<agent_type>": "<guidance for that agent>"}
}`

// systemPrompt renders the agent role hint.
func systemPrompt(agentType decision.AgentType) string {
	p := ProfileFor(agentType)
	return fmt.Sprintf("You are %s. Evaluate the decision below focusing on: %s. Always answer in the requested JSON format.",
		p.Role, strings.Join(p.Focus, ", "))
}

// ContributionInput carries everything an agent sees for one round.
type ContributionInput struct {
	DecisionType string
	Context      map[string]interface{}
	Constraints  map[string]interface{}

	// RunningResult is the accumulated result-so-far in sequential mode
	RunningResult *RunningResult

	// PeerContributions are the supporting agents' outputs, seen by the
	// lead agent in hierarchical mode
	PeerContributions []*decision.Contribution

	// Conflicts and Resolutions are visible in the consensus re-run round
	Conflicts   []decision.Conflict
	Resolutions []decision.Resolution
}

// contributionPrompt renders the user-turn prompt for one agent call.
func contributionPrompt(in ContributionInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Decision type: %s\n\nContext:\n%s\n", in.DecisionType, toJSON(in.Context))

	if len(in.Constraints) > 0 {
		fmt.Fprintf(&b, "\nConstraints:\n%s\n", toJSON(in.Constraints))
	}

	if in.RunningResult != nil && in.RunningResult.Action != "" {
		fmt.Fprintf(&b, "\nCurrent working recommendation (from earlier agents):\naction: %s\nconfidence: %.2f\nreasoning: %s\n",
			in.RunningResult.Action, in.RunningResult.Confidence, in.RunningResult.Reasoning)
		b.WriteString("You may confirm or revise it based on your specialty.\n")
	}

	if len(in.PeerContributions) > 0 {
		b.WriteString("\nContributions from the supporting agents:\n")
		for _, c := range in.PeerContributions {
			fmt.Fprintf(&b, "- %s recommends %q (confidence %.2f): %s\n",
				c.AgentType, c.Action, c.Confidence, c.Reasoning)
		}
		b.WriteString("As the lead agent, synthesize these into the final recommendation.\n")
	}

	if len(in.Conflicts) > 0 {
		b.WriteString("\nThe previous round produced disagreements:\n")
		for _, conflict := range in.Conflicts {
			fmt.Fprintf(&b, "- [%s] disputed actions: %s\n", conflict.Type, strings.Join(conflict.Actions, " vs "))
		}
		for _, res := range in.Resolutions {
			fmt.Fprintf(&b, "Moderator guidance: %s (recommended: %s)\n", res.Resolution, res.RecommendedAction)
		}
		b.WriteString("Reconsider your position in light of the moderation above.\n")
	}

	b.WriteString("\n" + contributionFormat)
	return b.String()
}

// moderationPrompt renders the debate prompt for one conflict.
func moderationPrompt(conflict decision.Conflict, in ContributionInput, contributions []*decision.Contribution) string {
	var b strings.Builder

	b.WriteString("You are a neutral moderator settling a disagreement between specialist agents.\n\n")
	fmt.Fprintf(&b, "Decision type: %s\n\nContext:\n%s\n", in.DecisionType, toJSON(in.Context))
	if len(in.Constraints) > 0 {
		fmt.Fprintf(&b, "\nConstraints:\n%s\n", toJSON(in.Constraints))
	}

	fmt.Fprintf(&b, "\nConflict (%s): actions in dispute: %s\n", conflict.Type, strings.Join(conflict.Actions, " vs "))
	if conflict.Type == decision.ConflictConfidenceDisagreement {
		fmt.Fprintf(&b, "Confidence spread: %.2f\n", conflict.Spread)
	}
	for action, side := range conflict.Sides {
		names := make([]string, 0, len(side))
		for _, t := range side {
			names = append(names, string(t))
		}
		fmt.Fprintf(&b, "Backing %q: %s\n", action, strings.Join(names, ", "))
	}

	b.WriteString("\nAll current agent positions:\n")
	for _, c := range contributions {
		fmt.Fprintf(&b, "- %s: %q (confidence %.2f): %s\n", c.AgentType, c.Action, c.Confidence, c.Reasoning)
	}

	b.WriteString("\n" + resolutionFormat)
	return b.String()
}

func toJSON(m map[string]interface{}) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", m)
	}
	return string(data)
}
