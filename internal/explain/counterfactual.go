package explain

import (
	"fmt"

	"arbiter/internal/domain/decision"
	"arbiter/internal/domain/explanation"
)

// buildCounterfactuals derives alternative-action scenarios from the
// decision record itself. Plausibility decays with the alternative's rank
// and is bounded by the margin the chosen action won by.
func buildCounterfactuals(d *decision.Decision) []explanation.Counterfactual {
	if len(d.AlternativeActions) == 0 {
		return nil
	}

	out := make([]explanation.Counterfactual, 0, len(d.AlternativeActions))
	for i, action := range d.AlternativeActions {
		plausibility := (1 - d.Confidence) / float64(i+1)
		if plausibility < 0.05 {
			plausibility = 0.05
		}

		backing := backingAgents(d, action)
		outcome := fmt.Sprintf("Choosing %q instead would have diverged from the agreed recommendation.", action)
		if len(backing) > 0 {
			outcome = fmt.Sprintf("Choosing %q would have followed the position of %d agent(s) that proposed it during the run.", action, len(backing))
		}

		out = append(out, explanation.Counterfactual{
			Action:          action,
			ExpectedOutcome: outcome,
			Plausibility:    plausibility,
		})
	}
	return out
}

func backingAgents(d *decision.Decision, action string) []decision.AgentType {
	var out []decision.AgentType
	for _, agentType := range orderedAgents(d) {
		if d.Contributions[agentType].Action == action {
			out = append(out, agentType)
		}
	}
	return out
}
