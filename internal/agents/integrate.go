package agents

import (
	"fmt"
	"strings"

	"arbiter/internal/domain/decision"
)

// RunningResult is the accumulated collaboration result while contributions
// are being merged.
type RunningResult struct {
	Action             string
	Confidence         float64
	Reasoning          string
	AlternativeActions []string
}

// Integrate merges one contribution into the running result. With no action
// held yet the contribution is adopted verbatim. Otherwise the action with
// the strictly higher confidence wins; ties keep the existing action.
// Reasoning strings are concatenated labeled by agent, and alternative
// actions are unioned without duplicates.
func Integrate(result *RunningResult, c *decision.Contribution) {
	labeled := fmt.Sprintf("[%s] %s", c.AgentType, c.Reasoning)

	if result.Action == "" {
		result.Action = c.Action
		result.Confidence = c.Confidence
		result.Reasoning = labeled
		result.AlternativeActions = unionActions(nil, c.AlternativeActions)
		return
	}

	if c.Confidence > result.Confidence {
		if c.Action != result.Action {
			// The losing action stays visible as an alternative.
			result.AlternativeActions = unionActions(result.AlternativeActions, []string{result.Action})
		}
		result.Action = c.Action
		result.Confidence = c.Confidence
	} else if c.Action != result.Action {
		result.AlternativeActions = unionActions(result.AlternativeActions, []string{c.Action})
	}

	if strings.TrimSpace(c.Reasoning) != "" {
		result.Reasoning = result.Reasoning + "\n" + labeled
	}
	result.AlternativeActions = unionActions(result.AlternativeActions, c.AlternativeActions)
}

// unionActions appends additions preserving order and removing duplicates.
func unionActions(existing []string, additions []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(additions))
	out := make([]string, 0, len(existing)+len(additions))
	for _, a := range existing {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, a := range additions {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
