package explain

import (
	"fmt"
	"time"

	"arbiter/internal/domain/decision"
	"arbiter/internal/domain/explanation"
)

// buildTrace reconstructs the ordered step sequence of a collaboration run.
// Contribution timestamps are interpolated between the run's start and end
// times. At minimal detail the step payloads are elided entirely.
func buildTrace(d *decision.Decision, detail explanation.DetailLevel) []explanation.TraceStep {
	agentTypes := orderedAgents(d)

	steps := make([]explanation.TraceStep, 0, len(agentTypes)+len(d.Resolutions)+3)
	steps = append(steps, explanation.TraceStep{
		Name:      "initialization",
		Timestamp: d.StartTime,
		Detail: stepDetail(detail, map[string]interface{}{
			"decision_type":      d.DecisionType,
			"collaboration_mode": string(d.Mode),
		}),
	})
	steps = append(steps, explanation.TraceStep{
		Name:      "context_processing",
		Timestamp: d.StartTime,
		Detail: stepDetail(detail, map[string]interface{}{
			"context_keys": len(d.Context),
		}),
	})

	if detail >= explanation.DetailStandard {
		for i, agentType := range agentTypes {
			c := d.Contributions[agentType]
			steps = append(steps, explanation.TraceStep{
				Name:      fmt.Sprintf("%s_contribution", agentType),
				Timestamp: interpolate(d.StartTime, d.EndTime, i+1, len(agentTypes)+1),
				Detail: stepDetail(detail, map[string]interface{}{
					"action":            c.Action,
					"confidence":        c.Confidence,
					"is_error_response": c.IsErrorResponse,
				}),
			})
		}
	}

	for _, r := range d.Resolutions {
		steps = append(steps, explanation.TraceStep{
			Name:      "conflict_resolution",
			Timestamp: d.EndTime,
			Detail: stepDetail(detail, map[string]interface{}{
				"conflict_id":        r.ConflictID,
				"recommended_action": r.RecommendedAction,
				"is_fallback":        r.IsFallback,
			}),
		})
	}

	steps = append(steps, explanation.TraceStep{
		Name:      "final_decision",
		Timestamp: d.EndTime,
		Detail: stepDetail(detail, map[string]interface{}{
			"action":     d.Action,
			"confidence": d.Confidence,
		}),
	})

	for i := range steps {
		steps[i].Index = i
	}
	return steps
}

func stepDetail(detail explanation.DetailLevel, payload map[string]interface{}) map[string]interface{} {
	if detail <= explanation.DetailMinimal {
		return nil
	}
	return payload
}

// interpolate places step i of n evenly between start and end.
func interpolate(start, end time.Time, i, n int) time.Time {
	if n <= 0 || !end.After(start) {
		return start
	}
	return start.Add(end.Sub(start) * time.Duration(i) / time.Duration(n))
}
