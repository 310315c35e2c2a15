package explain

import (
	"math"

	"arbiter/internal/domain/decision"
	"arbiter/internal/domain/explanation"
)

// confidenceLabel maps an overall confidence to its qualitative label.
func confidenceLabel(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "Very High"
	case confidence >= 0.75:
		return "High"
	case confidence >= 0.55:
		return "Moderate"
	case confidence >= 0.35:
		return "Low"
	default:
		return "Very Low"
	}
}

// analyzeConfidence computes summary statistics over the decision's own
// confidence and the per-agent contributions.
func analyzeConfidence(d *decision.Decision) explanation.ConfidenceAnalysis {
	values := []float64{d.Confidence}
	perAgent := make(map[string]float64, len(d.Contributions))
	for agentType, c := range d.Contributions {
		values = append(values, c.Confidence)
		perAgent[string(agentType)] = c.Confidence
	}

	min, max, sum := values[0], values[0], 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	avg := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - avg) * (v - avg)
	}
	variance /= float64(len(values))

	return explanation.ConfidenceAnalysis{
		Overall:          d.Confidence,
		Min:              min,
		Max:              max,
		Avg:              avg,
		StdDev:           math.Sqrt(variance),
		UncertaintyLevel: 1 - d.Confidence,
		Label:            confidenceLabel(d.Confidence),
		PerAgent:         perAgent,
	}
}
