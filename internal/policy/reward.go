package policy

import (
	"math"

	"arbiter/internal/domain/experience"
	"arbiter/pkg/errors"
)

// RewardStrategy selects how an observed outcome is shaped into a scalar
// reward signal.
type RewardStrategy string

const (
	RewardConversion   RewardStrategy = "conversion"
	RewardEngagement   RewardStrategy = "engagement"
	RewardEfficiency   RewardStrategy = "efficiency"
	RewardRevenue      RewardStrategy = "revenue"
	RewardSatisfaction RewardStrategy = "satisfaction"
	RewardBalanced     RewardStrategy = "balanced"
)

// Balanced strategy weights over the five base strategies.
const (
	balancedConversionWeight   = 0.3
	balancedEngagementWeight   = 0.2
	balancedEfficiencyWeight   = 0.15
	balancedRevenueWeight      = 0.25
	balancedSatisfactionWeight = 0.1
)

// RewardCalculator maps outcome records to scalar rewards under the
// configured shaping strategy. Calculate is a pure function: missing outcome
// fields contribute zero.
type RewardCalculator struct {
	strategy RewardStrategy
}

// NewRewardCalculator creates a calculator for the named strategy
func NewRewardCalculator(strategy string) (*RewardCalculator, error) {
	s := RewardStrategy(strategy)
	switch s {
	case RewardConversion, RewardEngagement, RewardEfficiency, RewardRevenue, RewardSatisfaction, RewardBalanced:
		return &RewardCalculator{strategy: s}, nil
	}
	return nil, errors.NewValidationError("reward_strategy", "unknown strategy", strategy)
}

// Strategy returns the configured shaping strategy.
func (c *RewardCalculator) Strategy() RewardStrategy {
	return c.strategy
}

// Calculate shapes the outcome into a scalar reward.
func (c *RewardCalculator) Calculate(outcome experience.Outcome) float64 {
	switch c.strategy {
	case RewardConversion:
		return conversionReward(outcome)
	case RewardEngagement:
		return engagementReward(outcome)
	case RewardEfficiency:
		return efficiencyReward(outcome)
	case RewardRevenue:
		return revenueReward(outcome)
	case RewardSatisfaction:
		return satisfactionReward(outcome)
	default:
		return balancedReward(outcome)
	}
}

// Priority derives the replay-sampling priority from a reward. A small
// offset keeps zero-reward experiences sampleable.
func Priority(reward float64) float64 {
	return math.Abs(reward) + 0.01
}

func conversionReward(o experience.Outcome) float64 {
	var reward float64
	if o.Bool("converted") {
		reward += 1.0
		reward += math.Min(o.Float("value")/10000, 1.0)
	} else {
		reward -= 0.1
	}
	if o.Bool("stage_progressed") {
		reward += 0.3
	}
	return reward
}

func engagementReward(o experience.Outcome) float64 {
	reward := o.Float("engagement_score") / 100
	if o.Bool("clicked") {
		reward += 0.3
	}
	if o.Bool("replied") {
		reward += 0.5
	}
	if o.Bool("shared") {
		reward += 0.4
	}
	if o.Bool("unsubscribed") {
		reward -= 1.0
	}
	if o.Bool("complained") {
		reward -= 1.5
	}
	if o.Bool("ignored") {
		reward -= 0.2
	}
	return reward
}

// efficiencyReward rewards fast responses and frugal resource usage, plus
// success normalized by the effort it took.
func efficiencyReward(o experience.Outcome) float64 {
	timeScore := clamp01(1 - o.Float("response_time_seconds")/3600)
	resourceScore := clamp01(1 - o.Float("resource_usage")/100)

	var successScore float64
	if o.Bool("success") {
		successScore = 1 / (1 + o.Float("effort"))
	}

	return 0.4*timeScore + 0.3*resourceScore + 0.3*successScore
}

func revenueReward(o experience.Outcome) float64 {
	reward := math.Min(o.Float("revenue")/10000, 2.0)
	reward += math.Min(o.Float("lifetime_value")/20000, 0.5)
	reward -= math.Min(o.Float("cost")/10000, 0.5)
	reward += math.Min(o.Float("roi")/100, 1.0)
	return reward
}

func satisfactionReward(o experience.Outcome) float64 {
	reward := (o.Float("satisfaction_score") - 5) / 5
	if o.Bool("referral") {
		reward += 1.0
	}
	if o.Bool("testimonial") {
		reward += 0.8
	}
	if o.Bool("complained") {
		reward -= 1.0
	}
	return reward
}

func balancedReward(o experience.Outcome) float64 {
	return balancedConversionWeight*conversionReward(o) +
		balancedEngagementWeight*engagementReward(o) +
		balancedEfficiencyWeight*efficiencyReward(o) +
		balancedRevenueWeight*revenueReward(o) +
		balancedSatisfactionWeight*satisfactionReward(o)
}
