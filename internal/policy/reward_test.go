package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/internal/domain/experience"
	"arbiter/pkg/errors"
)

func TestNewRewardCalculator_UnknownStrategy(t *testing.T) {
	_, err := NewRewardCalculator("bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestNewRewardCalculator_KnownStrategies(t *testing.T) {
	for _, s := range []string{"conversion", "engagement", "efficiency", "revenue", "satisfaction", "balanced"} {
		c, err := NewRewardCalculator(s)
		require.NoError(t, err, s)
		assert.Equal(t, RewardStrategy(s), c.Strategy())
	}
}

func TestConversionReward(t *testing.T) {
	c, _ := NewRewardCalculator("conversion")

	converted := experience.Outcome{
		"converted": true,
		"value":     5000.0,
	}
	assert.InDelta(t, 1.5, c.Calculate(converted), 1e-9)

	// Deal value caps at 1.0 extra.
	bigDeal := experience.Outcome{
		"converted": true,
		"value":     50000.0,
	}
	assert.InDelta(t, 2.0, c.Calculate(bigDeal), 1e-9)

	progressed := experience.Outcome{
		"converted":        false,
		"stage_progressed": true,
	}
	assert.InDelta(t, 0.2, c.Calculate(progressed), 1e-9)

	assert.InDelta(t, -0.1, c.Calculate(experience.Outcome{}), 1e-9)
}

func TestEngagementReward(t *testing.T) {
	c, _ := NewRewardCalculator("engagement")

	positive := experience.Outcome{
		"engagement_score": 50.0,
		"clicked":          true,
		"replied":          true,
	}
	assert.InDelta(t, 0.5+0.3+0.5, c.Calculate(positive), 1e-9)

	negative := experience.Outcome{
		"unsubscribed": true,
		"complained":   true,
		"ignored":      true,
	}
	assert.InDelta(t, -2.7, c.Calculate(negative), 1e-9)
}

func TestEfficiencyReward(t *testing.T) {
	c, _ := NewRewardCalculator("efficiency")

	outcome := experience.Outcome{
		"response_time_seconds": 1800.0,
		"resource_usage":        50.0,
		"success":               true,
		"effort":                1.0,
	}
	expected := 0.4*0.5 + 0.3*0.5 + 0.3*0.5
	assert.InDelta(t, expected, c.Calculate(outcome), 1e-9)

	// Slow failed work with heavy resource use scores zero.
	worst := experience.Outcome{
		"response_time_seconds": 7200.0,
		"resource_usage":        200.0,
	}
	assert.InDelta(t, 0.0, c.Calculate(worst), 1e-9)
}

func TestRevenueReward(t *testing.T) {
	c, _ := NewRewardCalculator("revenue")

	outcome := experience.Outcome{
		"revenue":        5000.0,
		"lifetime_value": 10000.0,
		"cost":           2000.0,
		"roi":            50.0,
	}
	expected := 0.5 + 0.25 - 0.2 + 0.5
	assert.InDelta(t, expected, c.Calculate(outcome), 1e-9)

	capped := experience.Outcome{
		"revenue":        100000.0,
		"lifetime_value": 100000.0,
		"cost":           100000.0,
		"roi":            1000.0,
	}
	assert.InDelta(t, 2.0+0.5-0.5+1.0, c.Calculate(capped), 1e-9)
}

func TestSatisfactionReward(t *testing.T) {
	c, _ := NewRewardCalculator("satisfaction")

	outcome := experience.Outcome{
		"satisfaction_score": 9.0,
		"referral":           true,
	}
	assert.InDelta(t, 0.8+1.0, c.Calculate(outcome), 1e-9)

	unhappy := experience.Outcome{
		"satisfaction_score": 2.0,
		"complained":         true,
	}
	assert.InDelta(t, -0.6-1.0, c.Calculate(unhappy), 1e-9)
}

func TestBalancedReward_IsWeightedSum(t *testing.T) {
	outcome := experience.Outcome{
		"converted":          true,
		"value":              5000.0,
		"engagement_score":   40.0,
		"clicked":            true,
		"success":            true,
		"effort":             0.0,
		"revenue":            5000.0,
		"satisfaction_score": 8.0,
	}

	expected := 0.0
	for strategy, weight := range map[string]float64{
		"conversion":   0.3,
		"engagement":   0.2,
		"efficiency":   0.15,
		"revenue":      0.25,
		"satisfaction": 0.1,
	} {
		c, err := NewRewardCalculator(strategy)
		require.NoError(t, err)
		expected += weight * c.Calculate(outcome)
	}

	balanced, _ := NewRewardCalculator("balanced")
	assert.InDelta(t, expected, balanced.Calculate(outcome), 1e-9)
}

func TestPriority(t *testing.T) {
	assert.InDelta(t, 1.51, Priority(1.5), 1e-9)
	assert.InDelta(t, 1.51, Priority(-1.5), 1e-9)
	assert.InDelta(t, 0.01, Priority(0), 1e-9)
}
