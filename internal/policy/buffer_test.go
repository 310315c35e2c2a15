package policy

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"arbiter/internal/domain/experience"
)

func newExperience(action string) *experience.Experience {
	return &experience.Experience{
		ID:            uuid.New(),
		StateFeatures: NeutralFeatures(),
		Action:        action,
		Priority:      0.01,
		CreatedAt:     time.Now(),
	}
}

func rewarded(action string, reward float64) *experience.Experience {
	exp := newExperience(action)
	exp.Reward = &reward
	exp.Priority = Priority(reward)
	return exp
}

func TestBuffer_AddAndGet(t *testing.T) {
	b := NewBuffer(4)
	exp := newExperience("a")
	b.Add(exp)

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, exp, b.Get(exp.ID))
	assert.Nil(t, b.Get(uuid.New()))
}

func TestBuffer_EvictsOldestAtCapacity(t *testing.T) {
	b := NewBuffer(3)
	first := newExperience("a")
	b.Add(first)
	b.Add(newExperience("b"))
	b.Add(newExperience("c"))

	b.Add(newExperience("d"))

	assert.Equal(t, 3, b.Len())
	assert.Nil(t, b.Get(first.ID))
}

func TestBuffer_EvictionDropsRewardedCount(t *testing.T) {
	b := NewBuffer(2)
	b.Add(rewarded("a", 1.0))
	b.Add(newExperience("b"))
	require.Equal(t, 1, b.RewardedCount())

	b.Add(newExperience("c"))
	assert.Equal(t, 0, b.RewardedCount())
}

func TestBuffer_SetReward(t *testing.T) {
	b := NewBuffer(4)
	exp := newExperience("a")
	b.Add(exp)

	require.Equal(t, RewardApplied, b.SetReward(exp.ID, 0.7, Priority(0.7)))
	assert.Equal(t, 1, b.RewardedCount())
	require.NotNil(t, exp.Reward)
	assert.InDelta(t, 0.7, *exp.Reward, 1e-9)
	assert.InDelta(t, 0.71, exp.Priority, 1e-9)

	// A second report for the same experience leaves it untouched.
	assert.Equal(t, RewardAlreadySet, b.SetReward(exp.ID, 0.9, Priority(0.9)))
	assert.Equal(t, 1, b.RewardedCount())
	assert.InDelta(t, 0.7, *exp.Reward, 1e-9)

	assert.Equal(t, RewardUnknown, b.SetReward(uuid.New(), 0.5, 0.51))
}

func TestBuffer_AddReplacesExistingID(t *testing.T) {
	b := NewBuffer(4)
	exp := rewarded("a", 1.0)
	b.Add(exp)

	replacement := rewarded("a", 0.5)
	replacement.ID = exp.ID
	b.Add(replacement)

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 1, b.RewardedCount())
	assert.Equal(t, replacement, b.Get(exp.ID))
}

func TestBuffer_SampleOnlyRewarded(t *testing.T) {
	b := NewBuffer(16)
	b.Add(newExperience("unrewarded"))
	want := rewarded("a", 1.0)
	b.Add(want)

	rng := rand.New(rand.NewSource(1))
	batch := b.Sample(5, 0.6, rng)

	require.Len(t, batch, 1)
	assert.Equal(t, want, batch[0])
}

func TestBuffer_SampleWithoutReplacement(t *testing.T) {
	b := NewBuffer(16)
	for i := 0; i < 8; i++ {
		b.Add(rewarded("a", float64(i)))
	}

	rng := rand.New(rand.NewSource(42))
	batch := b.Sample(8, 0.6, rng)
	require.Len(t, batch, 8)

	seen := make(map[uuid.UUID]bool)
	for _, exp := range batch {
		assert.False(t, seen[exp.ID])
		seen[exp.ID] = true
	}
}

func TestBuffer_SampleEmpty(t *testing.T) {
	b := NewBuffer(16)
	b.Add(newExperience("a"))

	rng := rand.New(rand.NewSource(1))
	assert.Nil(t, b.Sample(4, 0.6, rng))
}

func TestBuffer_SampleFavorsHighPriority(t *testing.T) {
	b := NewBuffer(64)
	high := rewarded("high", 10.0)
	b.Add(high)
	for i := 0; i < 20; i++ {
		b.Add(rewarded("low", 0.01))
	}

	rng := rand.New(rand.NewSource(7))
	hits := 0
	for i := 0; i < 200; i++ {
		batch := b.Sample(1, 0.6, rng)
		require.Len(t, batch, 1)
		if batch[0].ID == high.ID {
			hits++
		}
	}

	// Uniform sampling would land on the high-priority item ~5% of draws.
	assert.Greater(t, hits, 60)
}
