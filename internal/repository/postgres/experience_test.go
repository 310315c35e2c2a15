package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"arbiter/internal/domain/experience"
	"arbiter/internal/testsupport"
	"arbiter/pkg/errors"
)

func sampleExperience() *experience.Experience {
	return &experience.Experience{
		ID:            uuid.New(),
		StateFeatures: []float64{0.5, 0.8, 0, 0.25},
		Action:        "qualify_lead",
		ActionIndex:   0,
		Context:       map[string]interface{}{"leadId": "L1"},
		Priority:      0.01,
		CreatedAt:     time.Now().Truncate(time.Millisecond),
	}
}

func TestExperienceRepository_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewExperienceRepository(testDB.DB())
	ctx := context.Background()

	exp := sampleExperience()
	require.NoError(t, repo.Create(ctx, exp))

	stored, err := repo.GetByID(ctx, exp.ID)
	require.NoError(t, err)

	assert.Equal(t, exp.StateFeatures, stored.StateFeatures)
	assert.Equal(t, exp.Action, stored.Action)
	assert.Nil(t, stored.Reward)
	assert.Nil(t, stored.RewardedAt)
}

func TestExperienceRepository_SetReward(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewExperienceRepository(testDB.DB())
	ctx := context.Background()

	exp := sampleExperience()
	require.NoError(t, repo.Create(ctx, exp))

	require.NoError(t, repo.SetReward(ctx, exp.ID, 1.5, 1.51))

	stored, err := repo.GetByID(ctx, exp.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Reward)
	assert.InDelta(t, 1.5, *stored.Reward, 1e-9)
	assert.InDelta(t, 1.51, stored.Priority, 1e-9)
	assert.NotNil(t, stored.RewardedAt)

	// The mutation is single-shot.
	err = repo.SetReward(ctx, exp.ID, 2.0, 2.01)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	stored, err = repo.GetByID(ctx, exp.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, *stored.Reward, 1e-9)
}

func TestExperienceRepository_SetRewardUnknownID(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewExperienceRepository(testDB.DB())

	err := repo.SetReward(context.Background(), uuid.New(), 1.0, 1.01)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestExperienceRepository_ListRewarded(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewExperienceRepository(testDB.DB())
	ctx := context.Background()

	rewardedExp := sampleExperience()
	require.NoError(t, repo.Create(ctx, rewardedExp))
	require.NoError(t, repo.SetReward(ctx, rewardedExp.ID, 0.7, 0.71))

	pending := sampleExperience()
	require.NoError(t, repo.Create(ctx, pending))

	listed, err := repo.ListRewarded(ctx, 100)
	require.NoError(t, err)
	require.NotEmpty(t, listed)

	ids := make(map[uuid.UUID]bool, len(listed))
	for _, exp := range listed {
		require.NotNil(t, exp.Reward)
		ids[exp.ID] = true
	}
	assert.True(t, ids[rewardedExp.ID])
	assert.False(t, ids[pending.ID])
}
