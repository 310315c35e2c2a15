package policy

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"arbiter/internal/adapters/config"
	"arbiter/internal/domain/experience"
	policystore "arbiter/internal/domain/policy"
	"arbiter/pkg/errors"
)

func testPolicyConfig() config.PolicyConfig {
	return config.PolicyConfig{
		InitialExplorationRate: 0.1,
		ExplorationFloor:       0.01,
		ExplorationDecay:       0.995,
		BatchSize:              32,
		MinRewardedExperiences: 10,
		PriorityExponent:       0.6,
		ClipEpsilon:            0.2,
		EntropyCoefficient:     0.01,
		LearningRate:           0.01,
		BufferCapacity:         1000,
		RewardStrategy:         "conversion",
	}
}

// memoryExperienceRepo is an in-memory experience.Repository for tests.
type memoryExperienceRepo struct {
	mu          sync.Mutex
	experiences map[uuid.UUID]*experience.Experience
}

func newMemoryExperienceRepo() *memoryExperienceRepo {
	return &memoryExperienceRepo{experiences: make(map[uuid.UUID]*experience.Experience)}
}

func (r *memoryExperienceRepo) Create(ctx context.Context, exp *experience.Experience) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *exp
	r.experiences[exp.ID] = &clone
	return nil
}

func (r *memoryExperienceRepo) GetByID(ctx context.Context, id uuid.UUID) (*experience.Experience, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.experiences[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "experience %s", id)
	}
	clone := *exp
	return &clone, nil
}

func (r *memoryExperienceRepo) SetReward(ctx context.Context, id uuid.UUID, reward, priority float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.experiences[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "experience %s", id)
	}
	if exp.Reward == nil {
		exp.Reward = &reward
		exp.Priority = priority
	}
	return nil
}

func (r *memoryExperienceRepo) ListRewarded(ctx context.Context, limit int) ([]*experience.Experience, error) {
	return nil, nil
}

// memoryModelRepo is an in-memory policy snapshot store.
type memoryModelRepo struct {
	mu        sync.Mutex
	snapshots map[string]*policystore.ModelSnapshot
}

func newMemoryModelRepo() *memoryModelRepo {
	return &memoryModelRepo{snapshots: make(map[string]*policystore.ModelSnapshot)}
}

func (r *memoryModelRepo) Save(ctx context.Context, snap *policystore.ModelSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snap.Name] = snap
	return nil
}

func (r *memoryModelRepo) Load(ctx context.Context, name string) (*policystore.ModelSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snapshots[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "model %s", name)
	}
	return snap, nil
}

func TestEngine_RecommendValidation(t *testing.T) {
	e, err := NewEngine(testPolicyConfig(), nil, nil)
	require.NoError(t, err)

	_, err = e.Recommend(context.Background(), nil, []string{"a"}, nil, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = e.Recommend(context.Background(), map[string]interface{}{"value": 1.0}, nil, nil, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestNewEngine_RejectsUnknownRewardStrategy(t *testing.T) {
	cfg := testPolicyConfig()
	cfg.RewardStrategy = "vibes"

	_, err := NewEngine(cfg, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestEngine_RecommendReturnsCandidate(t *testing.T) {
	e, err := NewEngine(testPolicyConfig(), newMemoryExperienceRepo(), nil)
	require.NoError(t, err)

	candidates := []string{"qualify_lead", "nurture_lead", "disqualify_lead"}
	rec, err := e.Recommend(context.Background(), map[string]interface{}{"value": 5000.0}, candidates, nil, false)
	require.NoError(t, err)

	assert.Contains(t, candidates, rec.Action)
	assert.NotEqual(t, uuid.Nil, rec.ExperienceID)
	assert.False(t, rec.Explored)
	assert.Greater(t, rec.Confidence, 0.0)
	assert.Len(t, rec.AlternativeActions, 2)
	assert.NotContains(t, rec.AlternativeActions, rec.Action)
}

func TestEngine_RecommendMirrorsExperience(t *testing.T) {
	repo := newMemoryExperienceRepo()
	e, err := NewEngine(testPolicyConfig(), repo, nil)
	require.NoError(t, err)

	rec, err := e.Recommend(context.Background(), map[string]interface{}{"value": 1.0}, []string{"a", "b"}, nil, false)
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), rec.ExperienceID)
	require.NoError(t, err)
	assert.Equal(t, rec.Action, stored.Action)
	assert.Len(t, stored.StateFeatures, FeatureVectorSize)
	assert.Nil(t, stored.Reward)
}

func TestEngine_ReportOutcomeUnknownExperience(t *testing.T) {
	e, err := NewEngine(testPolicyConfig(), newMemoryExperienceRepo(), nil)
	require.NoError(t, err)

	report := e.ReportOutcome(context.Background(), uuid.New(), experience.Outcome{"converted": true})

	assert.False(t, report.Success)
	assert.Equal(t, "experience not found", report.FailureReason)
}

func TestEngine_ReportOutcomeShapesReward(t *testing.T) {
	e, err := NewEngine(testPolicyConfig(), newMemoryExperienceRepo(), nil)
	require.NoError(t, err)

	rec, err := e.Recommend(context.Background(), map[string]interface{}{"value": 5000.0}, []string{"a", "b"}, nil, false)
	require.NoError(t, err)

	report := e.ReportOutcome(context.Background(), rec.ExperienceID, experience.Outcome{
		"converted": true,
		"value":     5000.0,
	})

	assert.True(t, report.Success)
	assert.InDelta(t, 1.5, report.Reward, 1e-9)
	assert.False(t, report.Trained)
}

func TestEngine_ReportOutcomeReloadsFromMirror(t *testing.T) {
	repo := newMemoryExperienceRepo()

	first, err := NewEngine(testPolicyConfig(), repo, nil)
	require.NoError(t, err)
	rec, err := first.Recommend(context.Background(), map[string]interface{}{"value": 1.0}, []string{"a", "b"}, nil, false)
	require.NoError(t, err)

	// A fresh engine has an empty buffer but shares the durable mirror.
	second, err := NewEngine(testPolicyConfig(), repo, nil)
	require.NoError(t, err)

	report := second.ReportOutcome(context.Background(), rec.ExperienceID, experience.Outcome{"converted": true})

	assert.True(t, report.Success)
	assert.InDelta(t, 1.0, report.Reward, 1e-9)
}

func TestEngine_ReportOutcomeDuplicateIsIdempotent(t *testing.T) {
	repo := newMemoryExperienceRepo()
	e, err := NewEngine(testPolicyConfig(), repo, nil)
	require.NoError(t, err)

	rec, err := e.Recommend(context.Background(), map[string]interface{}{"value": 1.0}, []string{"a", "b"}, nil, false)
	require.NoError(t, err)

	outcome := experience.Outcome{"converted": true}
	first := e.ReportOutcome(context.Background(), rec.ExperienceID, outcome)
	require.True(t, first.Success)

	// Outcome delivery is at-least-once; a redelivered report must not grow
	// the buffer or the rewarded count.
	second := e.ReportOutcome(context.Background(), rec.ExperienceID, outcome)
	assert.True(t, second.Success)
	assert.InDelta(t, first.Reward, second.Reward, 1e-9)
	assert.False(t, second.Trained)
	assert.Equal(t, 1, e.buffer.Len())
	assert.Equal(t, 1, e.buffer.RewardedCount())
}

func TestEngine_TrainingTriggersAtThreshold(t *testing.T) {
	cfg := testPolicyConfig()
	cfg.MinRewardedExperiences = 3

	e, err := NewEngine(cfg, nil, nil)
	require.NoError(t, err)

	state := map[string]interface{}{"value": 5000.0}
	candidates := []string{"a", "b"}

	var reports []*OutcomeReport
	for i := 0; i < 3; i++ {
		rec, err := e.Recommend(context.Background(), state, candidates, nil, false)
		require.NoError(t, err)
		reports = append(reports, e.ReportOutcome(context.Background(), rec.ExperienceID, experience.Outcome{"converted": true}))
	}

	assert.False(t, reports[0].Trained)
	assert.False(t, reports[1].Trained)
	assert.True(t, reports[2].Trained)
}

func TestEngine_ExplorationRateDecaysToFloor(t *testing.T) {
	cfg := testPolicyConfig()
	cfg.MinRewardedExperiences = 1
	cfg.ExplorationDecay = 0.5
	cfg.ExplorationFloor = 0.02

	e, err := NewEngine(cfg, nil, nil)
	require.NoError(t, err)

	require.InDelta(t, 0.1, e.ExplorationRate(), 1e-9)

	state := map[string]interface{}{"value": 5000.0}
	prev := e.ExplorationRate()
	for i := 0; i < 10; i++ {
		rec, err := e.Recommend(context.Background(), state, []string{"a", "b"}, nil, false)
		require.NoError(t, err)
		e.ReportOutcome(context.Background(), rec.ExperienceID, experience.Outcome{"converted": true})

		current := e.ExplorationRate()
		assert.LessOrEqual(t, current, prev)
		prev = current
	}

	assert.InDelta(t, 0.02, e.ExplorationRate(), 1e-9)
}

func TestEngine_TrainBelowThresholdIsNoop(t *testing.T) {
	e, err := NewEngine(testPolicyConfig(), nil, nil)
	require.NoError(t, err)

	require.NoError(t, e.Train(context.Background()))
	assert.InDelta(t, 0.1, e.ExplorationRate(), 1e-9)
}

func TestEngine_SaveAndLoadModel(t *testing.T) {
	modelRepo := newMemoryModelRepo()
	cfg := testPolicyConfig()
	cfg.MinRewardedExperiences = 1

	e, err := NewEngine(cfg, nil, modelRepo)
	require.NoError(t, err)

	rec, err := e.Recommend(context.Background(), map[string]interface{}{"value": 5000.0}, []string{"a", "b"}, nil, false)
	require.NoError(t, err)
	e.ReportOutcome(context.Background(), rec.ExperienceID, experience.Outcome{"converted": true})

	require.NoError(t, e.SaveModel(context.Background()))

	restored, err := NewEngine(cfg, nil, modelRepo)
	require.NoError(t, err)
	require.NoError(t, restored.LoadModel(context.Background()))

	snap, err := modelRepo.Load(context.Background(), ModelName)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
}

func TestEngine_LoadModelMissingSnapshot(t *testing.T) {
	e, err := NewEngine(testPolicyConfig(), nil, newMemoryModelRepo())
	require.NoError(t, err)

	assert.NoError(t, e.LoadModel(context.Background()))
}

func TestEngine_AdviseMatchesRecommend(t *testing.T) {
	cfg := testPolicyConfig()
	cfg.InitialExplorationRate = 0 // deterministic exploitation

	e, err := NewEngine(cfg, nil, nil)
	require.NoError(t, err)

	action, confidence, err := e.Advise(context.Background(), map[string]interface{}{"value": 1.0}, []string{"a", "b"})
	require.NoError(t, err)
	assert.Contains(t, []string{"a", "b"}, action)
	assert.InDelta(t, 0.5, confidence, 1e-9)
}
