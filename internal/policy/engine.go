package policy

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbiter/internal/adapters/config"
	"arbiter/internal/domain/experience"
	policystore "arbiter/internal/domain/policy"
	"arbiter/internal/metrics"
	"arbiter/pkg/errors"
	"arbiter/pkg/logger"
	"arbiter/pkg/retry"
)

// ModelName is the snapshot name of the single-policy model.
const ModelName = "decision_policy"

// Recommendation is the policy engine's answer to one recommend call.
type Recommendation struct {
	ExperienceID       uuid.UUID `json:"experience_id"`
	Action             string    `json:"action"`
	Confidence         float64   `json:"confidence"`
	Reasoning          string    `json:"reasoning"`
	AlternativeActions []string  `json:"alternative_actions,omitempty"`
	Explored           bool      `json:"explored"`
}

// OutcomeReport is the result of reporting an outcome for an experience.
// Success is false when the experience id is unknown; this is not an error.
type OutcomeReport struct {
	Success       bool    `json:"success"`
	Reward        float64 `json:"reward,omitempty"`
	Trained       bool    `json:"trained,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

// Engine owns the policy model, the experience buffer, and the exploration
// schedule. All state mutations are serialized through one mutex; the model
// weights have a single writer.
type Engine struct {
	mu sync.Mutex

	cfg        config.PolicyConfig
	model      *Model
	buffer     *Buffer
	calculator *RewardCalculator

	explorationRate float64
	rng             *rand.Rand

	repo      experience.Repository // durable mirror, optional
	modelRepo policystore.Repository
	retryCfg  retry.Config
	log       *logger.Logger
}

// NewEngine creates a policy engine with a fresh model
func NewEngine(cfg config.PolicyConfig, repo experience.Repository, modelRepo policystore.Repository) (*Engine, error) {
	calculator, err := NewRewardCalculator(cfg.RewardStrategy)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:             cfg,
		model:           NewModel(),
		buffer:          NewBuffer(cfg.BufferCapacity),
		calculator:      calculator,
		explorationRate: cfg.InitialExplorationRate,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		repo:            repo,
		modelRepo:       modelRepo,
		retryCfg:        retry.DefaultConfig(),
		log:             logger.Get().With("component", "policy_engine"),
	}

	metrics.ExplorationRate.Set(e.explorationRate)
	return e, nil
}

// Recommend produces an action recommendation for a state over the candidate
// set and records the choice as a pending experience.
func (e *Engine) Recommend(ctx context.Context, state map[string]interface{}, candidates []string, decisionContext map[string]interface{}, explore bool) (*Recommendation, error) {
	if len(state) == 0 {
		return nil, errors.NewValidationError("state", "is required", state)
	}
	if len(candidates) == 0 {
		return nil, errors.NewValidationError("candidate_actions", "is required", candidates)
	}

	features := ExtractFeatures(state)

	e.mu.Lock()
	rec := e.choose(features, candidates, explore)
	exp := &experience.Experience{
		ID:            rec.ExperienceID,
		StateFeatures: features,
		Action:        rec.Action,
		ActionIndex:   e.model.ActionIndex(rec.Action),
		Context:       decisionContext,
		Priority:      Priority(0),
		CreatedAt:     time.Now(),
	}
	e.buffer.Add(exp)
	e.mu.Unlock()

	metrics.ExperiencesRecorded.WithLabelValues("recorded").Inc()

	if e.repo != nil {
		if err := retry.Do(ctx, e.retryCfg, func(ctx context.Context) error {
			return e.repo.Create(ctx, exp)
		}); err != nil {
			e.log.Warnf("Failed to mirror experience %s: %v", exp.ID, err)
		}
	}

	return rec, nil
}

// choose picks explore or exploit under the current exploration rate.
// Caller holds the mutex.
func (e *Engine) choose(features []float64, candidates []string, explore bool) *Recommendation {
	if explore && e.rng.Float64() < e.explorationRate {
		action := candidates[e.rng.Intn(len(candidates))]
		return &Recommendation{
			ExperienceID: uuid.New(),
			Action:       action,
			Confidence:   0.5,
			Reasoning:    fmt.Sprintf("Exploratory choice at exploration rate %.3f", e.explorationRate),
			Explored:     true,
		}
	}

	probs := e.model.Distribution(features, candidates)

	ranked := make([]string, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return probs[ranked[i]] > probs[ranked[j]]
	})

	best := ranked[0]
	return &Recommendation{
		ExperienceID:       uuid.New(),
		Action:             best,
		Confidence:         probs[best],
		Reasoning:          fmt.Sprintf("Policy model v%d selected %q with probability %.3f over %d candidates", e.model.Version, best, probs[best], len(candidates)),
		AlternativeActions: ranked[1:],
	}
}

// Advise satisfies the orchestrator's policy-advisor contract.
func (e *Engine) Advise(ctx context.Context, state map[string]interface{}, candidates []string) (string, float64, error) {
	rec, err := e.Recommend(ctx, state, candidates, nil, true)
	if err != nil {
		return "", 0, err
	}
	return rec.Action, rec.Confidence, nil
}

// ReportOutcome records the observed outcome for an experience, shapes the
// reward, and triggers a learning update once enough rewarded experiences
// have accumulated. An unknown experience id yields Success=false without
// an error.
func (e *Engine) ReportOutcome(ctx context.Context, experienceID uuid.UUID, outcome experience.Outcome) *OutcomeReport {
	reward := e.calculator.Calculate(outcome)
	priority := Priority(reward)

	e.mu.Lock()
	res := e.buffer.SetReward(experienceID, reward, priority)
	e.mu.Unlock()

	if res == RewardUnknown {
		// Recommendation may predate this process; reload from the mirror.
		res = e.reloadExperience(ctx, experienceID, reward, priority)
	}

	switch res {
	case RewardUnknown:
		e.log.Warnf("Outcome for unknown experience %s dropped", experienceID)
		return &OutcomeReport{Success: false, FailureReason: "experience not found"}
	case RewardAlreadySet:
		// Outcome delivery is at-least-once; repeats are acknowledged as-is.
		e.log.Debugf("Duplicate outcome for experience %s ignored", experienceID)
		return &OutcomeReport{Success: true, Reward: reward}
	}

	metrics.ExperiencesRecorded.WithLabelValues("rewarded").Inc()

	if e.repo != nil {
		if err := retry.Do(ctx, e.retryCfg, func(ctx context.Context) error {
			return e.repo.SetReward(ctx, experienceID, reward, priority)
		}); err != nil && !errors.Is(err, errors.ErrNotFound) {
			e.log.Warnf("Failed to persist reward for %s: %v", experienceID, err)
		}
	}

	trained := false
	e.mu.Lock()
	if e.buffer.RewardedCount() >= e.cfg.MinRewardedExperiences {
		e.train()
		trained = true
	}
	e.mu.Unlock()

	return &OutcomeReport{Success: true, Reward: reward, Trained: trained}
}

// reloadExperience pulls an experience from the durable mirror into the
// buffer with the reward applied. A mirror copy that already carries a
// reward is buffered untouched and reported as RewardAlreadySet.
func (e *Engine) reloadExperience(ctx context.Context, id uuid.UUID, reward, priority float64) SetRewardResult {
	if e.repo == nil {
		return RewardUnknown
	}

	exp, err := e.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			e.log.Warnf("Failed to reload experience %s: %v", id, err)
		}
		return RewardUnknown
	}

	res := RewardApplied
	if exp.Rewarded() {
		res = RewardAlreadySet
	} else {
		exp.Reward = &reward
		exp.Priority = priority
		now := time.Now()
		exp.RewardedAt = &now
	}

	e.mu.Lock()
	e.buffer.Add(exp)
	e.mu.Unlock()
	return res
}

// Train runs one learning update if enough rewarded experiences are
// buffered. Exposed for the background trainer.
func (e *Engine) Train(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.buffer.RewardedCount() < e.cfg.MinRewardedExperiences {
		metrics.TrainingRuns.WithLabelValues("skipped").Inc()
		return nil
	}

	e.train()
	return nil
}

// train performs one prioritized-replay update. Caller holds the mutex.
func (e *Engine) train() {
	batch := e.buffer.Sample(e.cfg.BatchSize, e.cfg.PriorityExponent, e.rng)
	if len(batch) == 0 {
		metrics.TrainingRuns.WithLabelValues("skipped").Inc()
		return
	}

	loss := e.model.Update(batch, UpdateConfig{
		LearningRate:       e.cfg.LearningRate,
		ClipEpsilon:        e.cfg.ClipEpsilon,
		EntropyCoefficient: e.cfg.EntropyCoefficient,
	})

	e.explorationRate *= e.cfg.ExplorationDecay
	if e.explorationRate < e.cfg.ExplorationFloor {
		e.explorationRate = e.cfg.ExplorationFloor
	}

	metrics.TrainingRuns.WithLabelValues("success").Inc()
	metrics.PolicyLoss.Set(loss)
	metrics.ExplorationRate.Set(e.explorationRate)

	e.log.Infof("Policy updated: version=%d batch=%d loss=%.4f exploration=%.3f",
		e.model.Version, len(batch), loss, e.explorationRate)
}

// ExplorationRate returns the current epsilon-greedy exploration rate.
func (e *Engine) ExplorationRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.explorationRate
}

// SaveModel snapshots the current weights to the model repository.
func (e *Engine) SaveModel(ctx context.Context) error {
	if e.modelRepo == nil {
		return nil
	}

	e.mu.Lock()
	data, err := e.model.Marshal()
	version := e.model.Version
	e.mu.Unlock()
	if err != nil {
		return err
	}

	snap := &policystore.ModelSnapshot{
		Name:      ModelName,
		Version:   version,
		Weights:   data,
		UpdatedAt: time.Now(),
	}

	return retry.Do(ctx, e.retryCfg, func(ctx context.Context) error {
		return e.modelRepo.Save(ctx, snap)
	})
}

// LoadModel restores the latest snapshot, if any. A missing snapshot leaves
// the fresh model in place.
func (e *Engine) LoadModel(ctx context.Context) error {
	if e.modelRepo == nil {
		return nil
	}

	snap, err := e.modelRepo.Load(ctx, ModelName)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "load policy model")
	}

	model, err := UnmarshalModel(snap.Weights)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.model = model
	e.mu.Unlock()

	e.log.Infof("Policy model restored: version=%d actions=%d", model.Version, len(model.ActionNames))
	return nil
}
