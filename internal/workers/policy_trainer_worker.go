package workers

import (
	"context"
	"time"

	"arbiter/internal/policy"
)

// PolicyTrainerWorker periodically runs a learning update on the policy
// engine so training progresses even when outcomes arrive slowly.
type PolicyTrainerWorker struct {
	*BaseWorker
	engine *policy.Engine
}

// NewPolicyTrainerWorker creates the policy trainer worker
func NewPolicyTrainerWorker(engine *policy.Engine, interval time.Duration, enabled bool) *PolicyTrainerWorker {
	return &PolicyTrainerWorker{
		BaseWorker: NewBaseWorker("policy_trainer", interval, enabled),
		engine:     engine,
	}
}

func (w *PolicyTrainerWorker) Run(ctx context.Context) error {
	start := time.Now()

	if err := w.engine.Train(ctx); err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	w.RecordRun(time.Since(start))
	return nil
}
