package workers

import (
	"context"
	"time"

	"arbiter/internal/policy"
)

// ModelSnapshotWorker periodically persists the policy weights so a restart
// resumes from the latest trained state.
type ModelSnapshotWorker struct {
	*BaseWorker
	engine *policy.Engine
}

// NewModelSnapshotWorker creates the model snapshot worker
func NewModelSnapshotWorker(engine *policy.Engine, interval time.Duration, enabled bool) *ModelSnapshotWorker {
	return &ModelSnapshotWorker{
		BaseWorker: NewBaseWorker("model_snapshot", interval, enabled),
		engine:     engine,
	}
}

func (w *ModelSnapshotWorker) Run(ctx context.Context) error {
	start := time.Now()

	if err := w.engine.SaveModel(ctx); err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	w.Log().Debug("Policy model snapshot saved")
	w.RecordRun(time.Since(start))
	return nil
}
