package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/pkg/errors"
)

// Mock worker for testing
type mockWorker struct {
	*BaseWorker
	runCount int32
	runFunc  func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{
		BaseWorker: NewBaseWorker(name, interval, enabled),
		runFunc:    func(ctx context.Context) error { return nil },
	}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runCount, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) GetRunCount() int {
	return int(atomic.LoadInt32(&m.runCount))
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("test-worker", 100*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())

	time.Sleep(250 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
	assert.False(t, scheduler.IsRunning())

	// Immediate run plus at least one tick
	assert.GreaterOrEqual(t, worker.GetRunCount(), 2)
}

func TestScheduler_DisabledWorker(t *testing.T) {
	scheduler := NewScheduler()

	enabledWorker := newMockWorker("enabled-worker", 100*time.Millisecond, true)
	disabledWorker := newMockWorker("disabled-worker", 100*time.Millisecond, false)

	scheduler.RegisterWorker(enabledWorker)
	scheduler.RegisterWorker(disabledWorker)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(250 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Greater(t, enabledWorker.GetRunCount(), 0)
	assert.Equal(t, 0, disabledWorker.GetRunCount())
}

func TestScheduler_CannotStartTwice(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("test-worker", 100*time.Millisecond, true))

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))
	assert.Error(t, scheduler.Start(ctx))

	scheduler.Stop()
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	scheduler := NewScheduler()
	assert.Error(t, scheduler.Stop())
}

func TestScheduler_SurvivesWorkerPanic(t *testing.T) {
	scheduler := NewScheduler()

	panicking := newMockWorker("panicking-worker", 50*time.Millisecond, true)
	panicking.runFunc = func(ctx context.Context) error {
		panic("boom")
	}
	healthy := newMockWorker("healthy-worker", 50*time.Millisecond, true)

	scheduler.RegisterWorker(panicking)
	scheduler.RegisterWorker(healthy)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Greater(t, healthy.GetRunCount(), 1)
}

func TestScheduler_ContextCancellation(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("test-worker", 100*time.Millisecond, true))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))

	cancel()
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
}

func TestBaseWorker_Health(t *testing.T) {
	w := NewBaseWorker("health-worker", time.Minute, true)

	w.RecordRun(100 * time.Millisecond)
	w.RecordRun(200 * time.Millisecond)
	w.RecordError(errors.New("transient failure"), 300*time.Millisecond)

	health := w.Health()
	assert.Equal(t, int64(3), health.RunCount)
	assert.Equal(t, int64(1), health.ErrorCount)
	assert.Equal(t, 200*time.Millisecond, health.AvgDuration)
	assert.Error(t, health.LastError)
	assert.True(t, health.Enabled)

	// A subsequent success clears the last error.
	w.RecordRun(100 * time.Millisecond)
	assert.NoError(t, w.Health().LastError)
}
