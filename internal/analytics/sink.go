package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"arbiter/internal/domain/decision"
	"arbiter/internal/metrics"
	"arbiter/pkg/logger"
)

const decisionEventsTable = "decision_events"

// DecisionEvent is one analytics row derived from a finished decision.
type DecisionEvent struct {
	DecisionID    string
	DecisionType  string
	Mode          string
	Action        string
	Confidence    float64
	AgentCount    uint8
	ConflictCount uint8
	FallbackCount uint8
	DurationMs    uint32
	CreatedAt     time.Time
}

// Sink accumulates decision events in memory and flushes them to ClickHouse
// in batches. Single-row inserts are inefficient there, so events buffer up
// to maxBatchSize or maxAge, whichever comes first.
type Sink struct {
	conn driver.Conn
	log  *logger.Logger

	mu        sync.Mutex
	buffer    []DecisionEvent
	lastFlush time.Time

	maxBatchSize int
	maxAge       time.Duration

	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewSink creates a decision-event sink over a ClickHouse connection
func NewSink(conn driver.Conn) *Sink {
	return &Sink{
		conn:         conn,
		buffer:       make([]DecisionEvent, 0, 500),
		maxBatchSize: 500,
		maxAge:       5 * time.Second,
		lastFlush:    time.Now(),
		stopCh:       make(chan struct{}),
		log:          logger.Get().With("component", "analytics_sink"),
	}
}

// Start begins the background flush ticker
func (s *Sink) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ticker = time.NewTicker(s.maxAge)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.flushLoop(ctx)

	s.log.Infof("Analytics sink started (maxBatchSize=%d, maxAge=%v)", s.maxBatchSize, s.maxAge)
}

// RecordDecision buffers an analytics event for a finished decision.
func (s *Sink) RecordDecision(ctx context.Context, d *decision.Decision) {
	fallbacks := 0
	for _, c := range d.Contributions {
		if c.IsErrorResponse {
			fallbacks++
		}
	}

	event := DecisionEvent{
		DecisionID:    d.ID.String(),
		DecisionType:  d.DecisionType,
		Mode:          string(d.Mode),
		Action:        d.Action,
		Confidence:    d.Confidence,
		AgentCount:    uint8(len(d.Contributions)),
		ConflictCount: uint8(len(d.Conflicts)),
		FallbackCount: uint8(fallbacks),
		DurationMs:    uint32(d.EndTime.Sub(d.StartTime).Milliseconds()),
		CreatedAt:     d.EndTime,
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, event)
	shouldFlush := len(s.buffer) >= s.maxBatchSize
	s.mu.Unlock()

	if shouldFlush {
		if err := s.Flush(ctx); err != nil {
			s.log.Errorf("Size-triggered flush failed: %v", err)
		}
	}
}

// Flush writes all buffered events to ClickHouse
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return nil
	}

	batch := s.buffer
	s.buffer = make([]DecisionEvent, 0, s.maxBatchSize)
	s.lastFlush = time.Now()
	s.mu.Unlock()

	start := time.Now()
	err := s.insert(ctx, batch)
	metrics.RecordDBQuery("clickhouse", "insert_decision_events", time.Since(start), err)

	if err != nil {
		s.log.Errorf("Failed to flush %d events: %v", len(batch), err)
		return err
	}

	s.log.Debugf("Flushed %d events (took %v)", len(batch), time.Since(start))
	return nil
}

func (s *Sink) insert(ctx context.Context, events []DecisionEvent) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+decisionEventsTable)
	if err != nil {
		return err
	}

	for _, e := range events {
		if err := batch.Append(
			e.DecisionID,
			e.DecisionType,
			e.Mode,
			e.Action,
			e.Confidence,
			e.AgentCount,
			e.ConflictCount,
			e.FallbackCount,
			e.DurationMs,
			e.CreatedAt,
		); err != nil {
			return err
		}
	}

	return batch.Send()
}

func (s *Sink) flushLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Analytics sink stopping, performing final flush...")
			if err := s.Flush(context.Background()); err != nil {
				s.log.Errorf("Final flush failed: %v", err)
			}
			return

		case <-s.stopCh:
			if err := s.Flush(context.Background()); err != nil {
				s.log.Errorf("Final flush failed: %v", err)
			}
			return

		case <-s.ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.log.Errorf("Periodic flush failed: %v", err)
			}
		}
	}
}

// Stop flushes remaining events and shuts the sink down.
func (s *Sink) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Analytics sink stopped gracefully")
		return nil
	case <-ctx.Done():
		s.log.Warn("Analytics sink stop timed out")
		return ctx.Err()
	}
}
