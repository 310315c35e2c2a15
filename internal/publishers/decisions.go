package publishers

import (
	"context"
	"time"

	"arbiter/internal/adapters/kafka"
	"arbiter/internal/domain/decision"
	"arbiter/internal/metrics"
	"arbiter/pkg/logger"
)

// DecisionMadeEvent is the wire shape announcing a finished decision.
type DecisionMadeEvent struct {
	DecisionID   string    `json:"decision_id"`
	DecisionType string    `json:"decision_type"`
	Mode         string    `json:"collaboration_mode"`
	Action       string    `json:"action"`
	Confidence   float64   `json:"confidence"`
	Conflicts    int       `json:"conflicts"`
	DecidedAt    time.Time `json:"decided_at"`
}

// DecisionPublisher announces finished decisions on Kafka so downstream
// systems can act on them and later report outcomes.
type DecisionPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewDecisionPublisher creates a decision publisher
func NewDecisionPublisher(producer *kafka.Producer) *DecisionPublisher {
	return &DecisionPublisher{
		producer: producer,
		log:      logger.Get().With("component", "decision_publisher"),
	}
}

// RecordDecision publishes a decision.made event. Publish failures are
// logged, not surfaced; the decision itself is already persisted.
func (p *DecisionPublisher) RecordDecision(ctx context.Context, d *decision.Decision) {
	event := DecisionMadeEvent{
		DecisionID:   d.ID.String(),
		DecisionType: d.DecisionType,
		Mode:         string(d.Mode),
		Action:       d.Action,
		Confidence:   d.Confidence,
		Conflicts:    len(d.Conflicts),
		DecidedAt:    d.EndTime,
	}

	err := p.producer.Publish(ctx, kafka.TopicDecisionMade, d.ID.String(), event)
	if err != nil {
		p.log.Errorf("Failed to publish decision %s: %v", d.ID, err)
		metrics.KafkaMessages.WithLabelValues(kafka.TopicDecisionMade, "produced", "error").Inc()
		return
	}

	metrics.KafkaMessages.WithLabelValues(kafka.TopicDecisionMade, "produced", "success").Inc()
}
