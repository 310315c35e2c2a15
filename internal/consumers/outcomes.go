package consumers

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"arbiter/internal/adapters/kafka"
	"arbiter/internal/domain/experience"
	"arbiter/internal/metrics"
	"arbiter/internal/policy"
	"arbiter/pkg/errors"
	"arbiter/pkg/logger"
)

// OutcomeEvent is the wire shape of a decision-outcome message.
type OutcomeEvent struct {
	ExperienceID string             `json:"experience_id"`
	Outcome      experience.Outcome `json:"outcome"`
}

// OutcomeConsumer feeds observed outcomes from Kafka into the policy
// engine. Malformed messages are logged and skipped; unknown experience ids
// are not errors.
type OutcomeConsumer struct {
	consumer *kafka.Consumer
	engine   *policy.Engine
	log      *logger.Logger
}

// NewOutcomeConsumer creates the outcome consumer
func NewOutcomeConsumer(consumer *kafka.Consumer, engine *policy.Engine) *OutcomeConsumer {
	return &OutcomeConsumer{
		consumer: consumer,
		engine:   engine,
		log:      logger.Get().With("component", "outcome_consumer"),
	}
}

// Run consumes outcome events until the context is cancelled.
func (c *OutcomeConsumer) Run(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handle)
}

func (c *OutcomeConsumer) handle(ctx context.Context, msg kafkago.Message) error {
	var event OutcomeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		metrics.KafkaMessages.WithLabelValues(kafka.TopicDecisionOutcomes, "consumed", "error").Inc()
		return errors.Wrapf(errors.ErrParsing, "malformed outcome event: %v", err)
	}

	id, err := uuid.Parse(event.ExperienceID)
	if err != nil {
		metrics.KafkaMessages.WithLabelValues(kafka.TopicDecisionOutcomes, "consumed", "error").Inc()
		return errors.Wrapf(errors.ErrParsing, "invalid experience id %q", event.ExperienceID)
	}

	report := c.engine.ReportOutcome(ctx, id, event.Outcome)
	if !report.Success {
		c.log.Warnf("Outcome for experience %s not applied: %s", id, report.FailureReason)
	} else {
		c.log.Debugf("Outcome applied: experience=%s reward=%.3f trained=%t", id, report.Reward, report.Trained)
	}

	metrics.KafkaMessages.WithLabelValues(kafka.TopicDecisionOutcomes, "consumed", "success").Inc()
	return nil
}

// Close shuts down the underlying Kafka reader.
func (c *OutcomeConsumer) Close() error {
	return c.consumer.Close()
}
