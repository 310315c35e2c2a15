package consumers

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"arbiter/internal/adapters/kafka"
	"arbiter/internal/agents"
	"arbiter/internal/domain/decision"
	"arbiter/internal/metrics"
	"arbiter/pkg/errors"
	"arbiter/pkg/logger"
)

// RequestConsumer drives the orchestrator from decision requests arriving
// on Kafka. Validation failures are logged and skipped; the requester
// observes results on the decision.made topic.
type RequestConsumer struct {
	consumer     *kafka.Consumer
	orchestrator *agents.Orchestrator
	log          *logger.Logger
}

// NewRequestConsumer creates the decision request consumer
func NewRequestConsumer(consumer *kafka.Consumer, orchestrator *agents.Orchestrator) *RequestConsumer {
	return &RequestConsumer{
		consumer:     consumer,
		orchestrator: orchestrator,
		log:          logger.Get().With("component", "request_consumer"),
	}
}

// Run consumes decision requests until the context is cancelled.
func (c *RequestConsumer) Run(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handle)
}

func (c *RequestConsumer) handle(ctx context.Context, msg kafkago.Message) error {
	var req decision.Request
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		metrics.KafkaMessages.WithLabelValues(kafka.TopicDecisionRequests, "consumed", "error").Inc()
		return errors.Wrapf(errors.ErrParsing, "malformed decision request: %v", err)
	}

	d, err := c.orchestrator.Decide(ctx, req)
	if err != nil {
		metrics.KafkaMessages.WithLabelValues(kafka.TopicDecisionRequests, "consumed", "error").Inc()
		return errors.Wrapf(err, "decide %s", req.DecisionType)
	}

	c.log.Infof("Decision %s made for request type=%s action=%s", d.ID, req.DecisionType, d.Action)
	metrics.KafkaMessages.WithLabelValues(kafka.TopicDecisionRequests, "consumed", "success").Inc()
	return nil
}

// Close shuts down the underlying Kafka reader.
func (c *RequestConsumer) Close() error {
	return c.consumer.Close()
}
