package consumers

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"arbiter/internal/adapters/kafka"
	"arbiter/internal/domain/explanation"
	"arbiter/internal/explain"
	"arbiter/internal/metrics"
	"arbiter/pkg/errors"
	"arbiter/pkg/logger"
)

// ExplanationRequest is the wire shape of an on-demand explanation request.
type ExplanationRequest struct {
	DecisionID      string `json:"decision_id"`
	Audience        string `json:"audience,omitempty"`
	DetailLevel     int    `json:"detail_level,omitempty"`
	Counterfactuals bool   `json:"include_counterfactuals,omitempty"`
	Format          string `json:"format,omitempty"`
}

// ExplanationReadyEvent carries a rendered explanation back to requesters.
type ExplanationReadyEvent struct {
	DecisionID string `json:"decision_id"`
	Audience   string `json:"audience"`
	Format     string `json:"format"`
	Rendered   string `json:"rendered"`
	NotFound   bool   `json:"not_found,omitempty"`
}

// ExplanationConsumer serves explanation requests arriving on Kafka and
// publishes rendered results. Unknown decision ids produce a not-found
// event rather than an error.
type ExplanationConsumer struct {
	consumer *kafka.Consumer
	producer *kafka.Producer
	engine   *explain.Engine
	log      *logger.Logger
}

// NewExplanationConsumer creates the explanation request consumer
func NewExplanationConsumer(consumer *kafka.Consumer, producer *kafka.Producer, engine *explain.Engine) *ExplanationConsumer {
	return &ExplanationConsumer{
		consumer: consumer,
		producer: producer,
		engine:   engine,
		log:      logger.Get().With("component", "explanation_consumer"),
	}
}

// Run consumes explanation requests until the context is cancelled.
func (c *ExplanationConsumer) Run(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handle)
}

func (c *ExplanationConsumer) handle(ctx context.Context, msg kafkago.Message) error {
	var req ExplanationRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		metrics.KafkaMessages.WithLabelValues(kafka.TopicExplanationRequests, "consumed", "error").Inc()
		return errors.Wrapf(errors.ErrParsing, "malformed explanation request: %v", err)
	}

	decisionID, err := uuid.Parse(req.DecisionID)
	if err != nil {
		metrics.KafkaMessages.WithLabelValues(kafka.TopicExplanationRequests, "consumed", "error").Inc()
		return errors.Wrapf(errors.ErrParsing, "invalid decision id %q", req.DecisionID)
	}

	key := explanation.Key{
		DecisionID:      decisionID,
		Audience:        explanation.Audience(req.Audience),
		Detail:          explanation.DetailLevel(req.DetailLevel),
		Counterfactuals: req.Counterfactuals,
		Format:          explanation.Format(req.Format),
	}

	exp, err := c.engine.Explain(ctx, key)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			c.log.Warnf("Explanation requested for unknown decision %s", decisionID)
			return c.publish(ctx, ExplanationReadyEvent{
				DecisionID: req.DecisionID,
				NotFound:   true,
			})
		}
		metrics.KafkaMessages.WithLabelValues(kafka.TopicExplanationRequests, "consumed", "error").Inc()
		return err
	}

	metrics.KafkaMessages.WithLabelValues(kafka.TopicExplanationRequests, "consumed", "success").Inc()
	return c.publish(ctx, ExplanationReadyEvent{
		DecisionID: req.DecisionID,
		Audience:   string(exp.Key.Audience),
		Format:     string(exp.Key.Format),
		Rendered:   exp.Rendered,
	})
}

func (c *ExplanationConsumer) publish(ctx context.Context, event ExplanationReadyEvent) error {
	return c.producer.Publish(ctx, kafka.TopicExplanationReady, event.DecisionID, event)
}

// Close shuts down the underlying Kafka reader.
func (c *ExplanationConsumer) Close() error {
	return c.consumer.Close()
}
