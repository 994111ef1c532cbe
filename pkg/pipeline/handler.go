package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeProcessed = "processed"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
)

// JSONHandler is a sarama.ConsumerGroupHandler decoding every message as a JSON Payload.
// Failed messages go through the error processing and are committed anyway.
type JSONHandler[Payload any] struct {
	processing      Processing[Payload]
	errorProcessing ErrorProcessing

	logger   logr.Logger
	messages *prometheus.CounterVec
}

func NewJSONHandler[Payload any](processing Processing[Payload], errProcessing ErrorProcessing) JSONHandler[Payload] {
	return JSONHandler[Payload]{
		processing:      processing,
		errorProcessing: errProcessing,
		logger:          logr.Discard(),
	}
}

func (h JSONHandler[Payload]) WithLogger(logger logr.Logger) JSONHandler[Payload] {
	h.logger = logger

	return h
}

// WithMetrics counts consumed messages by outcome.
func (h JSONHandler[Payload]) WithMetrics(registry prometheus.Registerer, config MetricsConfig) (JSONHandler[Payload], error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "consumed_messages_total",
		Help:      "Consumed messages by outcome.",
	}, []string{"outcome"})

	err := registry.Register(counter)
	if err != nil {
		return h, fmt.Errorf("failed to register metric: %w", err)
	}

	h.messages = counter

	return h, nil
}

func (h JSONHandler[Payload]) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()

	h.logger.V(0).Info("Start consuming",
		"topic", claim.Topic(),
		"partition", claim.Partition(),
		"initialOffset", claim.InitialOffset(),
	)

	for msg := range claim.Messages() {
		// Cancelled on re-balancing or shutdown: leave the offset uncommitted
		if ctx.Err() != nil {
			break
		}

		if msg == nil {
			h.count(outcomeSkipped)

			continue
		}

		h.logger.V(3).Info("Processing message", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

		err := h.handle(ctx, msg)
		if err != nil {
			h.processError(ctx, msg, err, session)

			continue
		}

		h.count(outcomeProcessed)

		session.MarkMessage(msg, "")
	}

	return nil
}

func (h JSONHandler[Payload]) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var payload Payload

	err := json.Unmarshal(msg.Value, &payload)
	if err != nil {
		return NewErrProcessingError(err, UnmarshalErrorCategory)
	}

	return h.processing.Process(ctx, payload)
}

func (h JSONHandler[Payload]) processError(ctx context.Context, msg *sarama.ConsumerMessage, processingErr error, session sarama.ConsumerGroupSession) {
	if ctx.Err() != nil {
		h.logger.V(1).Info("Not processing error, context has been cancelled")

		return
	}

	defer session.MarkMessage(msg, "")

	h.count(outcomeFailed)

	pErr := AsProcessingError(processingErr).WithMessage(msg)

	h.logger.Error(pErr, "Processing failed", "category", pErr.Category)

	err := h.errorProcessing.Process(ctx, pErr)
	if err != nil {
		h.logger.Error(err, "Error pipeline failed",
			"kafka.topic", msg.Topic,
			"kafka.partition", msg.Partition,
			"kafka.offset", msg.Offset,
			"kafka.payload", string(msg.Value),
			"category", pErr.Category,
		)
	}
}

func (h JSONHandler[Payload]) count(outcome string) {
	if h.messages == nil {
		return
	}

	h.messages.WithLabelValues(outcome).Inc()
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h JSONHandler[Payload]) Setup(session sarama.ConsumerGroupSession) error {
	h.logger.V(0).Info("Setup to consume", "claims", session.Claims(), "member", session.MemberID())

	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h JSONHandler[Payload]) Cleanup(session sarama.ConsumerGroupSession) error {
	h.logger.V(0).Info("Cleanup after consuming", "claims", session.Claims())

	return nil
}
