package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/go-logr/logr"
)

// Runner drives a consumer group until its context is cancelled.
type Runner[Payload any] struct {
	consumer sarama.ConsumerGroup
	topics   []string
	handler  JSONHandler[Payload]
	logger   logr.Logger
}

func NewRunner[Payload any](consumer sarama.ConsumerGroup, topics []string, handler JSONHandler[Payload]) Runner[Payload] {
	return Runner[Payload]{
		consumer: consumer,
		topics:   topics,
		handler:  handler,
		logger:   logr.Discard(),
	}
}

func (r Runner[Payload]) WithLogger(logger logr.Logger) Runner[Payload] {
	r.logger = logger
	r.handler = r.handler.WithLogger(logger)

	return r
}

// Start blocks until ctx is cancelled or the consumer group fails. A cancelled context returns nil.
func (r Runner[Payload]) Start(ctx context.Context) error {
	go func() {
		for err := range r.consumer.Errors() {
			r.logger.Error(err, "Kafka consumer error")
		}
	}()

	for {
		// Consume returns on every re-balancing
		err := r.consumer.Consume(ctx, r.topics, r.handler)
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}

			return fmt.Errorf("consumer failed: %w", err)
		}

		if ctx.Err() != nil {
			r.logger.V(0).Info("Stop consuming", "topics", r.topics)

			return nil
		}
	}
}
