package factory

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/praevisio/vigilance/internal/config"
	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/internal/domain/repo/deadletter"
	"github.com/praevisio/vigilance/internal/processing"
	"github.com/praevisio/vigilance/pkg/pipeline"
)

// CreateIngestionRunner wires the kafka consumer of operational events to the emitter.
func CreateIngestionRunner(ctx context.Context, conf config.Config, emitter processing.EventEmitter, registry prometheus.Registerer, clock clockwork.Clock, logger logr.Logger) (pipeline.Runner[entity.IngestedEvent], CloseFunc, error) {
	var ret pipeline.Runner[entity.IngestedEvent]

	mainProcessing, err := DecorateProcessing(processing.NewMain(emitter), registry, clock, logger)
	if err != nil {
		return ret, noop, err
	}

	var deadLetter pipeline.ErrorProcessing

	if conf.DeadLetterQueue.Enabled {
		client, err := CreateS3Client(ctx, conf.DeadLetterQueue, logger)
		if err != nil {
			return ret, noop, err
		}

		writer := deadletter.NewS3Writer(client, clock, conf.DeadLetterQueue.Bucket, conf.DeadLetterQueue.KeyPrefix, logger)
		deadLetter = processing.NewDeadLetter(writer)
	}

	errorProcessing, err := DecorateErrorProcessing(deadLetter, registry)
	if err != nil {
		return ret, noop, err
	}

	handler, err := pipeline.NewJSONHandler(mainProcessing, errorProcessing).
		WithMetrics(registry, pipeline.MetricsConfig{Namespace: metricsNamespace + "_ingest"})
	if err != nil {
		return ret, noop, fmt.Errorf("failed to create kafka handler: %w", err)
	}

	consumer, err := CreateKafkaConsumer(conf.Kafka)
	if err != nil {
		return ret, noop, err
	}

	closeConsumer := func() {
		err := consumer.Close()
		if err != nil {
			logger.Error(err, "Failed to close kafka consumer")
		}
	}

	ret = pipeline.NewRunner(consumer, []string{conf.Kafka.Consumer.Topic}, handler).WithLogger(logger)

	return ret, closeConsumer, nil
}
