package factory

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/internal/processing"
	"github.com/praevisio/vigilance/pkg/pipeline"
)

const lateEventDelay = 5 * time.Minute

/*
 * DecorateProcessing decorates the ingestion as follow:
 *
 * panic --> duration --> count --> late --> retry --> main (emit)
 */
func DecorateProcessing(mainProcessing pipeline.Processing[entity.IngestedEvent], registry prometheus.Registerer, clock clockwork.Clock, logger logr.Logger) (pipeline.Processing[entity.IngestedEvent], error) {
	config := pipeline.MetricsConfig{Namespace: metricsNamespace + "_ingest"}

	ret := pipeline.NewRetryProcessing(mainProcessing, pipeline.RetryConfig{MaxAttempts: 3, Delay: 100 * time.Millisecond})

	ret, err := processing.NewCountLateEvents(ret, registry, clock, lateEventDelay, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create late events processing: %w", err)
	}

	ret, err = processing.NewCountEvents(ret, registry, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create count processing: %w", err)
	}

	ret, err = pipeline.NewDurationMetricsDecoratorProcessing(ret, registry, clock, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration metrics processor: %w", err)
	}

	return pipeline.NewPanicHandlerProcessing(ret), nil
}

/*
 * DecorateErrorProcessing decorates the error processing as follow:
 *
 *                       ---> retry --> dead letter (optional)
 *  panic --> parallel --|
 *                       ---> error count
 */
func DecorateErrorProcessing(deadLetter pipeline.ErrorProcessing, registry prometheus.Registerer) (pipeline.ErrorProcessing, error) {
	errorCount, err := pipeline.NewErrorCountProcessing(registry, pipeline.MetricsConfig{Namespace: metricsNamespace + "_ingest"})
	if err != nil {
		return nil, fmt.Errorf("failed to create error count processing: %w", err)
	}

	procs := []pipeline.Processing[pipeline.ErrProcessingError]{errorCount}

	if deadLetter != nil {
		procs = append(procs, pipeline.NewRetryProcessing[pipeline.ErrProcessingError](deadLetter, pipeline.RetryConfig{MaxAttempts: 3, Delay: time.Second}))
	}

	ret := pipeline.NewParallelProcessing(procs...)

	return pipeline.NewPanicHandlerProcessing(ret), nil
}
