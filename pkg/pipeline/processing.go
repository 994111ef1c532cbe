package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

type MetricsConfig struct {
	Namespace string
	Buckets   []float64
}

// Parallel

type parallel[Payload any] struct {
	procs []Processing[Payload]
}

// NewParallelProcessing runs every processing concurrently and returns the first error.
func NewParallelProcessing[Payload any](p ...Processing[Payload]) Processing[Payload] {
	return parallel[Payload]{
		procs: p,
	}
}

func (p parallel[Payload]) Process(ctx context.Context, payload Payload) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, processing := range p.procs {
		group.Go(func() error {
			return processing.Process(ctx, payload)
		})
	}

	return group.Wait()
}

// Panic guard

type panicHandler[Payload any] struct {
	processing Processing[Payload]
}

func NewPanicHandlerProcessing[Payload any](p Processing[Payload]) Processing[Payload] {
	return panicHandler[Payload]{
		processing: p,
	}
}

func (p panicHandler[Payload]) Process(ctx context.Context, payload Payload) (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = NewErrProcessingError(fmt.Errorf("unexpected error: %v", r), PanicCategory)
		}
	}()

	return p.processing.Process(ctx, payload)
}

// Retry

type RetryConfig struct {
	MaxAttempts uint
	Delay       time.Duration
}

type retryProcessing[Payload any] struct {
	processing Processing[Payload]
	config     RetryConfig
}

// NewRetryProcessing retries errors wrapping ErrRetryableError, with a fixed delay.
func NewRetryProcessing[Payload any](p Processing[Payload], config RetryConfig) Processing[Payload] {
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 1
	}

	return retryProcessing[Payload]{
		processing: p,
		config:     config,
	}
}

func (p retryProcessing[Payload]) Process(ctx context.Context, payload Payload) error {
	return retry.Do(
		func() error {
			return p.processing.Process(ctx, payload)
		},
		retry.Context(ctx),
		retry.Attempts(p.config.MaxAttempts),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrRetryableError)
		}),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(p.config.Delay),
		retry.LastErrorOnly(true),
	)
}

// Duration metric

type durationDecorator[Payload any] struct {
	processing Processing[Payload]
	histogram  *prometheus.HistogramVec
	clock      clockwork.Clock
}

func NewDurationMetricsDecoratorProcessing[Payload any](p Processing[Payload], registry prometheus.Registerer, clock clockwork.Clock, config MetricsConfig) (Processing[Payload], error) {
	buckets := config.Buckets
	if len(buckets) == 0 {
		buckets = []float64{1, 5, 10, 50, 100, 500, 1000}
	}

	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: config.Namespace,
		Name:      "processing_duration_milliseconds",
		Help:      "Time taken to process a consumed message.",
		Buckets:   buckets,
	}, []string{"failed"})

	err := registry.Register(histogram)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	return durationDecorator[Payload]{
		processing: p,
		histogram:  histogram,
		clock:      clock,
	}, nil
}

func (p durationDecorator[Payload]) Process(ctx context.Context, payload Payload) error {
	start := p.clock.Now()

	err := p.processing.Process(ctx, payload)

	elapsed := p.clock.Since(start)

	p.histogram.WithLabelValues(fmt.Sprintf("%v", err != nil)).Observe(float64(elapsed) / float64(time.Millisecond))

	return err
}

// Error count

const emptyCategory = "empty_category"

type errorCountProcessing struct {
	counter *prometheus.CounterVec
}

func NewErrorCountProcessing(registry prometheus.Registerer, config MetricsConfig) (ErrorProcessing, error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "processing_error_total",
		Help:      "Processing errors by category.",
	}, []string{"category"})

	err := registry.Register(counter)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	return errorCountProcessing{counter: counter}, nil
}

func (p errorCountProcessing) Process(_ context.Context, pErr ErrProcessingError) error {
	category := pErr.Category
	if category == "" {
		category = emptyCategory
	}

	p.counter.WithLabelValues(category).Inc()

	return nil
}
