package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// Panic handler Fetcher

type panicHandler[T any] struct {
	fetcher Fetcher[T]
}

func NewPanicHandlerFetcher[T any](f Fetcher[T]) Fetcher[T] {
	return panicHandler[T]{
		fetcher: f,
	}
}

func (p panicHandler[T]) Fetch(ctx context.Context) (T, error) {
	return guardedFetch(ctx, p.fetcher)
}

// Duration Metric Fetcher

type MetricsConfig struct {
	Namespace string
	Buckets   []float64
}

// Metrics holds the collectors shared by every decorated source.
type Metrics struct {
	histogram *prometheus.HistogramVec
}

func NewMetrics(registry prometheus.Registerer, config MetricsConfig) (*Metrics, error) {
	buckets := config.Buckets
	if len(buckets) == 0 {
		buckets = []float64{10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000}
	}

	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: config.Namespace,
		Name:      "source_fetch_duration_milliseconds",
		Help:      "Time taken to fetch a source, retries included.",
		Buckets:   buckets,
	}, []string{"source", "failed"})

	err := registry.Register(histogram)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	return &Metrics{histogram: histogram}, nil
}

type durationDecorator[T any] struct {
	fetcher Fetcher[T]
	source  string
	metrics *Metrics
	clock   clockwork.Clock
}

func NewDurationMetricsFetcher[T any](f Fetcher[T], source string, metrics *Metrics, clock clockwork.Clock) Fetcher[T] {
	return durationDecorator[T]{
		fetcher: f,
		source:  source,
		metrics: metrics,
		clock:   clock,
	}
}

func (d durationDecorator[T]) Fetch(ctx context.Context) (T, error) {
	start := d.clock.Now()

	ret, err := d.fetcher.Fetch(ctx)

	duration := d.clock.Since(start)
	durationMilli := float64(duration/time.Millisecond) + float64(duration%time.Millisecond)/float64(time.Millisecond)

	d.metrics.histogram.WithLabelValues(d.source, fmt.Sprintf("%v", err != nil)).Observe(durationMilli)

	return ret, err
}
