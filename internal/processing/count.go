package processing

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/internal/vigilance"
	"github.com/praevisio/vigilance/pkg/pipeline"
)

type CountEvents struct {
	counter *prometheus.CounterVec
	inner   pipeline.Processing[entity.IngestedEvent]
}

func NewCountEvents(p pipeline.Processing[entity.IngestedEvent], registry prometheus.Registerer, config pipeline.MetricsConfig) (pipeline.Processing[entity.IngestedEvent], error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "ingested_events_total",
		Help:      "Ingested events by type.",
	}, []string{"type"})

	err := registry.Register(counter)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	return CountEvents{
		counter: counter,
		inner:   p,
	}, nil
}

func (p CountEvents) Process(ctx context.Context, event entity.IngestedEvent) error {
	eventType := event.Type
	if eventType == "" {
		eventType = vigilance.DefaultEventType
	}

	defer p.counter.WithLabelValues(eventType).Inc()

	return p.inner.Process(ctx, event)
}
