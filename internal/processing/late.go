package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/pkg/pipeline"
)

// CountLateEvents counts events forwarded to the hub long after the producer stamped them.
type CountLateEvents struct {
	counter  *prometheus.CounterVec
	clock    clockwork.Clock
	maxDelay time.Duration
	logger   logr.Logger
	inner    pipeline.Processing[entity.IngestedEvent]
}

func NewCountLateEvents(p pipeline.Processing[entity.IngestedEvent], registry prometheus.Registerer, clock clockwork.Clock, maxDelay time.Duration, logger logr.Logger, config pipeline.MetricsConfig) (pipeline.Processing[entity.IngestedEvent], error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "late_events_total",
		Help:      "Late ingested events by type and event day.",
	}, []string{"type", "event_day"})

	err := registry.Register(counter)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	return CountLateEvents{
		counter:  counter,
		clock:    clock,
		maxDelay: maxDelay,
		logger:   logger,
		inner:    p,
	}, nil
}

func (p CountLateEvents) Process(ctx context.Context, event entity.IngestedEvent) error {
	err := p.inner.Process(ctx, event)
	if err != nil {
		return err // Count only forwarded events
	}

	if event.Timestamp == "" {
		return nil
	}

	eventTime, err := ValidateDate(event.Timestamp)
	if err != nil {
		p.logger.Error(err, "Failed to extract time to count late events")

		return nil
	}

	if !p.isLate(eventTime) {
		return nil
	}

	p.counter.WithLabelValues(event.Type, p.computeEventDayLabel(eventTime)).Inc()

	return nil
}

func (p CountLateEvents) isLate(eventTime time.Time) bool {
	return p.clock.Now().UTC().Sub(eventTime) > p.maxDelay
}

func (p CountLateEvents) computeEventDayLabel(eventTime time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", eventTime.Year(), eventTime.Month(), eventTime.Day())
}
