package vigilance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/praevisio/vigilance/internal/domain/entity"
)

const (
	initEvent     = "init"
	statusWatcher = "watching"
)

type SubscriptionID string

type subscriber struct {
	id           SubscriptionID
	sink         Sink
	subscribedAt time.Time
}

type HubConfig struct {
	HistoryCapacity int
	RecentEvents    int
}

type hubMetrics struct {
	subscribers prometheus.Gauge
	published   prometheus.Counter
	pruned      prometheus.Counter
}

// Hub broadcasts events to subscribers and keeps a bounded history.
// Registry and history are owned by the Run goroutine, every other method is a command sent to it.
// Commands block until Run is started.
type Hub struct {
	config HubConfig
	clock  clockwork.Clock
	logger logr.Logger

	commands chan func()
	done     chan struct{}

	// Owned by Run
	subscribers []subscriber
	history     *ring[entity.VigilanceEvent]
	total       uint64
	startedAt   time.Time

	metrics hubMetrics
}

func NewHub(config HubConfig, clock clockwork.Clock, registry prometheus.Registerer, logger logr.Logger) (*Hub, error) {
	if config.HistoryCapacity < 1 {
		return nil, fmt.Errorf("history capacity must be positive, got %d", config.HistoryCapacity)
	}

	metrics := hubMetrics{
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "praevisio",
			Name:      "hub_subscribers",
			Help:      "Number of live subscribers.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "praevisio",
			Name:      "hub_events_published_total",
			Help:      "Number of events published.",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "praevisio",
			Name:      "hub_subscribers_pruned_total",
			Help:      "Number of subscribers removed after a delivery failure.",
		}),
	}

	for _, c := range []prometheus.Collector{metrics.subscribers, metrics.published, metrics.pruned} {
		err := registry.Register(c)
		if err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return &Hub{
		config:    config,
		clock:     clock,
		logger:    logger,
		commands:  make(chan func()),
		done:      make(chan struct{}),
		history:   newRing[entity.VigilanceEvent](config.HistoryCapacity),
		startedAt: clock.Now().UTC(),
		metrics:   metrics,
	}, nil
}

// Run serves commands until ctx is cancelled, then closes every sink.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	h.logger.V(1).Info("Hub started")

	for {
		select {
		case command := <-h.commands:
			command()
		case <-ctx.Done():
			for _, s := range h.subscribers {
				s.sink.Close()
			}

			h.subscribers = nil
			h.metrics.subscribers.Set(0)

			h.logger.V(1).Info("Hub stopped", "totalEvents", h.total)

			return
		}
	}
}

func (h *Hub) do(ctx context.Context, command func()) error {
	reply := make(chan struct{})

	select {
	case h.commands <- func() {
		command()
		close(reply)
	}:
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	<-reply

	return nil
}

// Subscribe registers sink. The init frame is delivered before any later event.
func (h *Hub) Subscribe(ctx context.Context, sink Sink) (SubscriptionID, error) {
	var (
		id         SubscriptionID
		deliverErr error
	)

	err := h.do(ctx, func() {
		candidate := SubscriptionID(uuid.NewString())

		data, err := json.Marshal(h.state(len(h.subscribers) + 1))
		if err != nil {
			deliverErr = fmt.Errorf("failed to marshal state: %w", err)

			return
		}

		err = sink.Send(Frame{Event: initEvent, Data: data})
		if err != nil {
			deliverErr = DeliveryError{Subscription: candidate, Err: err}

			return
		}

		h.subscribers = append(h.subscribers, subscriber{id: candidate, sink: sink, subscribedAt: h.clock.Now()})
		h.metrics.subscribers.Set(float64(len(h.subscribers)))

		id = candidate
	})
	if err != nil {
		return "", err
	}

	if deliverErr != nil {
		return "", deliverErr
	}

	h.logger.V(2).Info("Subscriber registered", "subscription", id)

	return id, nil
}

// Unsubscribe is idempotent.
func (h *Hub) Unsubscribe(ctx context.Context, id SubscriptionID) error {
	return h.do(ctx, func() {
		h.remove(func(s subscriber) bool { return s.id == id })
	})
}

// Publish records event and sends it to every subscriber. Failing subscribers are pruned.
func (h *Hub) Publish(ctx context.Context, event entity.VigilanceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	frame := Frame{Data: data}

	return h.do(ctx, func() {
		h.history.Push(event)
		h.total++
		h.metrics.published.Inc()

		failed := map[SubscriptionID]struct{}{}

		for _, s := range h.subscribers {
			err := s.sink.Send(frame)
			if err != nil {
				h.logger.V(1).Info("Pruning subscriber", "error", DeliveryError{Subscription: s.id, Err: err}.Error(), "connectedFor", h.clock.Since(s.subscribedAt).String())

				failed[s.id] = struct{}{}
			}
		}

		if len(failed) > 0 {
			h.metrics.pruned.Add(float64(len(failed)))

			h.remove(func(s subscriber) bool {
				_, found := failed[s.id]

				return found
			})
		}
	})
}

// History returns the buffered events, oldest first.
func (h *Hub) History(ctx context.Context) ([]entity.VigilanceEvent, error) {
	var ret []entity.VigilanceEvent

	err := h.do(ctx, func() {
		ret = h.history.Last(-1)
	})

	return ret, err
}

func (h *Hub) State(ctx context.Context) (entity.VigilanceState, error) {
	var ret entity.VigilanceState

	err := h.do(ctx, func() {
		ret = h.state(len(h.subscribers))
	})

	return ret, err
}

func (h *Hub) state(subscribers int) entity.VigilanceState {
	return entity.VigilanceState{
		Status:      statusWatcher,
		StartedAt:   h.startedAt,
		Subscribers: subscribers,
		TotalEvents: h.total,
		HistorySize: h.history.Len(),
		Recent:      h.history.Last(h.config.RecentEvents),
	}
}

func (h *Hub) remove(match func(subscriber) bool) {
	kept := h.subscribers[:0]

	for _, s := range h.subscribers {
		if match(s) {
			s.sink.Close()

			continue
		}

		kept = append(kept, s)
	}

	clear(h.subscribers[len(kept):])

	h.subscribers = kept
	h.metrics.subscribers.Set(float64(len(h.subscribers)))
}

// IsDeliveryError reports whether err comes from a subscriber sink.
func IsDeliveryError(err error) bool {
	var dErr DeliveryError

	return errors.As(err, &dErr)
}
