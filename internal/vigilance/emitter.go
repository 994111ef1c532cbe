package vigilance

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/praevisio/vigilance/internal/domain/entity"
)

const (
	DefaultEventType = "custom"
	DefaultOrigin    = "praevisio"
)

type Publisher interface {
	Publish(ctx context.Context, event entity.VigilanceEvent) error
}

type Emitter struct {
	publisher Publisher
	clock     clockwork.Clock
	origin    string
}

func NewEmitter(publisher Publisher, clock clockwork.Clock, origin string) Emitter {
	if origin == "" {
		origin = DefaultOrigin
	}

	return Emitter{
		publisher: publisher,
		clock:     clock,
		origin:    origin,
	}
}

// Emit builds and publishes an event. It is recorded in history even without subscribers.
func (e Emitter) Emit(ctx context.Context, eventType, message string) (entity.VigilanceEvent, error) {
	return e.EmitFrom(ctx, eventType, message, e.origin)
}

// EmitFrom is Emit with an explicit origin, an empty one falling back to the emitter's.
func (e Emitter) EmitFrom(ctx context.Context, eventType, message, origin string) (entity.VigilanceEvent, error) {
	if strings.TrimSpace(message) == "" {
		return entity.VigilanceEvent{}, ErrMissingMessage
	}

	if eventType == "" {
		eventType = DefaultEventType
	}

	if origin == "" {
		origin = e.origin
	}

	event := entity.VigilanceEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Message:   message,
		Timestamp: e.clock.Now().UTC(),
		Origin:    origin,
	}

	err := e.publisher.Publish(ctx, event)
	if err != nil {
		return entity.VigilanceEvent{}, fmt.Errorf("failed to publish event: %w", err)
	}

	return event, nil
}
