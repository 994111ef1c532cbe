package processing

import (
	"context"
	"errors"

	"github.com/praevisio/vigilance/internal/common"
	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/internal/vigilance"
)

const (
	categoryErrInvalidEvent = "invalid_event"
	categoryErrHub          = "hub"

	DefaultIngestOrigin = "kafka"
)

type EventEmitter interface {
	EmitFrom(ctx context.Context, eventType, message, origin string) (entity.VigilanceEvent, error)
}

// Main forwards consumed operational events to the vigilance hub.
type Main struct {
	emitter EventEmitter
}

func NewMain(emitter EventEmitter) Main {
	return Main{
		emitter: emitter,
	}
}

func (m Main) Process(ctx context.Context, event entity.IngestedEvent) error {
	message, err := RequireString(event.Message)
	if err != nil {
		return common.NewErrProcessingError(err, categoryErrInvalidEvent, "failed to extract message")
	}

	if event.Timestamp != "" {
		_, err = ValidateDate(event.Timestamp)
		if err != nil {
			return common.NewErrProcessingError(err, categoryErrInvalidEvent, "invalid date format %s", event.Timestamp)
		}
	}

	origin := event.Origin
	if origin == "" {
		origin = DefaultIngestOrigin
	}

	_, err = m.emitter.EmitFrom(ctx, event.Type, message, origin)
	if err != nil {
		if errors.Is(err, vigilance.ErrHubClosed) {
			return common.NewErrProcessingError(err, categoryErrHub, "failed to emit event")
		}

		return common.NewRetryableErrProcessingError(err, categoryErrHub, "failed to emit event")
	}

	return nil
}
