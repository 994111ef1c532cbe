package pipeline

import "context"

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_pipeline.go

// Processing handles one decoded message. Decorators in this package wrap it.
type Processing[Payload any] interface {
	Process(ctx context.Context, payload Payload) error
}

type ErrorProcessing Processing[ErrProcessingError]

// ProcessingFunc adapts a plain function to a Processing.
type ProcessingFunc[Payload any] func(ctx context.Context, payload Payload) error

func (f ProcessingFunc[Payload]) Process(ctx context.Context, payload Payload) error {
	return f(ctx, payload)
}
