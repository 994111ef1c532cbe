package processing

import (
	"context"
	"fmt"

	"github.com/praevisio/vigilance/internal/domain/repo"
	"github.com/praevisio/vigilance/pkg/pipeline"
)

// DeadLetter keeps failed messages for later inspection. Write failures are retryable.
type DeadLetter struct {
	writer repo.DeadLetterWriter
}

func NewDeadLetter(writer repo.DeadLetterWriter) DeadLetter {
	return DeadLetter{
		writer: writer,
	}
}

func (d DeadLetter) Process(ctx context.Context, pErr pipeline.ErrProcessingError) error {
	err := d.writer.WriteDeadLetter(ctx, pErr)
	if err != nil {
		return pipeline.NewErrRetryableError(fmt.Errorf("failed to write dead letter: %w", err))
	}

	return nil
}
