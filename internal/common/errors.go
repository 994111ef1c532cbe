package common

import (
	"fmt"

	"github.com/praevisio/vigilance/pkg/pipeline"
)

func NewErrProcessingError(err error, category string, reason string, args ...interface{}) pipeline.ErrProcessingError {
	cause := fmt.Sprintf(reason, args...)
	dErr := fmt.Errorf("%s: %w", cause, err)

	return pipeline.NewErrProcessingError(dErr, category)
}

func NewRetryableErrProcessingError(err error, category string, reason string, args ...interface{}) pipeline.ErrProcessingError {
	return NewErrProcessingError(pipeline.NewErrRetryableError(err), category, reason, args...)
}
