package pipeline

import (
	"errors"
	"fmt"

	"github.com/IBM/sarama"
)

const (
	UnknownCategory        = "unknown"
	UnmarshalErrorCategory = "unmarshal"
	ValidationCategory     = "validation"
	PanicCategory          = "panic"
)

// ErrProcessingError carries the category of a failure and the message that caused it.
type ErrProcessingError struct {
	error
	Category string
	Message  *sarama.ConsumerMessage
}

func NewErrProcessingError(err error, category string) ErrProcessingError {
	return ErrProcessingError{
		error:    err,
		Category: category,
	}
}

func (e ErrProcessingError) Unwrap() error {
	return e.error
}

// WithMessage attaches the consumed message when it is not already set.
func (e ErrProcessingError) WithMessage(msg *sarama.ConsumerMessage) ErrProcessingError {
	if e.Message == nil {
		e.Message = msg
	}

	return e
}

var ErrRetryableError = errors.New("retryable error")

func NewErrRetryableError(err error) error {
	return fmt.Errorf("%w: %w", ErrRetryableError, err)
}

func NewRetryableErrProcessingError(err error, category string) ErrProcessingError {
	return NewErrProcessingError(NewErrRetryableError(err), category)
}

// AsProcessingError returns err as an ErrProcessingError, defaulting to UnknownCategory.
func AsProcessingError(err error) ErrProcessingError {
	ret := ErrProcessingError{}
	if errors.As(err, &ret) {
		return ret
	}

	return NewErrProcessingError(err, UnknownCategory)
}
