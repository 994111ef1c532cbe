package fetch

import (
	"errors"
	"fmt"
)

// ErrTransientSource

var ErrTransientSource = errors.New("transient source error")

func NewErrTransientSource(err error) error {
	return fmt.Errorf("%w: %w", ErrTransientSource, err)
}

// ErrMalformedResponse is never retried.

var ErrMalformedResponse = errors.New("malformed response")

func NewErrMalformedResponse(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
}

// RetriesExhaustedError

var ErrRetriesExhausted = errors.New("retries exhausted")

// RetriesExhaustedError is returned once every attempt of a RetryPolicy failed.
// Its message is fixed by the policy so that it never leaks transport details.
type RetriesExhaustedError struct {
	Message  string
	Attempts uint
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return e.Message
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}

func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// ErrPanic

var ErrPanic = errors.New("fetch panicked")

func newErrPanic(r any) error {
	return fmt.Errorf("%w: %v", ErrPanic, r)
}
