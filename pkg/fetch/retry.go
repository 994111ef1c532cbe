package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
)

type BackoffType string

const (
	BackoffLinear      BackoffType = "linear"
	BackoffExponential BackoffType = "exponential"
)

const defaultExhaustedMessage = "Failed to fetch data."

// RetryPolicy bounds the number of attempts made against a flaky source.
type RetryPolicy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	Backoff     BackoffType

	// ExhaustedMessage is the message of the RetriesExhaustedError returned once all attempts failed.
	ExhaustedMessage string
}

// Attempts never returns 0: retry-go treats 0 as "retry forever".
func (p RetryPolicy) Attempts() uint {
	if p.MaxAttempts == 0 {
		return 1
	}

	return p.MaxAttempts
}

// Delay returns the sleep before retry n (n starts at 1).
func (p RetryPolicy) Delay(n uint) time.Duration {
	if n == 0 {
		n = 1
	}

	switch p.Backoff {
	case BackoffExponential:
		shift := n - 1
		if shift > 30 {
			shift = 30
		}

		return p.BaseDelay << shift
	default:
		return p.BaseDelay * time.Duration(n)
	}
}

func (p RetryPolicy) exhaustedMessage() string {
	if p.ExhaustedMessage == "" {
		return defaultExhaustedMessage
	}

	return p.ExhaustedMessage
}

type retryFetcher[T any] struct {
	fetcher Fetcher[T]
	policy  RetryPolicy
}

func NewRetryFetcher[T any](f Fetcher[T], policy RetryPolicy) Fetcher[T] {
	return retryFetcher[T]{
		fetcher: f,
		policy:  policy,
	}
}

func (r retryFetcher[T]) Fetch(ctx context.Context) (T, error) {
	var ret T

	err := retry.Do(
		func() error {
			res, err := r.fetcher.Fetch(ctx)
			if err != nil {
				return err
			}

			ret = res

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.policy.Attempts()),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrMalformedResponse)
		}),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return r.policy.Delay(n)
		}),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return ret, nil
	}

	var zero T

	if errors.Is(err, ErrMalformedResponse) {
		return zero, err
	}

	if ctx.Err() != nil {
		return zero, fmt.Errorf("fetch interrupted: %w", err)
	}

	return zero, &RetriesExhaustedError{
		Message:  r.policy.exhaustedMessage(),
		Attempts: r.policy.Attempts(),
		Last:     err,
	}
}
