package vigilance

import (
	"errors"
	"fmt"
)

var (
	ErrMissingToken   = errors.New("missing_token")
	ErrInvalidToken   = errors.New("invalid_token")
	ErrMissingMessage = errors.New("missing_message")
	ErrHubClosed      = errors.New("hub closed")
	ErrSinkClosed     = errors.New("sink closed")
	ErrSinkFull       = errors.New("sink buffer full")
)

// DeliveryError is raised when a frame cannot be written to a subscriber.
// It never reaches emitters: the subscriber is pruned instead.
type DeliveryError struct {
	Subscription SubscriptionID
	Err          error
}

func (e DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver to %s: %v", e.Subscription, e.Err)
}

func (e DeliveryError) Unwrap() error {
	return e.Err
}
