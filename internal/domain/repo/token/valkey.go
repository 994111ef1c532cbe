package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/valkey-io/valkey-go"

	"github.com/praevisio/vigilance/internal/domain/entity"
)

const keyPrefix = "praevisio:sse-token:"

var ErrStoreUnavailable = errors.New("token store unavailable")

type model struct {
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Scope     string    `json:"scope,omitempty"`
}

// ValkeyStore shares tokens between instances. Keys expire with the token.
type ValkeyStore struct {
	client valkey.Client
	clock  clockwork.Clock
}

func NewValkeyStore(client valkey.Client, clock clockwork.Clock) ValkeyStore {
	return ValkeyStore{
		client: client,
		clock:  clock,
	}
}

func (s ValkeyStore) SaveToken(ctx context.Context, token entity.SSEToken) error {
	ttl := token.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(model{
		IssuedAt:  token.IssuedAt,
		ExpiresAt: token.ExpiresAt,
		Scope:     token.Scope,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	seconds := int64((ttl + time.Second - 1) / time.Second)

	command := s.client.B().Set().Key(keyPrefix + token.Token).Value(string(data)).ExSeconds(seconds).Build()

	err = s.client.Do(ctx, command).Error()
	if err != nil {
		return s.wrap(err, "failed to set token")
	}

	return nil
}

func (s ValkeyStore) GetToken(ctx context.Context, token string) (entity.SSEToken, bool, error) {
	command := s.client.B().Get().Key(keyPrefix + token).Build()

	raw, err := s.client.Do(ctx, command).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return entity.SSEToken{}, false, nil
		}

		return entity.SSEToken{}, false, s.wrap(err, "failed to get token")
	}

	m := model{}

	err = json.Unmarshal([]byte(raw), &m)
	if err != nil {
		return entity.SSEToken{}, false, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return entity.SSEToken{
		Token:     token,
		IssuedAt:  m.IssuedAt,
		ExpiresAt: m.ExpiresAt,
		Scope:     m.Scope,
	}, true, nil
}

func (s ValkeyStore) wrap(err error, reason string) error {
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", reason, ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w", reason, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	vErr, isValkeyError := valkey.IsValkeyErr(err)
	if !isValkeyError {
		return false
	}

	return vErr.IsTryAgain()
}
