package vigilance

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/internal/domain/repo"
)

const tokenBytes = 32

// TokenService issues the short lived credentials used by stream clients,
// which cannot attach an Authorization header.
type TokenService struct {
	store      repo.TokenStore
	clock      clockwork.Clock
	defaultTTL time.Duration
}

func NewTokenService(store repo.TokenStore, clock clockwork.Clock, defaultTTL time.Duration) TokenService {
	return TokenService{
		store:      store,
		clock:      clock,
		defaultTTL: defaultTTL,
	}
}

// Generate issues a new token. A non positive ttl falls back to the default one.
func (s TokenService) Generate(ctx context.Context, ttl time.Duration, scope string) (entity.SSEToken, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	raw := make([]byte, tokenBytes)

	_, err := rand.Read(raw)
	if err != nil {
		return entity.SSEToken{}, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.clock.Now().UTC()

	ret := entity.SSEToken{
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Scope:     scope,
	}

	err = s.store.SaveToken(ctx, ret)
	if err != nil {
		return entity.SSEToken{}, fmt.Errorf("failed to save token: %w", err)
	}

	return ret, nil
}

// Validate returns true iff token is known and not expired. It never consumes the token.
func (s TokenService) Validate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	stored, found, err := s.store.GetToken(ctx, token)
	if err != nil {
		return false, fmt.Errorf("failed to get token: %w", err)
	}

	if !found {
		return false, nil
	}

	return !s.clock.Now().After(stored.ExpiresAt), nil
}

// Check maps a presented token to ErrMissingToken or ErrInvalidToken.
func (s TokenService) Check(ctx context.Context, token string) error {
	if token == "" {
		return ErrMissingToken
	}

	valid, err := s.Validate(ctx, token)
	if err != nil {
		return err
	}

	if !valid {
		return ErrInvalidToken
	}

	return nil
}
