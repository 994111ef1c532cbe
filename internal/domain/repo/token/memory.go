package token

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/praevisio/vigilance/internal/domain/entity"
)

// MemoryStore keeps tokens in process. Expired tokens are swept on save.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]entity.SSEToken
	clock  clockwork.Clock
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]entity.SSEToken),
		clock:  clock,
	}
}

func (s *MemoryStore) SaveToken(_ context.Context, token entity.SSEToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	for key, t := range s.tokens {
		if now.After(t.ExpiresAt) {
			delete(s.tokens, key)
		}
	}

	s.tokens[token.Token] = token

	return nil
}

func (s *MemoryStore) GetToken(_ context.Context, token string) (entity.SSEToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret, found := s.tokens[token]

	return ret, found, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.tokens)
}
