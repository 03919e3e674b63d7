package session

import (
	"context"
	"sync"
	"time"

	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
)

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]Token
	clock  func() time.Time
}

// NewMemoryStore builds an empty store. A nil clock uses time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{tokens: make(map[string]Token), clock: clock}
}

// Issue stores a new token for ident.
func (s *MemoryStore) Issue(_ context.Context, ident identity.Identity, ttl time.Duration) (Token, error) {
	token, err := newToken(ident, ttl, s.clock().UTC())
	if err != nil {
		return Token{}, err
	}
	s.mu.Lock()
	s.tokens[token.ID] = token
	s.mu.Unlock()
	return token, nil
}

// Check returns the snapshot for tokenID, dropping it when expired.
func (s *MemoryStore) Check(_ context.Context, tokenID string) (identity.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[tokenID]
	if !ok {
		return identity.Identity{}, false, nil
	}
	if token.Expired(s.clock()) {
		delete(s.tokens, tokenID)
		return identity.Identity{}, false, nil
	}
	return token.Identity, true, nil
}

// Revoke deletes tokenID.
func (s *MemoryStore) Revoke(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[tokenID]
	delete(s.tokens, tokenID)
	return ok, nil
}

// Len reports how many tokens are held, including expired ones not yet
// looked up.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
