package session

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/tresorgate/internal/platform/id"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
)

// TokenBytes is the number of random bytes in a token id. Ids are hex
// encoded, so they are twice as long.
const TokenBytes = 32

// DefaultTTL is the token lifetime used when none is configured.
const DefaultTTL = time.Hour

// Token is an issued bearer token.
type Token struct {
	ID        string            `json:"id"`
	Identity  identity.Identity `json:"user"`
	ExpiresAt time.Time         `json:"validUntil"`
}

// Expired reports whether the token is no longer valid at now.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Store issues, checks and revokes tokens.
type Store interface {
	// Issue stores a new token for ident valid for ttl.
	Issue(ctx context.Context, ident identity.Identity, ttl time.Duration) (Token, error)
	// Check returns the identity snapshot for tokenID. The boolean is false
	// when the token is unknown or expired.
	Check(ctx context.Context, tokenID string) (identity.Identity, bool, error)
	// Revoke deletes tokenID and reports whether it existed.
	Revoke(ctx context.Context, tokenID string) (bool, error)
}

func newToken(ident identity.Identity, ttl time.Duration, now time.Time) (Token, error) {
	if ident.ID == "" {
		return Token{}, errors.New("identity id is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	tokenID, err := id.NewToken(TokenBytes)
	if err != nil {
		return Token{}, err
	}
	return Token{
		ID:        tokenID,
		Identity:  ident.Public(),
		ExpiresAt: now.Add(ttl),
	}, nil
}
