package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
)

// DefaultKeyPrefix namespaces token keys in a shared redis.
const DefaultKeyPrefix = "tresorgate:session:"

// RedisStore keeps tokens in redis so several bridge processes share them.
// Keys carry the token TTL, so redis evicts tokens nobody checks.
type RedisStore struct {
	client *redis.Client
	prefix string
	clock  func() time.Time
}

// NewRedisStore wraps client. A nil clock uses time.Now.
func NewRedisStore(client *redis.Client, prefix string, clock func() time.Time) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if clock == nil {
		clock = time.Now
	}
	return &RedisStore{client: client, prefix: prefix, clock: clock}, nil
}

// OpenRedis parses url and pings the server.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) key(tokenID string) string {
	return s.prefix + tokenID
}

// Issue stores a new token for ident.
func (s *RedisStore) Issue(ctx context.Context, ident identity.Identity, ttl time.Duration) (Token, error) {
	token, err := newToken(ident, ttl, s.clock().UTC())
	if err != nil {
		return Token{}, err
	}
	payload, err := json.Marshal(token)
	if err != nil {
		return Token{}, fmt.Errorf("encode token: %w", err)
	}
	if err := s.client.Set(ctx, s.key(token.ID), payload, token.ExpiresAt.Sub(s.clock())).Err(); err != nil {
		return Token{}, fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

// Check returns the snapshot for tokenID, dropping it when expired.
func (s *RedisStore) Check(ctx context.Context, tokenID string) (identity.Identity, bool, error) {
	if tokenID == "" {
		return identity.Identity{}, false, nil
	}
	payload, err := s.client.Get(ctx, s.key(tokenID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return identity.Identity{}, false, nil
	}
	if err != nil {
		return identity.Identity{}, false, fmt.Errorf("load token: %w", err)
	}
	var token Token
	if err := json.Unmarshal(payload, &token); err != nil {
		return identity.Identity{}, false, fmt.Errorf("decode token: %w", err)
	}
	if token.Expired(s.clock()) {
		if err := s.client.Del(ctx, s.key(tokenID)).Err(); err != nil {
			return identity.Identity{}, false, fmt.Errorf("delete expired token: %w", err)
		}
		return identity.Identity{}, false, nil
	}
	return token.Identity, true, nil
}

// Revoke deletes tokenID.
func (s *RedisStore) Revoke(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	removed, err := s.client.Del(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return removed > 0, nil
}
