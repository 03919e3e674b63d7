// Package postgres implements the bridge storage contracts over PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage"
)

//go:embed schema.sql
var schemaSQL string

// Store implements bridge persistence over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// Open connects to url, verifies the connection and ensures the schema.
func Open(ctx context.Context, url string) (*Store, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("postgres url is required")
	}
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// PutIdentity inserts or replaces an identity by id.
func (s *Store) PutIdentity(ctx context.Context, ident identity.Identity) error {
	if strings.TrimSpace(ident.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(ident.UserName) == "" {
		return fmt.Errorf("user name is required")
	}
	reg, err := storage.EncodeRegistration(ident.Registration)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO bridge_identities (id, user_name, state, registration_json, profile_data, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    user_name = EXCLUDED.user_name,
    state = EXCLUDED.state,
    registration_json = EXCLUDED.registration_json,
    profile_data = EXCLUDED.profile_data,
    updated_at = EXCLUDED.updated_at`,
		ident.ID, ident.UserName, int(ident.State), reg, ident.ProfileData,
		ident.CreatedAt.UTC(), ident.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("put identity: %w", err)
	}
	return nil
}

// GetIdentity loads an identity by remote user id.
func (s *Store) GetIdentity(ctx context.Context, userID string) (identity.Identity, error) {
	if strings.TrimSpace(userID) == "" {
		return identity.Identity{}, fmt.Errorf("user id is required")
	}
	return s.getIdentity(ctx, "id = $1", userID)
}

// GetIdentityByName loads an identity by user name.
func (s *Store) GetIdentityByName(ctx context.Context, userName string) (identity.Identity, error) {
	if strings.TrimSpace(userName) == "" {
		return identity.Identity{}, fmt.Errorf("user name is required")
	}
	return s.getIdentity(ctx, "user_name = $1", userName)
}

func (s *Store) getIdentity(ctx context.Context, where, arg string) (identity.Identity, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, user_name, state, COALESCE(registration_json, ''), profile_data, created_at, updated_at
FROM bridge_identities WHERE `+where, arg)

	var (
		ident identity.Identity
		state int
		reg   string
	)
	if err := row.Scan(&ident.ID, &ident.UserName, &state, &reg, &ident.ProfileData, &ident.CreatedAt, &ident.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Identity{}, storage.ErrNotFound
		}
		return identity.Identity{}, fmt.Errorf("get identity: %w", err)
	}
	registration, err := storage.DecodeRegistration(reg)
	if err != nil {
		return identity.Identity{}, err
	}
	ident.State = identity.State(state)
	ident.Registration = registration
	ident.CreatedAt = ident.CreatedAt.UTC()
	ident.UpdatedAt = ident.UpdatedAt.UTC()
	return ident, nil
}

// DeleteIdentity removes an identity. Deleting a missing identity is not an error.
func (s *Store) DeleteIdentity(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM bridge_identities WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

// PutTresor inserts or replaces a tresor membership mirror.
func (s *Store) PutTresor(ctx context.Context, tresor storage.Tresor) error {
	key := storage.NormalizeTresorID(tresor.ID)
	if key == "" {
		return fmt.Errorf("tresor id is required")
	}
	members, err := storage.EncodeMembers(tresor.Members)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO bridge_tresors (id, display_id, members_json, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    members_json = EXCLUDED.members_json,
    updated_at = EXCLUDED.updated_at`,
		key, strings.TrimSpace(tresor.ID), members, tresor.CreatedAt.UTC(), tresor.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("put tresor: %w", err)
	}
	return nil
}

// GetTresor loads a tresor by case-insensitive id.
func (s *Store) GetTresor(ctx context.Context, tresorID string) (storage.Tresor, error) {
	key := storage.NormalizeTresorID(tresorID)
	if key == "" {
		return storage.Tresor{}, fmt.Errorf("tresor id is required")
	}
	var (
		tresor  storage.Tresor
		members string
	)
	row := s.pool.QueryRow(ctx, `SELECT display_id, members_json, created_at, updated_at FROM bridge_tresors WHERE id = $1`, key)
	if err := row.Scan(&tresor.ID, &members, &tresor.CreatedAt, &tresor.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Tresor{}, storage.ErrNotFound
		}
		return storage.Tresor{}, fmt.Errorf("get tresor: %w", err)
	}
	decoded, err := storage.DecodeMembers(members)
	if err != nil {
		return storage.Tresor{}, err
	}
	tresor.Members = decoded
	return tresor, nil
}

// PutDataEntry inserts or replaces a data entry.
func (s *Store) PutDataEntry(ctx context.Context, entry storage.DataEntry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("data id is required")
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO bridge_data_entries (id, tresor_id, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    tresor_id = EXCLUDED.tresor_id,
    data = EXCLUDED.data,
    updated_at = EXCLUDED.updated_at`,
		entry.ID, storage.NormalizeTresorID(entry.TresorID), entry.Data, entry.CreatedAt.UTC(), entry.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("put data entry: %w", err)
	}
	return nil
}

// GetDataEntry loads a data entry by id.
func (s *Store) GetDataEntry(ctx context.Context, entryID string) (storage.DataEntry, error) {
	if strings.TrimSpace(entryID) == "" {
		return storage.DataEntry{}, fmt.Errorf("data id is required")
	}
	var entry storage.DataEntry
	row := s.pool.QueryRow(ctx, `SELECT id, tresor_id, data, created_at, updated_at FROM bridge_data_entries WHERE id = $1`, entryID)
	if err := row.Scan(&entry.ID, &entry.TresorID, &entry.Data, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.DataEntry{}, storage.ErrNotFound
		}
		return storage.DataEntry{}, fmt.Errorf("get data entry: %w", err)
	}
	return entry, nil
}
