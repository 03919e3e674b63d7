package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/tresorgate/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements bridge persistence over a single SQLite file.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

// DB returns the raw database handle.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Open opens a bridge SQLite store and applies bundled migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutIdentity inserts or replaces an identity by id.
func (s *Store) PutIdentity(ctx context.Context, ident identity.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
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

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO identities (id, user_name, state, registration_json, profile_data, created_at, updated_at)
VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    user_name = excluded.user_name,
    state = excluded.state,
    registration_json = excluded.registration_json,
    profile_data = excluded.profile_data,
    updated_at = excluded.updated_at`,
		ident.ID,
		ident.UserName,
		int(ident.State),
		reg,
		ident.ProfileData,
		toMillis(ident.CreatedAt),
		toMillis(ident.UpdatedAt),
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
	return s.getIdentity(ctx, "id = ?", userID)
}

// GetIdentityByName loads an identity by user name.
func (s *Store) GetIdentityByName(ctx context.Context, userName string) (identity.Identity, error) {
	if strings.TrimSpace(userName) == "" {
		return identity.Identity{}, fmt.Errorf("user name is required")
	}
	return s.getIdentity(ctx, "user_name = ?", userName)
}

func (s *Store) getIdentity(ctx context.Context, where string, arg string) (identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return identity.Identity{}, err
	}
	if s == nil || s.sqlDB == nil {
		return identity.Identity{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, user_name, state, COALESCE(registration_json, ''), profile_data, created_at, updated_at
FROM identities WHERE `+where, arg)

	var (
		ident     identity.Identity
		state     int
		reg       string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&ident.ID, &ident.UserName, &state, &reg, &ident.ProfileData, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	ident.CreatedAt = fromMillis(createdAt)
	ident.UpdatedAt = fromMillis(updatedAt)
	return ident, nil
}

// DeleteIdentity removes an identity. Deleting a missing identity is not an error.
func (s *Store) DeleteIdentity(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

// PutTresor inserts or replaces a tresor membership mirror.
func (s *Store) PutTresor(ctx context.Context, tresor storage.Tresor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	key := storage.NormalizeTresorID(tresor.ID)
	if key == "" {
		return fmt.Errorf("tresor id is required")
	}
	members, err := storage.EncodeMembers(tresor.Members)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO tresors (id, display_id, members_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    members_json = excluded.members_json,
    updated_at = excluded.updated_at`,
		key,
		strings.TrimSpace(tresor.ID),
		members,
		toMillis(tresor.CreatedAt),
		toMillis(tresor.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put tresor: %w", err)
	}
	return nil
}

// GetTresor loads a tresor by case-insensitive id.
func (s *Store) GetTresor(ctx context.Context, tresorID string) (storage.Tresor, error) {
	if err := ctx.Err(); err != nil {
		return storage.Tresor{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Tresor{}, fmt.Errorf("storage is not configured")
	}
	key := storage.NormalizeTresorID(tresorID)
	if key == "" {
		return storage.Tresor{}, fmt.Errorf("tresor id is required")
	}

	var (
		tresor    storage.Tresor
		members   string
		createdAt int64
		updatedAt int64
	)
	row := s.sqlDB.QueryRowContext(ctx, `SELECT display_id, members_json, created_at, updated_at FROM tresors WHERE id = ?`, key)
	if err := row.Scan(&tresor.ID, &members, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Tresor{}, storage.ErrNotFound
		}
		return storage.Tresor{}, fmt.Errorf("get tresor: %w", err)
	}
	decoded, err := storage.DecodeMembers(members)
	if err != nil {
		return storage.Tresor{}, err
	}
	tresor.Members = decoded
	tresor.CreatedAt = fromMillis(createdAt)
	tresor.UpdatedAt = fromMillis(updatedAt)
	return tresor, nil
}

// PutDataEntry inserts or replaces a data entry.
func (s *Store) PutDataEntry(ctx context.Context, entry storage.DataEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("data id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO data_entries (id, tresor_id, data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    tresor_id = excluded.tresor_id,
    data = excluded.data,
    updated_at = excluded.updated_at`,
		entry.ID,
		storage.NormalizeTresorID(entry.TresorID),
		entry.Data,
		toMillis(entry.CreatedAt),
		toMillis(entry.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put data entry: %w", err)
	}
	return nil
}

// GetDataEntry loads a data entry by id.
func (s *Store) GetDataEntry(ctx context.Context, entryID string) (storage.DataEntry, error) {
	if err := ctx.Err(); err != nil {
		return storage.DataEntry{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.DataEntry{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(entryID) == "" {
		return storage.DataEntry{}, fmt.Errorf("data id is required")
	}

	var (
		entry     storage.DataEntry
		createdAt int64
		updatedAt int64
	)
	row := s.sqlDB.QueryRowContext(ctx, `SELECT id, tresor_id, data, created_at, updated_at FROM data_entries WHERE id = ?`, entryID)
	if err := row.Scan(&entry.ID, &entry.TresorID, &entry.Data, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.DataEntry{}, storage.ErrNotFound
		}
		return storage.DataEntry{}, fmt.Errorf("get data entry: %w", err)
	}
	entry.CreatedAt = fromMillis(createdAt)
	entry.UpdatedAt = fromMillis(updatedAt)
	return entry, nil
}
