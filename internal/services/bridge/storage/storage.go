package storage

import (
	"context"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/louisbranch/tresorgate/internal/platform/errors"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

var tresorFolder = cases.Fold()

// NormalizeTresorID returns the lookup key for a tresor id. Tresor ids are
// case-insensitive.
func NormalizeTresorID(tresorID string) string {
	return tresorFolder.String(strings.TrimSpace(tresorID))
}

// Tresor mirrors the membership of a remote tresor.
type Tresor struct {
	ID        string
	Members   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasMember reports whether userID is in the member set.
func (t Tresor) HasMember(userID string) bool {
	return slices.Contains(t.Members, userID)
}

// AddMember appends userID to the member set.
func (t *Tresor) AddMember(userID string) {
	t.Members = append(t.Members, userID)
}

// RemoveMember drops the first occurrence of userID. It reports whether the
// id was present.
func (t *Tresor) RemoveMember(userID string) bool {
	idx := slices.Index(t.Members, userID)
	if idx == -1 {
		return false
	}
	t.Members = slices.Delete(t.Members, idx, idx+1)
	return true
}

// DataEntry is an application payload bound to a tresor.
type DataEntry struct {
	ID        string
	TresorID  string
	Data      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IdentityStore persists identities.
type IdentityStore interface {
	PutIdentity(ctx context.Context, ident identity.Identity) error
	GetIdentity(ctx context.Context, userID string) (identity.Identity, error)
	GetIdentityByName(ctx context.Context, userName string) (identity.Identity, error)
	DeleteIdentity(ctx context.Context, userID string) error
}

// TresorStore persists tresor membership mirrors.
type TresorStore interface {
	PutTresor(ctx context.Context, tresor Tresor) error
	GetTresor(ctx context.Context, tresorID string) (Tresor, error)
}

// DataStore persists application data entries.
type DataStore interface {
	PutDataEntry(ctx context.Context, entry DataEntry) error
	GetDataEntry(ctx context.Context, entryID string) (DataEntry, error)
}

// Store combines every bridge persistence contract.
type Store interface {
	IdentityStore
	TresorStore
	DataStore
	Close() error
}
