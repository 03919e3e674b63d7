package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "bridge.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStoreDBNilSafe(t *testing.T) {
	var store *Store
	if store.DB() != nil {
		t.Fatal("expected nil DB for nil store")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.db")
	for i := 0; i < 2; i++ {
		store, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
}

func TestPutGetIdentityRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	input := identity.Identity{
		ID:           "remote-1",
		UserName:     "alice",
		State:        identity.StateInitiated,
		Registration: &identity.RegistrationData{SessionID: "s1", SessionVerifier: "v1"},
		ProfileData:  `{"autoValidate":true}`,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if err := store.PutIdentity(ctx, input); err != nil {
		t.Fatalf("put identity: %v", err)
	}

	byID, err := store.GetIdentity(ctx, "remote-1")
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	if byID.UserName != "alice" || byID.State != identity.StateInitiated || byID.ProfileData != input.ProfileData {
		t.Fatalf("unexpected identity %+v", byID)
	}
	if byID.Registration == nil || byID.Registration.SessionID != "s1" {
		t.Fatalf("unexpected registration %+v", byID.Registration)
	}
	if !byID.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v", byID.CreatedAt)
	}

	byName, err := store.GetIdentityByName(ctx, "alice")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if byName.ID != "remote-1" {
		t.Fatalf("unexpected id %q", byName.ID)
	}
}

func TestPutIdentityClearsRegistration(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	ident := identity.Identity{
		ID:           "remote-1",
		UserName:     "alice",
		State:        identity.StateFinishedRegistration,
		Registration: &identity.RegistrationData{SessionID: "s1", ValidationCode: "code"},
	}
	if err := store.PutIdentity(ctx, ident); err != nil {
		t.Fatalf("put identity: %v", err)
	}
	if err := ident.Advance(identity.StateValidated); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := store.PutIdentity(ctx, ident); err != nil {
		t.Fatalf("put validated identity: %v", err)
	}
	got, err := store.GetIdentity(ctx, "remote-1")
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	if got.State != identity.StateValidated || got.Registration != nil {
		t.Fatalf("expected validated identity without registration, got %+v", got)
	}
}

func TestIdentityNamesAreUnique(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutIdentity(ctx, identity.Identity{ID: "a", UserName: "alice"}); err != nil {
		t.Fatalf("put identity: %v", err)
	}
	if err := store.PutIdentity(ctx, identity.Identity{ID: "b", UserName: "alice"}); err == nil {
		t.Fatal("expected duplicate name to fail")
	}
}

func TestDeleteIdentity(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutIdentity(ctx, identity.Identity{ID: "a", UserName: "alice"}); err != nil {
		t.Fatalf("put identity: %v", err)
	}
	if err := store.DeleteIdentity(ctx, "a"); err != nil {
		t.Fatalf("delete identity: %v", err)
	}
	if _, err := store.GetIdentity(ctx, "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.DeleteIdentity(ctx, "a"); err != nil {
		t.Fatalf("delete missing identity: %v", err)
	}
}

func TestIdentityValidation(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutIdentity(ctx, identity.Identity{ID: " ", UserName: "x"}); err == nil {
		t.Fatal("expected missing id error")
	}
	if err := store.PutIdentity(ctx, identity.Identity{ID: "x", UserName: ""}); err == nil {
		t.Fatal("expected missing name error")
	}
	if _, err := store.GetIdentityByName(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTresorLookupIsCaseInsensitive(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutTresor(ctx, storage.Tresor{ID: "TresorABC", Members: []string{"a", "b"}}); err != nil {
		t.Fatalf("put tresor: %v", err)
	}
	got, err := store.GetTresor(ctx, "tresorabc")
	if err != nil {
		t.Fatalf("get tresor: %v", err)
	}
	if got.ID != "TresorABC" || len(got.Members) != 2 {
		t.Fatalf("unexpected tresor %+v", got)
	}

	got.RemoveMember("a")
	if err := store.PutTresor(ctx, got); err != nil {
		t.Fatalf("update tresor: %v", err)
	}
	updated, err := store.GetTresor(ctx, "TRESORABC")
	if err != nil {
		t.Fatalf("get updated tresor: %v", err)
	}
	if len(updated.Members) != 1 || updated.Members[0] != "b" {
		t.Fatalf("members = %v", updated.Members)
	}
}

func TestGetTresorNotFound(t *testing.T) {
	store := openTempStore(t)
	if _, err := store.GetTresor(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDataEntryRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	entry := storage.DataEntry{ID: "d1", TresorID: "T1", Data: "ciphertext"}
	if err := store.PutDataEntry(ctx, entry); err != nil {
		t.Fatalf("put data: %v", err)
	}
	entry.Data = "ciphertext-2"
	if err := store.PutDataEntry(ctx, entry); err != nil {
		t.Fatalf("overwrite data: %v", err)
	}
	got, err := store.GetDataEntry(ctx, "d1")
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if got.Data != "ciphertext-2" || got.TresorID != storage.NormalizeTresorID("T1") {
		t.Fatalf("unexpected entry %+v", got)
	}
	if _, err := store.GetDataEntry(ctx, "d2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.GetIdentity(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
