package approval

import (
	"context"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/policy"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage"
)

func membershipPolicy() policy.Hooks {
	return policy.Hooks{
		CanAccessDataFunc: func(_ context.Context, actor identity.Identity, entry policy.DataContext) (bool, error) {
			return entry.Tresor != nil && entry.Tresor.HasMember(actor.ID), nil
		},
		CanStoreDataFunc: func(_ context.Context, actor identity.Identity, _, _ string, tresor *storage.Tresor, _ *policy.DataContext) (bool, error) {
			return tresor != nil && tresor.HasMember(actor.ID), nil
		},
	}
}

func TestStoreAndGetData(t *testing.T) {
	b := newTestBridge(t, membershipPolicy())
	ctx := context.Background()
	alice := registerValidated(t, b, "alice")
	bob := registerValidated(t, b, "bob")
	seedTresor(t, b, alice, "t1", alice.ID)

	if err := b.StoreData(ctx, alice, "doc-1", "t1", `{"secret":"cipher"}`); err != nil {
		t.Fatalf("store data: %v", err)
	}
	got, err := b.GetData(ctx, alice, "doc-1")
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if got != `{"secret":"cipher"}` {
		t.Fatalf("unexpected data %q", got)
	}

	_, err = b.GetData(ctx, bob, "doc-1")
	assertCode(t, err, apperrors.CodeApplicationDenied)
	assertCode(t, b.StoreData(ctx, bob, "doc-1", "t1", "{}"), apperrors.CodeApplicationDenied)
	assertCode(t, b.StoreData(ctx, alice, "doc-2", "unknown", "{}"), apperrors.CodeApplicationDenied)
}

func TestDataInputErrors(t *testing.T) {
	b := newTestBridge(t, nil)
	ctx := context.Background()
	actor := identity.Identity{ID: "actor"}

	_, err := b.GetData(ctx, actor, "")
	assertCode(t, err, apperrors.CodeMissingDataID)
	_, err = b.GetData(ctx, actor, "missing")
	assertCode(t, err, apperrors.CodeDataEntryNotFound)
	assertCode(t, b.StoreData(ctx, actor, "", "t1", "{}"), apperrors.CodeMissingDataID)
	assertCode(t, b.StoreData(ctx, actor, "doc", "", "{}"), apperrors.CodeMissingTresorID)
}

func TestDataTransforms(t *testing.T) {
	var sawOld *policy.DataContext
	pol := policy.Hooks{
		TransformDataToStoreFunc: func(_ context.Context, _ identity.Identity, _, body string, old *policy.DataContext) (string, error) {
			sawOld = old
			return strings.ToUpper(body), nil
		},
		TransformDataToGetFunc: func(_ context.Context, entry policy.DataContext) (string, error) {
			return "get:" + entry.Entry.Data, nil
		},
	}
	b := newTestBridge(t, pol)
	ctx := context.Background()
	actor := identity.Identity{ID: "actor"}
	seedTresor(t, b, actor, "t1", actor.ID)

	if err := b.StoreData(ctx, actor, "doc", "t1", "first"); err != nil {
		t.Fatalf("store: %v", err)
	}
	if sawOld != nil {
		t.Fatalf("expected no previous entry, got %+v", sawOld)
	}
	if err := b.StoreData(ctx, actor, "doc", "t1", "second"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if sawOld == nil || sawOld.Entry.Data != "FIRST" || sawOld.Tresor == nil {
		t.Fatalf("expected previous entry with tresor, got %+v", sawOld)
	}
	got, err := b.GetData(ctx, actor, "doc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "get:SECOND" {
		t.Fatalf("unexpected data %q", got)
	}
}

func TestProfile(t *testing.T) {
	pol := policy.Hooks{
		CanStoreProfileFunc: func(_ context.Context, _ identity.Identity, profile string) (bool, error) {
			return !strings.Contains(profile, "forbidden"), nil
		},
	}
	b := newTestBridge(t, pol)
	ctx := context.Background()
	alice := registerValidated(t, b, "alice")

	stored, err := b.StoreProfile(ctx, alice, `{"nick":"al"}`)
	if err != nil {
		t.Fatalf("store profile: %v", err)
	}
	if stored != `{"nick":"al"}` {
		t.Fatalf("unexpected stored profile %q", stored)
	}
	_, err = b.StoreProfile(ctx, alice, `{"forbidden":true}`)
	assertCode(t, err, apperrors.CodeApplicationDenied)

	got, err := b.GetProfile(ctx, alice)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got != `{"nick":"al"}` {
		t.Fatalf("unexpected profile %q", got)
	}

	_, err = b.GetProfile(ctx, identity.Identity{ID: "ghost"})
	assertCode(t, err, apperrors.CodeUnexpected)
}
