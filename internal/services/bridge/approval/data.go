package approval

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/policy"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage"
)

// GetProfile returns the actor's stored profile data after the read
// transform.
func (b *Bridge) GetProfile(ctx context.Context, actor identity.Identity) (_ string, err error) {
	ctx, finish := b.startSpan(ctx, "GetProfile")
	defer finish(&err)

	ident, err := b.sessionIdentity(ctx, actor)
	if err != nil {
		return "", err
	}
	out, err := b.policy.TransformProfileToGet(ctx, ident.Public(), ident.ProfileData)
	if err != nil {
		return "", hookFailed("transformProfileToGet", err)
	}
	return out, nil
}

// StoreProfile replaces the actor's profile data and returns the stored
// value.
func (b *Bridge) StoreProfile(ctx context.Context, actor identity.Identity, profileData string) (_ string, err error) {
	ctx, finish := b.startSpan(ctx, "StoreProfile")
	defer finish(&err)

	ident, err := b.sessionIdentity(ctx, actor)
	if err != nil {
		return "", err
	}
	ok, hookErr := b.policy.CanStoreProfile(ctx, ident.Public(), profileData)
	if err := decided(ok, hookErr, "canStoreProfile"); err != nil {
		return "", err
	}
	stored, err := b.policy.TransformProfileToStore(ctx, ident.Public(), profileData)
	if err != nil {
		return "", hookFailed("transformProfileToStore", err)
	}
	ident.ProfileData = stored
	ident.UpdatedAt = b.now()
	if err := b.identities.PutIdentity(ctx, ident); err != nil {
		return "", apperrors.Unexpected("save profile", err)
	}
	return stored, nil
}

// GetData returns a data entry's payload if the policy grants the actor
// access.
func (b *Bridge) GetData(ctx context.Context, actor identity.Identity, dataID string) (_ string, err error) {
	if dataID == "" {
		return "", apperrors.BadInput(apperrors.CodeMissingDataID, nil)
	}
	ctx, finish := b.startSpan(ctx, "GetData", attribute.String("data.id", dataID))
	defer finish(&err)

	entry, err := b.loadDataContext(ctx, dataID)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", apperrors.NotFound(apperrors.CodeDataEntryNotFound)
	}

	ok, hookErr := b.policy.CanAccessData(ctx, actor, *entry)
	if err := decided(ok, hookErr, "canAccessData"); err != nil {
		return "", err
	}
	out, err := b.policy.TransformDataToGet(ctx, *entry)
	if err != nil {
		return "", hookFailed("transformDataToGet", err)
	}
	return out, nil
}

// StoreData creates or replaces a data entry bound to tresorID.
func (b *Bridge) StoreData(ctx context.Context, actor identity.Identity, dataID, tresorID, body string) (err error) {
	if dataID == "" {
		return apperrors.BadInput(apperrors.CodeMissingDataID, nil)
	}
	if tresorID == "" {
		return apperrors.BadInput(apperrors.CodeMissingTresorID, nil)
	}
	ctx, finish := b.startSpan(ctx, "StoreData",
		attribute.String("data.id", dataID),
		attribute.String("tresor.id", tresorID),
	)
	defer finish(&err)

	tresor, err := b.lookupTresor(ctx, tresorID)
	if err != nil {
		return err
	}
	old, err := b.loadDataContext(ctx, dataID)
	if err != nil {
		return err
	}

	ok, hookErr := b.policy.CanStoreData(ctx, actor, dataID, body, tresor, old)
	if err := decided(ok, hookErr, "canStoreData"); err != nil {
		return err
	}
	stored, err := b.policy.TransformDataToStore(ctx, actor, dataID, body, old)
	if err != nil {
		return hookFailed("transformDataToStore", err)
	}

	now := b.now()
	entry := storage.DataEntry{ID: dataID, TresorID: tresorID, Data: stored, CreatedAt: now, UpdatedAt: now}
	if old != nil {
		entry.CreatedAt = old.Entry.CreatedAt
	}
	if err := b.data.PutDataEntry(ctx, entry); err != nil {
		return apperrors.Unexpected("save data entry", err)
	}
	return nil
}

// sessionIdentity reloads the actor. The actor comes from an authenticated
// session, so a missing record is unexpected rather than not found.
func (b *Bridge) sessionIdentity(ctx context.Context, actor identity.Identity) (identity.Identity, error) {
	ident, err := b.identities.GetIdentity(ctx, actor.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return identity.Identity{}, apperrors.Unexpected(string(apperrors.CodeUserNotFound), err)
	}
	if err != nil {
		return identity.Identity{}, apperrors.Unexpected("load identity", err)
	}
	return ident, nil
}

// loadDataContext reads a data entry with its tresor. A missing entry
// yields nil.
func (b *Bridge) loadDataContext(ctx context.Context, dataID string) (*policy.DataContext, error) {
	entry, err := b.data.GetDataEntry(ctx, dataID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Unexpected("load data entry", err)
	}
	tresor, err := b.lookupTresor(ctx, entry.TresorID)
	if err != nil {
		return nil, err
	}
	return &policy.DataContext{Entry: entry, Tresor: tresor}, nil
}

func hookFailed(hook string, err error) error {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return apperrors.Unexpectedf(err, "policy %s failed", hook)
}
