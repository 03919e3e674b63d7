package approval

import (
	"context"
	"crypto/subtle"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
	"github.com/louisbranch/tresorgate/internal/services/bridge/adminapi"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage"
)

// InitRegistration opens a remote registration session for userName.
//
// A name held by an identity that finished registration is taken. A name
// held by an identity still in StateInitiated is released and the stale
// record discarded. Calls for the same name are serialized.
func (b *Bridge) InitRegistration(ctx context.Context, userName, profileData string) (ident identity.Identity, err error) {
	userName = identity.NormalizeUserName(userName)
	if userName == "" {
		return identity.Identity{}, apperrors.BadInput(apperrors.CodeMissingUserName, nil)
	}
	ctx, finish := b.startSpan(ctx, "InitRegistration")
	defer finish(&err)

	unlock := b.names.Lock(userName)
	defer unlock()

	existing, err := b.identities.GetIdentityByName(ctx, userName)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return identity.Identity{}, apperrors.Unexpected("load identity", err)
	case existing.State >= identity.StateFinishedRegistration:
		return identity.Identity{}, apperrors.BadInput(apperrors.CodeUserNameTaken, nil)
	default:
		logf("discarding unfinished registration %s for %s", logID(existing.ID), userName)
		if err := b.identities.DeleteIdentity(ctx, existing.ID); err != nil {
			return identity.Identity{}, apperrors.Unexpected("discard unfinished registration", err)
		}
	}

	ok, hookErr := b.policy.InitReg(ctx, userName, profileData)
	if err := decided(ok, hookErr, "initReg"); err != nil {
		return identity.Identity{}, err
	}

	reg, err := b.remote.InitUserRegistration(ctx)
	if err != nil {
		return identity.Identity{}, apperrors.Unexpected("init user registration", err)
	}

	now := b.now()
	ident = identity.Identity{
		ID:       reg.UserID,
		UserName: userName,
		State:    identity.StateInitiated,
		Registration: &identity.RegistrationData{
			SessionID:       reg.RegSessionID,
			SessionVerifier: reg.RegSessionVerifier,
		},
		ProfileData: profileData,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.identities.PutIdentity(ctx, ident); err != nil {
		return identity.Identity{}, apperrors.Unexpected("save identity", err)
	}
	logf("registration initiated for %s as %s", userName, logID(ident.ID))
	return ident, nil
}

// FinishRegistration records the client's validation verifier, generates a
// validation code and moves the identity to StateFinishedRegistration. The
// policy is then notified and may validate the identity right away.
func (b *Bridge) FinishRegistration(ctx context.Context, userID, validationVerifier string) (err error) {
	if userID == "" {
		return apperrors.BadInput(apperrors.CodeMissingUserID, nil)
	}
	if validationVerifier == "" {
		return apperrors.BadInput(apperrors.CodeMissingValidationVerifier, nil)
	}
	ctx, finish := b.startSpan(ctx, "FinishRegistration", attribute.String("user.id", userID))
	defer finish(&err)

	ident, code, err := b.finishLocked(ctx, userID, validationVerifier)
	if err != nil {
		return err
	}
	logf("registration finished for %s", ident.UserName)

	if err := b.policy.FinishedRegistration(ctx, ident.Clone(), code, b.ValidateUser); err != nil {
		var domainErr *apperrors.Error
		if errors.As(err, &domainErr) {
			return domainErr
		}
		return apperrors.Unexpected("policy finishedRegistration failed", err)
	}
	return nil
}

func (b *Bridge) finishLocked(ctx context.Context, userID, validationVerifier string) (identity.Identity, string, error) {
	ident, err := b.identities.GetIdentity(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return identity.Identity{}, "", apperrors.NotFound(apperrors.CodeUserNotFound)
	}
	if err != nil {
		return identity.Identity{}, "", apperrors.Unexpected("load identity", err)
	}

	// Hold the name so a concurrent init cannot discard this identity
	// between the state check and the write.
	unlock := b.names.Lock(ident.UserName)
	defer unlock()

	ident, err = b.identities.GetIdentity(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return identity.Identity{}, "", apperrors.NotFound(apperrors.CodeUserNotFound)
	}
	if err != nil {
		return identity.Identity{}, "", apperrors.Unexpected("load identity", err)
	}
	if ident.State != identity.StateInitiated {
		return identity.Identity{}, "", apperrors.BadInput(apperrors.CodeUserInWrongState, nil)
	}

	ok, hookErr := b.policy.CanFinishRegistration(ctx, ident.Clone())
	if err := decided(ok, hookErr, "canFinishRegistration"); err != nil {
		return identity.Identity{}, "", err
	}

	code, err := identity.NewValidationCode()
	if err != nil {
		return identity.Identity{}, "", apperrors.Unexpected("generate validation code", err)
	}
	if ident.Registration == nil {
		ident.Registration = &identity.RegistrationData{}
	}
	ident.Registration.ValidationVerifier = validationVerifier
	ident.Registration.ValidationCode = code
	if err := ident.Advance(identity.StateFinishedRegistration); err != nil {
		return identity.Identity{}, "", apperrors.Unexpected("advance identity", err)
	}
	ident.UpdatedAt = b.now()
	if err := b.identities.PutIdentity(ctx, ident); err != nil {
		return identity.Identity{}, "", apperrors.Unexpected("save identity", err)
	}
	return ident, code, nil
}

// ValidateUser enables a finished registration when validationCode matches.
func (b *Bridge) ValidateUser(ctx context.Context, userID, validationCode string) (err error) {
	if userID == "" {
		return apperrors.BadInput(apperrors.CodeMissingUserID, nil)
	}
	if validationCode == "" {
		return apperrors.BadInput(apperrors.CodeMissingValidationCode, nil)
	}
	ctx, finish := b.startSpan(ctx, "ValidateUser", attribute.String("user.id", userID))
	defer finish(&err)

	ident, err := b.identities.GetIdentity(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound(apperrors.CodeUserNotFound)
	}
	if err != nil {
		return apperrors.Unexpected("load identity", err)
	}
	switch ident.State {
	case identity.StateInitiated:
		return apperrors.NotFound(apperrors.CodeUserNotFound)
	case identity.StateValidated:
		return apperrors.BadInput(apperrors.CodeUserAlreadyValidated, nil)
	}
	reg := ident.Registration
	if reg == nil || subtle.ConstantTimeCompare([]byte(reg.ValidationCode), []byte(validationCode)) != 1 {
		return apperrors.Forbidden(apperrors.CodeInvalidValidationCode, nil)
	}

	ok, hookErr := b.policy.CanValidateUser(ctx, ident.Clone())
	if err := decided(ok, hookErr, "canValidateUser"); err != nil {
		return err
	}

	if err := b.remote.ValidateUser(ctx, adminapi.ValidationRequest{
		RegSessionID:          reg.SessionID,
		RegSessionVerifier:    reg.SessionVerifier,
		RegValidationVerifier: reg.ValidationVerifier,
		UserID:                ident.ID,
	}); err != nil {
		return apperrors.Unexpected("validate user registration", err)
	}

	if err := ident.Advance(identity.StateValidated); err != nil {
		return apperrors.Unexpected("advance identity", err)
	}
	ident.UpdatedAt = b.now()
	if err := b.identities.PutIdentity(ctx, ident); err != nil {
		return apperrors.Unexpected("save validated identity", err)
	}
	logf("user %s validated", ident.UserName)
	return nil
}

// GetUserID resolves a validated identity's remote id by user name.
func (b *Bridge) GetUserID(ctx context.Context, userName string) (_ string, err error) {
	userName = identity.NormalizeUserName(userName)
	if userName == "" {
		return "", apperrors.BadInput(apperrors.CodeMissingUserName, nil)
	}
	ctx, finish := b.startSpan(ctx, "GetUserID")
	defer finish(&err)

	ident, err := b.identities.GetIdentityByName(ctx, userName)
	if errors.Is(err, storage.ErrNotFound) {
		return "", apperrors.NotFound(apperrors.CodeUserNotFound)
	}
	if err != nil {
		return "", apperrors.Unexpected("load identity", err)
	}
	switch ident.State {
	case identity.StateInitiated:
		return "", apperrors.NotFound(apperrors.CodeUserNotFound)
	case identity.StateFinishedRegistration:
		return "", apperrors.Forbidden(apperrors.CodeUserNotValidated, nil)
	}

	deny, hookErr := b.policy.CanGetUserID(ctx, ident.Public())
	if err := decided(!deny, hookErr, "canGetUserId"); err != nil {
		return "", err
	}
	return ident.ID, nil
}

// LoadValidated returns the validated identity for userID, as used when a
// login resolves its subject.
func (b *Bridge) LoadValidated(ctx context.Context, userID string) (identity.Identity, error) {
	ident, err := b.identities.GetIdentity(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return identity.Identity{}, apperrors.NotFound(apperrors.CodeUserNotFound)
	}
	if err != nil {
		return identity.Identity{}, apperrors.Unexpected("load identity", err)
	}
	if ident.State != identity.StateValidated {
		return identity.Identity{}, apperrors.NotFound(apperrors.CodeUserNotFound)
	}
	return ident.Public(), nil
}
