// Package policy defines the application decisions consulted by the bridge
// before a remote operation is committed or local data is served.
//
// Every decision is optional. A Hooks value with no functions set approves
// everything and passes payloads through unchanged.
package policy

import (
	"context"

	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage"
)

// ValidateFunc validates a user with its validation code. The bridge passes
// one to FinishedRegistration so a policy can validate immediately.
type ValidateFunc func(ctx context.Context, userID, validationCode string) error

// DataContext is a stored data entry together with the tresor it is bound
// to. Tresor is nil when the tresor is not mirrored locally.
type DataContext struct {
	Entry  storage.DataEntry
	Tresor *storage.Tresor
}

// Policy is the full set of decisions. Referenced identities other than the
// actor may be nil when they are not registered locally.
type Policy interface {
	InitReg(ctx context.Context, userName, profileData string) (bool, error)
	CanFinishRegistration(ctx context.Context, ident identity.Identity) (bool, error)
	FinishedRegistration(ctx context.Context, ident identity.Identity, validationCode string, validate ValidateFunc) error
	CanValidateUser(ctx context.Context, ident identity.Identity) (bool, error)
	// CanGetUserID has inverted polarity: returning true denies the lookup.
	CanGetUserID(ctx context.Context, ident identity.Identity) (bool, error)

	CanCreateTresor(ctx context.Context, actor identity.Identity, members []string, tresorID string) (bool, error)
	ApproveShare(ctx context.Context, tresor storage.Tresor, invitee, inviter *identity.Identity, actor identity.Identity) (bool, error)
	ApproveKick(ctx context.Context, tresor storage.Tresor, kicked, kicker *identity.Identity, actor identity.Identity) (bool, error)
	ApproveInvitationLinkCreation(ctx context.Context, actor identity.Identity, tresor storage.Tresor, inviter *identity.Identity) (bool, error)
	ApproveInvitationLinkAcception(ctx context.Context, tresor storage.Tresor, invitee, inviter *identity.Identity, actor identity.Identity) (bool, error)
	ApproveInvitationLinkRevocation(ctx context.Context, tresor storage.Tresor, revoker *identity.Identity, actor identity.Identity) (bool, error)

	CanAccessData(ctx context.Context, actor identity.Identity, entry DataContext) (bool, error)
	CanStoreData(ctx context.Context, actor identity.Identity, dataID, body string, tresor *storage.Tresor, oldEntry *DataContext) (bool, error)
	CanStoreProfile(ctx context.Context, actor identity.Identity, profileData string) (bool, error)
	OpenIDVerify(ctx context.Context, ident identity.Identity, claims map[string]any) (bool, error)

	TransformDataToGet(ctx context.Context, entry DataContext) (string, error)
	TransformDataToStore(ctx context.Context, actor identity.Identity, dataID, body string, oldEntry *DataContext) (string, error)
	TransformProfileToGet(ctx context.Context, actor identity.Identity, profileData string) (string, error)
	TransformProfileToStore(ctx context.Context, actor identity.Identity, profileData string) (string, error)
}

// Hooks implements Policy from optional functions. A nil function approves,
// or returns its payload unchanged for transforms.
type Hooks struct {
	InitRegFunc               func(ctx context.Context, userName, profileData string) (bool, error)
	CanFinishRegistrationFunc func(ctx context.Context, ident identity.Identity) (bool, error)
	FinishedRegistrationFunc  func(ctx context.Context, ident identity.Identity, validationCode string, validate ValidateFunc) error
	CanValidateUserFunc       func(ctx context.Context, ident identity.Identity) (bool, error)
	CanGetUserIDFunc          func(ctx context.Context, ident identity.Identity) (bool, error)

	CanCreateTresorFunc                 func(ctx context.Context, actor identity.Identity, members []string, tresorID string) (bool, error)
	ApproveShareFunc                    func(ctx context.Context, tresor storage.Tresor, invitee, inviter *identity.Identity, actor identity.Identity) (bool, error)
	ApproveKickFunc                     func(ctx context.Context, tresor storage.Tresor, kicked, kicker *identity.Identity, actor identity.Identity) (bool, error)
	ApproveInvitationLinkCreationFunc   func(ctx context.Context, actor identity.Identity, tresor storage.Tresor, inviter *identity.Identity) (bool, error)
	ApproveInvitationLinkAcceptionFunc  func(ctx context.Context, tresor storage.Tresor, invitee, inviter *identity.Identity, actor identity.Identity) (bool, error)
	ApproveInvitationLinkRevocationFunc func(ctx context.Context, tresor storage.Tresor, revoker *identity.Identity, actor identity.Identity) (bool, error)

	CanAccessDataFunc   func(ctx context.Context, actor identity.Identity, entry DataContext) (bool, error)
	CanStoreDataFunc    func(ctx context.Context, actor identity.Identity, dataID, body string, tresor *storage.Tresor, oldEntry *DataContext) (bool, error)
	CanStoreProfileFunc func(ctx context.Context, actor identity.Identity, profileData string) (bool, error)
	OpenIDVerifyFunc    func(ctx context.Context, ident identity.Identity, claims map[string]any) (bool, error)

	TransformDataToGetFunc      func(ctx context.Context, entry DataContext) (string, error)
	TransformDataToStoreFunc    func(ctx context.Context, actor identity.Identity, dataID, body string, oldEntry *DataContext) (string, error)
	TransformProfileToGetFunc   func(ctx context.Context, actor identity.Identity, profileData string) (string, error)
	TransformProfileToStoreFunc func(ctx context.Context, actor identity.Identity, profileData string) (string, error)
}

var _ Policy = Hooks{}

func (h Hooks) InitReg(ctx context.Context, userName, profileData string) (bool, error) {
	if h.InitRegFunc == nil {
		return true, nil
	}
	return h.InitRegFunc(ctx, userName, profileData)
}

func (h Hooks) CanFinishRegistration(ctx context.Context, ident identity.Identity) (bool, error) {
	if h.CanFinishRegistrationFunc == nil {
		return true, nil
	}
	return h.CanFinishRegistrationFunc(ctx, ident)
}

func (h Hooks) FinishedRegistration(ctx context.Context, ident identity.Identity, validationCode string, validate ValidateFunc) error {
	if h.FinishedRegistrationFunc == nil {
		return nil
	}
	return h.FinishedRegistrationFunc(ctx, ident, validationCode, validate)
}

func (h Hooks) CanValidateUser(ctx context.Context, ident identity.Identity) (bool, error) {
	if h.CanValidateUserFunc == nil {
		return true, nil
	}
	return h.CanValidateUserFunc(ctx, ident)
}

// CanGetUserID defaults to false, which allows the lookup.
func (h Hooks) CanGetUserID(ctx context.Context, ident identity.Identity) (bool, error) {
	if h.CanGetUserIDFunc == nil {
		return false, nil
	}
	return h.CanGetUserIDFunc(ctx, ident)
}

func (h Hooks) CanCreateTresor(ctx context.Context, actor identity.Identity, members []string, tresorID string) (bool, error) {
	if h.CanCreateTresorFunc == nil {
		return true, nil
	}
	return h.CanCreateTresorFunc(ctx, actor, members, tresorID)
}

func (h Hooks) ApproveShare(ctx context.Context, tresor storage.Tresor, invitee, inviter *identity.Identity, actor identity.Identity) (bool, error) {
	if h.ApproveShareFunc == nil {
		return true, nil
	}
	return h.ApproveShareFunc(ctx, tresor, invitee, inviter, actor)
}

func (h Hooks) ApproveKick(ctx context.Context, tresor storage.Tresor, kicked, kicker *identity.Identity, actor identity.Identity) (bool, error) {
	if h.ApproveKickFunc == nil {
		return true, nil
	}
	return h.ApproveKickFunc(ctx, tresor, kicked, kicker, actor)
}

func (h Hooks) ApproveInvitationLinkCreation(ctx context.Context, actor identity.Identity, tresor storage.Tresor, inviter *identity.Identity) (bool, error) {
	if h.ApproveInvitationLinkCreationFunc == nil {
		return true, nil
	}
	return h.ApproveInvitationLinkCreationFunc(ctx, actor, tresor, inviter)
}

func (h Hooks) ApproveInvitationLinkAcception(ctx context.Context, tresor storage.Tresor, invitee, inviter *identity.Identity, actor identity.Identity) (bool, error) {
	if h.ApproveInvitationLinkAcceptionFunc == nil {
		return true, nil
	}
	return h.ApproveInvitationLinkAcceptionFunc(ctx, tresor, invitee, inviter, actor)
}

func (h Hooks) ApproveInvitationLinkRevocation(ctx context.Context, tresor storage.Tresor, revoker *identity.Identity, actor identity.Identity) (bool, error) {
	if h.ApproveInvitationLinkRevocationFunc == nil {
		return true, nil
	}
	return h.ApproveInvitationLinkRevocationFunc(ctx, tresor, revoker, actor)
}

func (h Hooks) CanAccessData(ctx context.Context, actor identity.Identity, entry DataContext) (bool, error) {
	if h.CanAccessDataFunc == nil {
		return true, nil
	}
	return h.CanAccessDataFunc(ctx, actor, entry)
}

func (h Hooks) CanStoreData(ctx context.Context, actor identity.Identity, dataID, body string, tresor *storage.Tresor, oldEntry *DataContext) (bool, error) {
	if h.CanStoreDataFunc == nil {
		return true, nil
	}
	return h.CanStoreDataFunc(ctx, actor, dataID, body, tresor, oldEntry)
}

func (h Hooks) CanStoreProfile(ctx context.Context, actor identity.Identity, profileData string) (bool, error) {
	if h.CanStoreProfileFunc == nil {
		return true, nil
	}
	return h.CanStoreProfileFunc(ctx, actor, profileData)
}

func (h Hooks) OpenIDVerify(ctx context.Context, ident identity.Identity, claims map[string]any) (bool, error) {
	if h.OpenIDVerifyFunc == nil {
		return true, nil
	}
	return h.OpenIDVerifyFunc(ctx, ident, claims)
}

func (h Hooks) TransformDataToGet(ctx context.Context, entry DataContext) (string, error) {
	if h.TransformDataToGetFunc == nil {
		return entry.Entry.Data, nil
	}
	return h.TransformDataToGetFunc(ctx, entry)
}

func (h Hooks) TransformDataToStore(ctx context.Context, actor identity.Identity, dataID, body string, oldEntry *DataContext) (string, error) {
	if h.TransformDataToStoreFunc == nil {
		return body, nil
	}
	return h.TransformDataToStoreFunc(ctx, actor, dataID, body, oldEntry)
}

func (h Hooks) TransformProfileToGet(ctx context.Context, actor identity.Identity, profileData string) (string, error) {
	if h.TransformProfileToGetFunc == nil {
		return profileData, nil
	}
	return h.TransformProfileToGetFunc(ctx, actor, profileData)
}

func (h Hooks) TransformProfileToStore(ctx context.Context, actor identity.Identity, profileData string) (string, error) {
	if h.TransformProfileToStoreFunc == nil {
		return profileData, nil
	}
	return h.TransformProfileToStoreFunc(ctx, actor, profileData)
}
