package approval

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
	"github.com/louisbranch/tresorgate/internal/services/bridge/adminapi"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage"
)

// TresorCreated approves or rejects a tresor the actor created. On approval
// the tresor is mirrored locally with the members reported remotely.
func (b *Bridge) TresorCreated(ctx context.Context, actor identity.Identity, tresorID string) (err error) {
	if tresorID == "" {
		return apperrors.BadInput(apperrors.CodeMissingTresorID, nil)
	}
	ctx, finish := b.startSpan(ctx, "TresorCreated", attribute.String("tresor.id", tresorID))
	defer finish(&err)

	members, err := b.remote.ListTresorMembers(ctx, tresorID)
	if err != nil {
		return apperrors.BadInput(apperrors.CodeInvalidTresorID, err)
	}

	ok, hookErr := b.policy.CanCreateTresor(ctx, actor, append([]string(nil), members...), tresorID)
	if err := decided(ok, hookErr, "canCreateTresor"); err != nil {
		if !apperrors.HasCode(err, apperrors.CodeApplicationDenied) {
			return err
		}
		if rejectErr := b.remote.RejectTresorCreation(ctx, tresorID); rejectErr != nil {
			return apperrors.Unexpected("reject tresor creation", rejectErr)
		}
		logf("tresor %s creation by %s rejected", tresorID, logID(actor.ID))
		return err
	}

	if err := b.remote.ApproveTresorCreation(ctx, tresorID); err != nil {
		return apperrors.Unexpected("approve tresor creation", err)
	}
	now := b.now()
	tresor := storage.Tresor{ID: tresorID, Members: members, CreatedAt: now, UpdatedAt: now}
	if err := b.tresors.PutTresor(ctx, tresor); err != nil {
		return divergence("save created tresor", tresorID, err)
	}
	logf("tresor %s creation by %s approved", tresorID, logID(actor.ID))
	return nil
}

// UserInvited approves or rejects a share operation. On approval the
// invitee joins the local member set.
func (b *Bridge) UserInvited(ctx context.Context, actor identity.Identity, operationID string) error {
	return b.runOperation(ctx, actor, adminapi.KindShare, operationID, func(ctx context.Context, op *operationContext) (bool, error) {
		return b.policy.ApproveShare(ctx, *op.tresor, op.target, op.by, actor)
	}, func(tresor *storage.Tresor, details adminapi.OperationDetails) bool {
		if tresor.HasMember(details.ForUserID) {
			return false
		}
		tresor.AddMember(details.ForUserID)
		return true
	})
}

// UserKicked approves or rejects a kick operation. On approval the kicked
// user leaves the local member set; an absent member is tolerated.
func (b *Bridge) UserKicked(ctx context.Context, actor identity.Identity, operationID string) error {
	return b.runOperation(ctx, actor, adminapi.KindKick, operationID, func(ctx context.Context, op *operationContext) (bool, error) {
		return b.policy.ApproveKick(ctx, *op.tresor, op.target, op.by, actor)
	}, func(tresor *storage.Tresor, details adminapi.OperationDetails) bool {
		return tresor.RemoveMember(details.ForUserID)
	})
}

// InvitationLinkCreated approves or rejects the creation of an invitation
// link. Membership is unchanged either way.
func (b *Bridge) InvitationLinkCreated(ctx context.Context, actor identity.Identity, operationID string) error {
	return b.runOperation(ctx, actor, adminapi.KindInvitationLinkCreate, operationID, func(ctx context.Context, op *operationContext) (bool, error) {
		return b.policy.ApproveInvitationLinkCreation(ctx, actor, *op.tresor, op.by)
	}, nil)
}

// InvitationLinkAccepted approves or rejects the use of an invitation link.
// On approval the accepting user joins the local member set.
func (b *Bridge) InvitationLinkAccepted(ctx context.Context, actor identity.Identity, operationID string) error {
	return b.runOperation(ctx, actor, adminapi.KindInvitationLinkAccept, operationID, func(ctx context.Context, op *operationContext) (bool, error) {
		return b.policy.ApproveInvitationLinkAcception(ctx, *op.tresor, op.target, op.by, actor)
	}, func(tresor *storage.Tresor, details adminapi.OperationDetails) bool {
		if tresor.HasMember(details.ForUserID) {
			return false
		}
		tresor.AddMember(details.ForUserID)
		return true
	})
}

// InvitationLinkRevoked approves or rejects the revocation of an invitation
// link. Membership is unchanged either way.
func (b *Bridge) InvitationLinkRevoked(ctx context.Context, actor identity.Identity, operationID string) error {
	return b.runOperation(ctx, actor, adminapi.KindInvitationLinkRevoke, operationID, func(ctx context.Context, op *operationContext) (bool, error) {
		return b.policy.ApproveInvitationLinkRevocation(ctx, *op.tresor, op.by, actor)
	}, nil)
}

// operationContext is the local state an operation refers to.
type operationContext struct {
	details adminapi.OperationDetails
	tresor  *storage.Tresor
	by      *identity.Identity
	target  *identity.Identity
}

type decideFunc func(ctx context.Context, op *operationContext) (bool, error)

// mutateFunc applies an approved operation to the tresor mirror and reports
// whether it changed.
type mutateFunc func(tresor *storage.Tresor, details adminapi.OperationDetails) bool

func (b *Bridge) runOperation(ctx context.Context, actor identity.Identity, kind adminapi.OperationKind, operationID string, decide decideFunc, mutate mutateFunc) (err error) {
	if operationID == "" {
		return apperrors.BadInput(apperrors.CodeMissingOperationID, nil)
	}
	ctx, finish := b.startSpan(ctx, "Operation",
		attribute.String("operation.kind", string(kind)),
		attribute.String("operation.id", operationID),
	)
	defer finish(&err)

	details, err := b.remote.OperationDetails(ctx, kind, operationID)
	if err != nil {
		return apperrors.BadInput(apperrors.CodeInvalidOperationID, err)
	}

	op, err := b.loadOperationContext(ctx, details)
	if err != nil {
		return err
	}

	ok, hookErr := decide(ctx, op)
	if err := decided(ok, hookErr, string(kind)); err != nil {
		if !apperrors.HasCode(err, apperrors.CodeApplicationDenied) {
			return err
		}
		if rejectErr := b.remote.RejectOperation(ctx, kind, operationID); rejectErr != nil {
			return apperrors.Unexpected(fmt.Sprintf("reject %s", kind), rejectErr)
		}
		logf("%s %s by %s rejected", kind, logID(operationID), logID(actor.ID))
		return err
	}

	if err := b.remote.ApproveOperation(ctx, kind, operationID); err != nil {
		return apperrors.Unexpected(fmt.Sprintf("approve %s", kind), err)
	}
	logf("%s %s by %s approved", kind, logID(operationID), logID(actor.ID))

	if mutate == nil || !mutate(op.tresor, details) {
		return nil
	}
	op.tresor.UpdatedAt = b.now()
	if err := b.tresors.PutTresor(ctx, *op.tresor); err != nil {
		return divergence(fmt.Sprintf("save tresor after %s", kind), operationID, err)
	}
	return nil
}

// loadOperationContext reads the tresor and identities named by details.
// The tresor must be mirrored locally; identities may be unknown.
func (b *Bridge) loadOperationContext(ctx context.Context, details adminapi.OperationDetails) (*operationContext, error) {
	op := &operationContext{details: details}
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		tresor, err := b.lookupTresor(gctx, details.TresorID)
		op.tresor = tresor
		return err
	})
	group.Go(func() error {
		by, err := b.lookupIdentity(gctx, details.ByUserID)
		op.by = by
		return err
	})
	group.Go(func() error {
		target, err := b.lookupIdentity(gctx, details.ForUserID)
		op.target = target
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if op.tresor == nil {
		return nil, apperrors.NotFound(apperrors.CodeTresorNotFound)
	}
	return op, nil
}

// divergence reports a local write that failed after the remote authority
// already committed the operation.
func divergence(message, key string, cause error) error {
	logf("local mirror diverged: %s (%s): %v", message, logID(key), cause)
	err := apperrors.WithMetadata(apperrors.CodeUnexpected, message, map[string]string{"key": key})
	err.Cause = cause
	return err
}
