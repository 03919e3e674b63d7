package approval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
	"github.com/louisbranch/tresorgate/internal/platform/requestctx"
	"github.com/louisbranch/tresorgate/internal/services/bridge/adminapi"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/policy"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage"
)

const tracerName = "github.com/louisbranch/tresorgate/internal/services/bridge/approval"

// Config wires a Bridge to its collaborators.
type Config struct {
	Remote     adminapi.Remote
	Identities storage.IdentityStore
	Tresors    storage.TresorStore
	Data       storage.DataStore
	// Policy defaults to policy.Hooks{}, which approves everything.
	Policy policy.Policy
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Bridge executes registration, tresor operations and data access under
// the configured policy.
type Bridge struct {
	remote     adminapi.Remote
	identities storage.IdentityStore
	tresors    storage.TresorStore
	data       storage.DataStore
	policy     policy.Policy
	clock      func() time.Time
	names      *keyedMutex
	tracer     trace.Tracer
}

// New validates cfg and builds a Bridge.
func New(cfg Config) (*Bridge, error) {
	if cfg.Remote == nil {
		return nil, errors.New("remote gateway is required")
	}
	if cfg.Identities == nil {
		return nil, errors.New("identity store is required")
	}
	if cfg.Tresors == nil {
		return nil, errors.New("tresor store is required")
	}
	if cfg.Data == nil {
		return nil, errors.New("data store is required")
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.Hooks{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Bridge{
		remote:     cfg.Remote,
		identities: cfg.Identities,
		tresors:    cfg.Tresors,
		data:       cfg.Data,
		policy:     cfg.Policy,
		clock:      cfg.Clock,
		names:      newKeyedMutex(),
		tracer:     otel.Tracer(tracerName),
	}, nil
}

func (b *Bridge) now() time.Time {
	return b.clock().UTC()
}

// startSpan opens a span for a bridge operation; finish records err.
// Request and caller ids set by the transport are attached.
func (b *Bridge) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	if requestID := requestctx.RequestIDFromContext(ctx); requestID != "" {
		attrs = append(attrs, attribute.String("request.id", requestID))
	}
	if userID := requestctx.UserIDFromContext(ctx); userID != "" {
		attrs = append(attrs, attribute.String("enduser.id", userID))
	}
	ctx, span := b.tracer.Start(ctx, "approval."+name, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, string(apperrors.CodeOf(*errp)))
		}
		span.End()
	}
}

// decided converts a policy answer into the bridge's error contract.
func decided(ok bool, err error, hook string) error {
	if err != nil {
		var domainErr *apperrors.Error
		if errors.As(err, &domainErr) {
			return domainErr
		}
		return apperrors.Unexpected(fmt.Sprintf("policy %s failed", hook), err)
	}
	if !ok {
		return apperrors.Forbidden(apperrors.CodeApplicationDenied, nil)
	}
	return nil
}

// lookupIdentity loads an optional identity; missing identities yield nil.
func (b *Bridge) lookupIdentity(ctx context.Context, userID string) (*identity.Identity, error) {
	if userID == "" {
		return nil, nil
	}
	ident, err := b.identities.GetIdentity(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Unexpected("load identity", err)
	}
	return &ident, nil
}

// lookupTresor loads an optional tresor; missing tresors yield nil.
func (b *Bridge) lookupTresor(ctx context.Context, tresorID string) (*storage.Tresor, error) {
	if tresorID == "" {
		return nil, nil
	}
	tresor, err := b.tresors.GetTresor(ctx, tresorID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Unexpected("load tresor", err)
	}
	return &tresor, nil
}

// logID shortens identifiers for log lines.
func logID(value string) string {
	if len(value) <= 12 {
		return value
	}
	return value[:12] + "…"
}

func logf(format string, args ...any) {
	log.Printf("approval: "+format, args...)
}
