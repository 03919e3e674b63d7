package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Registration is returned when a registration session is opened.
type Registration struct {
	UserID             string `json:"UserId"`
	RegSessionID       string `json:"RegSessionId"`
	RegSessionVerifier string `json:"RegSessionVerifier"`
}

// ValidationRequest carries the values needed to enable a registered user.
type ValidationRequest struct {
	RegSessionID          string `json:"RegSessionId"`
	RegSessionVerifier    string `json:"RegSessionVerifier"`
	RegValidationVerifier string `json:"RegValidationVerifier"`
	UserID                string `json:"UserId"`
}

// OperationDetails describes a pending tresor operation. ByUserID is the
// acting user (inviter, kicker, link creator or revoker); ForUserID is the
// target user when the operation has one.
type OperationDetails struct {
	TresorID  string `json:"TresorId"`
	ByUserID  string `json:"ByUserId"`
	ForUserID string `json:"ForUserId"`
}

// OperationKind names a kind of operation that goes through approval.
type OperationKind string

const (
	KindShare                OperationKind = "share"
	KindKick                 OperationKind = "kick"
	KindInvitationLinkCreate OperationKind = "invitation-link-creation"
	KindInvitationLinkAccept OperationKind = "invitation-link-acception"
	KindInvitationLinkRevoke OperationKind = "invitation-link-revocation"
)

type operationPaths struct {
	details string
	approve string
	reject  string
}

var operationRoutes = map[OperationKind]operationPaths{
	KindShare: {
		details: "/tresor/get-share-details",
		approve: "/tresor/approve-share",
		reject:  "/tresor/reject-share",
	},
	KindKick: {
		details: "/tresor/get-kick-details",
		approve: "/tresor/approve-kick",
		reject:  "/tresor/reject-kick",
	},
	KindInvitationLinkCreate: {
		details: "/invitation-link/get-invitation-link-creation-details",
		approve: "/invitation-link/approve-invitation-link-creation",
		reject:  "/invitation-link/reject-invitation-link-creation",
	},
	KindInvitationLinkAccept: {
		details: "/invitation-link/get-invitation-link-acception-details",
		approve: "/invitation-link/approve-invitation-link-acception",
		reject:  "/invitation-link/reject-invitation-link-acception",
	},
	KindInvitationLinkRevoke: {
		details: "/invitation-link/get-invitation-link-revocation-details",
		approve: "/invitation-link/approve-invitation-link-revocation",
		reject:  "/invitation-link/reject-invitation-link-revocation",
	},
}

// Remote is the set of admin operations the bridge depends on.
type Remote interface {
	InitUserRegistration(ctx context.Context) (Registration, error)
	ValidateUser(ctx context.Context, req ValidationRequest) error

	ListTresorMembers(ctx context.Context, tresorID string) ([]string, error)
	ApproveTresorCreation(ctx context.Context, tresorID string) error
	RejectTresorCreation(ctx context.Context, tresorID string) error

	OperationDetails(ctx context.Context, kind OperationKind, operationID string) (OperationDetails, error)
	ApproveOperation(ctx context.Context, kind OperationKind, operationID string) error
	RejectOperation(ctx context.Context, kind OperationKind, operationID string) error
}

// Caller performs one signed call. *Client implements it.
type Caller interface {
	Call(ctx context.Context, urlPart string, body any) (json.RawMessage, error)
}

// Gateway exposes typed admin operations over a signed client.
type Gateway struct {
	client Caller
}

var _ Remote = (*Gateway)(nil)

// NewGateway wraps client.
func NewGateway(client Caller) *Gateway {
	return &Gateway{client: client}
}

// InitUserRegistration opens a registration session for a new user.
func (g *Gateway) InitUserRegistration(ctx context.Context) (Registration, error) {
	var out Registration
	err := g.call(ctx, "/user/init-user-registration", struct{}{}, &out)
	return out, err
}

// ValidateUser enables a registered user so it can log in.
func (g *Gateway) ValidateUser(ctx context.Context, req ValidationRequest) error {
	return g.call(ctx, "/user/validate-user-registration", req, nil)
}

// ListTresorMembers returns the member ids of a tresor.
func (g *Gateway) ListTresorMembers(ctx context.Context, tresorID string) ([]string, error) {
	var out struct {
		Members []string `json:"Members"`
	}
	if err := g.call(ctx, "/tresor/list-members?tresorid="+url.QueryEscape(tresorID), nil, &out); err != nil {
		return nil, err
	}
	return out.Members, nil
}

// ApproveTresorCreation commits a tresor so it becomes usable.
func (g *Gateway) ApproveTresorCreation(ctx context.Context, tresorID string) error {
	return g.call(ctx, "/tresor/approve-tresor-creation", tresorBody{TresorID: tresorID}, nil)
}

// RejectTresorCreation voids a tresor.
func (g *Gateway) RejectTresorCreation(ctx context.Context, tresorID string) error {
	return g.call(ctx, "/tresor/reject-tresor-creation", tresorBody{TresorID: tresorID}, nil)
}

// OperationDetails fetches the details of a pending operation.
func (g *Gateway) OperationDetails(ctx context.Context, kind OperationKind, operationID string) (OperationDetails, error) {
	routes, err := routesFor(kind)
	if err != nil {
		return OperationDetails{}, err
	}
	var out OperationDetails
	err = g.call(ctx, routes.details+"?operationid="+url.QueryEscape(operationID), nil, &out)
	return out, err
}

// ApproveOperation commits a pending operation.
func (g *Gateway) ApproveOperation(ctx context.Context, kind OperationKind, operationID string) error {
	routes, err := routesFor(kind)
	if err != nil {
		return err
	}
	return g.call(ctx, routes.approve, operationBody{OperationID: operationID}, nil)
}

// RejectOperation voids a pending operation.
func (g *Gateway) RejectOperation(ctx context.Context, kind OperationKind, operationID string) error {
	routes, err := routesFor(kind)
	if err != nil {
		return err
	}
	return g.call(ctx, routes.reject, operationBody{OperationID: operationID}, nil)
}

type tresorBody struct {
	TresorID string `json:"TresorId"`
}

type operationBody struct {
	OperationID string `json:"OperationId"`
}

func routesFor(kind OperationKind) (operationPaths, error) {
	routes, ok := operationRoutes[kind]
	if !ok {
		return operationPaths{}, fmt.Errorf("unknown operation kind %q", kind)
	}
	return routes, nil
}

func (g *Gateway) call(ctx context.Context, urlPart string, body any, out any) error {
	if g == nil || g.client == nil {
		return fmt.Errorf("admin gateway is not configured")
	}
	raw, err := g.client.Call(ctx, urlPart, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", urlPart, err)
	}
	return nil
}
