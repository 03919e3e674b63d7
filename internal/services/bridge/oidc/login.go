package oidc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
	"github.com/louisbranch/tresorgate/internal/platform/id"
	"github.com/louisbranch/tresorgate/internal/platform/timeouts"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/session"
)

// IdentityResolver loads the validated identity for a token subject.
type IdentityResolver interface {
	LoadValidated(ctx context.Context, userID string) (identity.Identity, error)
}

// Verifier is the OpenID verification hook.
type Verifier interface {
	OpenIDVerify(ctx context.Context, ident identity.Identity, claims map[string]any) (bool, error)
}

// Config wires a Service.
type Config struct {
	Clients    []*Client
	Validator  Validator
	Identities IdentityResolver
	Verifier   Verifier
	Sessions   session.Store
	// TokenTTL defaults to session.DefaultTTL.
	TokenTTL time.Duration
	// HTTPClient is used for token exchanges. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// PendingTTL bounds how long a redirect login waits for its callback.
	PendingTTL time.Duration
	Clock      func() time.Time
}

type pendingLogin struct {
	clientID  string
	returnTo  string
	expiresAt time.Time
}

// Service runs both login flows.
type Service struct {
	clients       map[string]*Client
	defaultClient string
	validator     Validator
	identities    IdentityResolver
	verifier      Verifier
	sessions      session.Store
	tokenTTL      time.Duration
	httpClient    *http.Client
	pendingTTL    time.Duration
	clock         func() time.Time

	mu      sync.Mutex
	pending map[string]pendingLogin
}

// NewService validates cfg. The first client is the default one.
func NewService(cfg Config) (*Service, error) {
	if cfg.Identities == nil {
		return nil, errors.New("identity resolver is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = session.DefaultTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = timeouts.PendingLogin
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Validator.Clock == nil {
		cfg.Validator.Clock = cfg.Clock
	}

	s := &Service{
		clients:    make(map[string]*Client, len(cfg.Clients)),
		validator:  cfg.Validator,
		identities: cfg.Identities,
		verifier:   cfg.Verifier,
		sessions:   cfg.Sessions,
		tokenTTL:   cfg.TokenTTL,
		httpClient: cfg.HTTPClient,
		pendingTTL: cfg.PendingTTL,
		clock:      cfg.Clock,
		pending:    make(map[string]pendingLogin),
	}
	for _, client := range cfg.Clients {
		if client == nil {
			continue
		}
		if _, dup := s.clients[client.Config.ClientID]; dup {
			return nil, fmt.Errorf("duplicate idp client %s", client.Config.ClientID)
		}
		if s.defaultClient == "" {
			s.defaultClient = client.Config.ClientID
		}
		s.clients[client.Config.ClientID] = client
	}
	return s, nil
}

func (s *Service) client(clientID string) (*Client, error) {
	if clientID == "" {
		clientID = s.defaultClient
	}
	if clientID == "" {
		return nil, apperrors.BadInput(apperrors.CodeNoClientID, nil)
	}
	client, ok := s.clients[clientID]
	if !ok {
		return nil, apperrors.BadInput(apperrors.CodeUnknownClientID, nil)
	}
	return client, nil
}

// LoginByCode exchanges an authorization code and issues a bearer token
// for the validated identity named by the ID token.
func (s *Service) LoginByCode(ctx context.Context, clientID, code string) (session.Token, error) {
	client, err := s.client(clientID)
	if err != nil {
		return session.Token{}, err
	}
	if code == "" {
		return session.Token{}, apperrors.BadInput(apperrors.CodeNoCodeProvided, nil)
	}

	claims, err := s.exchange(ctx, client, code)
	if err != nil {
		return session.Token{}, err
	}
	ident, err := s.resolve(ctx, claims)
	if err != nil {
		return session.Token{}, err
	}
	token, err := s.sessions.Issue(ctx, ident, s.tokenTTL)
	if err != nil {
		return session.Token{}, apperrors.Unexpected("issue token", err)
	}
	log.Printf("oidc: issued token for %s via %s", ident.UserName, client.Config.ClientID)
	return token, nil
}

// BeginLogin starts a redirect login and returns the provider url to send
// the browser to. returnTo is where the callback redirects afterwards.
func (s *Service) BeginLogin(clientID, returnTo string) (string, error) {
	client, err := s.client(clientID)
	if err != nil {
		return "", err
	}
	state, err := id.NewToken(16)
	if err != nil {
		return "", apperrors.Unexpected("generate state", err)
	}
	now := s.clock()

	s.mu.Lock()
	for key, pending := range s.pending {
		if !now.Before(pending.expiresAt) {
			delete(s.pending, key)
		}
	}
	s.pending[state] = pendingLogin{
		clientID:  client.Config.ClientID,
		returnTo:  returnTo,
		expiresAt: now.Add(s.pendingTTL),
	}
	s.mu.Unlock()

	return client.oauth.AuthCodeURL(state), nil
}

// CompleteLogin finishes a redirect login. It returns the identity to
// store in the cookie session and the return url given to BeginLogin.
func (s *Service) CompleteLogin(ctx context.Context, state, code string) (identity.Identity, string, error) {
	s.mu.Lock()
	pending, ok := s.pending[state]
	delete(s.pending, state)
	s.mu.Unlock()
	if !ok || !s.clock().Before(pending.expiresAt) {
		return identity.Identity{}, "", apperrors.BadInput(apperrors.CodeInvalidState, nil)
	}
	if code == "" {
		return identity.Identity{}, pending.returnTo, apperrors.BadInput(apperrors.CodeNoCodeProvided, nil)
	}
	client, err := s.client(pending.clientID)
	if err != nil {
		return identity.Identity{}, pending.returnTo, err
	}

	claims, err := s.exchange(ctx, client, code)
	if err != nil {
		return identity.Identity{}, pending.returnTo, err
	}
	ident, err := s.resolve(ctx, claims)
	if err != nil {
		return identity.Identity{}, pending.returnTo, err
	}
	log.Printf("oidc: %s logged in via %s", ident.UserName, client.Config.ClientID)
	return ident, pending.returnTo, nil
}

// Logout revokes a bearer token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, tokenID string) error {
	if _, err := s.sessions.Revoke(ctx, tokenID); err != nil {
		return apperrors.Unexpected("revoke token", err)
	}
	return nil
}

func (s *Service) exchange(ctx context.Context, client *Client, code string) (Claims, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.TokenExchange)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	token, err := client.oauth.Exchange(ctx, code)
	if err != nil {
		return Claims{}, apperrors.Unexpected("exchange authorization code", err)
	}
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return Claims{}, apperrors.Forbidden(apperrors.CodeMissingIDToken, nil)
	}
	return s.validator.ValidateIDToken(client, raw)
}

// resolve maps validated claims to a local identity and applies the
// verification hook.
func (s *Service) resolve(ctx context.Context, claims Claims) (identity.Identity, error) {
	ident, err := s.identities.LoadValidated(ctx, claims.Subject)
	if err != nil {
		return identity.Identity{}, err
	}
	ident = ident.Public()
	if s.verifier == nil {
		return ident, nil
	}
	ok, err := s.verifier.OpenIDVerify(ctx, ident, claims.Raw)
	if err != nil {
		var domainErr *apperrors.Error
		if errors.As(err, &domainErr) {
			return identity.Identity{}, domainErr
		}
		return identity.Identity{}, apperrors.Forbidden(apperrors.CodeApplicationDenied, err)
	}
	if !ok {
		return identity.Identity{}, apperrors.Forbidden(apperrors.CodeApplicationDenied, nil)
	}
	return ident, nil
}
