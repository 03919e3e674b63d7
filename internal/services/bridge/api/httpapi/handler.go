package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
	"github.com/louisbranch/tresorgate/internal/platform/requestctx"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/session"
)

// Bridge is the set of bridge operations served over HTTP.
type Bridge interface {
	InitRegistration(ctx context.Context, userName, profileData string) (identity.Identity, error)
	FinishRegistration(ctx context.Context, userID, validationVerifier string) error
	ValidateUser(ctx context.Context, userID, validationCode string) error
	GetUserID(ctx context.Context, userName string) (string, error)

	TresorCreated(ctx context.Context, actor identity.Identity, tresorID string) error
	UserInvited(ctx context.Context, actor identity.Identity, operationID string) error
	UserKicked(ctx context.Context, actor identity.Identity, operationID string) error
	InvitationLinkCreated(ctx context.Context, actor identity.Identity, operationID string) error
	InvitationLinkAccepted(ctx context.Context, actor identity.Identity, operationID string) error
	InvitationLinkRevoked(ctx context.Context, actor identity.Identity, operationID string) error

	GetProfile(ctx context.Context, actor identity.Identity) (string, error)
	StoreProfile(ctx context.Context, actor identity.Identity, profileData string) (string, error)
	GetData(ctx context.Context, actor identity.Identity, dataID string) (string, error)
	StoreData(ctx context.Context, actor identity.Identity, dataID, tresorID, body string) error
}

// Logins runs the identity provider flows.
type Logins interface {
	LoginByCode(ctx context.Context, clientID, code string) (session.Token, error)
	BeginLogin(clientID, returnTo string) (string, error)
	CompleteLogin(ctx context.Context, state, code string) (identity.Identity, string, error)
	Logout(ctx context.Context, tokenID string) error
}

// Config wires a Handler.
type Config struct {
	Bridge   Bridge
	Logins   Logins
	Sessions session.Store
	Cookies  *CookieCodec
	// Origins lists the application origins allowed to call with credentials.
	Origins []string
	// Debug attaches underlying causes to error responses.
	Debug bool
}

// Handler serves the bridge API.
type Handler struct {
	bridge   Bridge
	logins   Logins
	sessions session.Store
	cookies  *CookieCodec
	origins  []string
	debug    bool
}

// New validates cfg and builds a Handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Bridge == nil {
		return nil, errors.New("bridge is required")
	}
	if cfg.Logins == nil {
		return nil, errors.New("login service is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	return &Handler{
		bridge:   cfg.Bridge,
		logins:   cfg.Logins,
		sessions: cfg.Sessions,
		cookies:  cfg.Cookies,
		origins:  cfg.Origins,
		debug:    cfg.Debug,
	}, nil
}

// Routes returns the full HTTP handler, middleware included.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/user/get-user-id", h.handleGetUserID)
	mux.HandleFunc("POST /api/user/init-user-registration", h.handleInitRegistration)
	mux.HandleFunc("POST /api/user/finish-user-registration", h.handleFinishRegistration)
	mux.HandleFunc("POST /api/user/validate-user", h.handleValidateUser)

	mux.HandleFunc("GET /api/auth/login", h.handleLogin)
	mux.HandleFunc("GET /api/auth/callback", h.handleCallback)
	mux.HandleFunc("POST /api/auth/login-by-code", h.handleLoginByCode)
	mux.HandleFunc("GET /api/auth/logout", h.handleLogout)
	mux.HandleFunc("GET /api/auth/logout-token", h.handleLogoutToken)

	mux.Handle("POST /api/tresor/created", h.authenticated(h.handleTresorCreated))
	mux.Handle("POST /api/tresor/invited-user", h.authenticated(h.operation(h.bridge.UserInvited)))
	mux.Handle("POST /api/tresor/kicked-user", h.authenticated(h.operation(h.bridge.UserKicked)))
	mux.Handle("POST /api/invitationLinks/created", h.authenticated(h.operation(h.bridge.InvitationLinkCreated)))
	mux.Handle("POST /api/invitationLinks/accepted", h.authenticated(h.operation(h.bridge.InvitationLinkAccepted)))
	mux.Handle("POST /api/invitationLinks/revoked", h.authenticated(h.operation(h.bridge.InvitationLinkRevoked)))

	mux.Handle("GET /api/data/get", h.authenticated(h.handleGetData))
	mux.Handle("POST /api/data/store", h.authenticated(h.handleStoreData))
	mux.Handle("GET /api/data/profile", h.authenticated(h.handleGetProfile))
	mux.Handle("POST /api/data/profile", h.authenticated(h.handleStoreProfile))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, apperrors.NotFound(apperrors.CodeNotFound))
	})

	return Chain(mux,
		RequestID(),
		RecoverPanic(),
		LogRequests(),
		SecurityHeaders(),
		CORS(h.origins),
	)
}

// actorHandler is a handler that runs for an authenticated caller.
type actorHandler func(w http.ResponseWriter, r *http.Request, actor identity.Identity)

// authenticated resolves the caller from the session cookie, or from a
// bearer token when no cookie session exists.
func (h *Handler) authenticated(next actorHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.cookieIdentity(r)
		if !ok {
			var err error
			actor, err = h.bearerIdentity(r)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
		}
		ctx := requestctx.WithUserID(r.Context(), actor.ID)
		ctx = requestctx.WithUserName(ctx, actor.UserName)
		next(w, r.WithContext(ctx), actor)
	})
}

func (h *Handler) cookieIdentity(r *http.Request) (identity.Identity, bool) {
	if h.cookies == nil {
		return identity.Identity{}, false
	}
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return identity.Identity{}, false
	}
	ident, err := h.cookies.Decode(cookie.Value)
	if err != nil {
		return identity.Identity{}, false
	}
	return ident, true
}

func (h *Handler) bearerIdentity(r *http.Request) (identity.Identity, error) {
	tokenID := bearerToken(r)
	if tokenID == "" {
		return identity.Identity{}, apperrors.New(apperrors.CodeTokenNotFoundOrInvalid, string(apperrors.CodeTokenNotFoundOrInvalid))
	}
	ident, ok, err := h.sessions.Check(r.Context(), tokenID)
	if err != nil {
		return identity.Identity{}, apperrors.Unexpected("check token", err)
	}
	if !ok {
		return identity.Identity{}, apperrors.New(apperrors.CodeTokenNotFoundOrInvalid, string(apperrors.CodeTokenNotFoundOrInvalid))
	}
	return ident, nil
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
