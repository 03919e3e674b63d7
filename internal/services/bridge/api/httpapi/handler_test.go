package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/session"
)

const testCookieKey = "00112233445566778899aabbccddeeff"

// stubBridge records the last call and returns canned results.
type stubBridge struct {
	err       error
	lastCall  string
	lastActor identity.Identity
	lastArgs  []string
	userID    string
	data      string
}

func (s *stubBridge) record(call string, actor identity.Identity, args ...string) {
	s.lastCall, s.lastActor, s.lastArgs = call, actor, args
}

func (s *stubBridge) InitRegistration(_ context.Context, userName, profileData string) (identity.Identity, error) {
	s.record("init", identity.Identity{}, userName, profileData)
	if s.err != nil {
		return identity.Identity{}, s.err
	}
	return identity.Identity{ID: "user-1", UserName: userName, Registration: &identity.RegistrationData{SessionID: "session-1"}}, nil
}

func (s *stubBridge) FinishRegistration(_ context.Context, userID, verifier string) error {
	s.record("finish", identity.Identity{}, userID, verifier)
	return s.err
}

func (s *stubBridge) ValidateUser(_ context.Context, userID, code string) error {
	s.record("validate", identity.Identity{}, userID, code)
	return s.err
}

func (s *stubBridge) GetUserID(_ context.Context, userName string) (string, error) {
	s.record("get-user-id", identity.Identity{}, userName)
	return s.userID, s.err
}

func (s *stubBridge) TresorCreated(_ context.Context, actor identity.Identity, tresorID string) error {
	s.record("tresor-created", actor, tresorID)
	return s.err
}

func (s *stubBridge) UserInvited(_ context.Context, actor identity.Identity, operationID string) error {
	s.record("invited", actor, operationID)
	return s.err
}

func (s *stubBridge) UserKicked(_ context.Context, actor identity.Identity, operationID string) error {
	s.record("kicked", actor, operationID)
	return s.err
}

func (s *stubBridge) InvitationLinkCreated(_ context.Context, actor identity.Identity, operationID string) error {
	s.record("link-created", actor, operationID)
	return s.err
}

func (s *stubBridge) InvitationLinkAccepted(_ context.Context, actor identity.Identity, operationID string) error {
	s.record("link-accepted", actor, operationID)
	return s.err
}

func (s *stubBridge) InvitationLinkRevoked(_ context.Context, actor identity.Identity, operationID string) error {
	s.record("link-revoked", actor, operationID)
	return s.err
}

func (s *stubBridge) GetProfile(_ context.Context, actor identity.Identity) (string, error) {
	s.record("get-profile", actor)
	return s.data, s.err
}

func (s *stubBridge) StoreProfile(_ context.Context, actor identity.Identity, profile string) (string, error) {
	s.record("store-profile", actor, profile)
	return profile, s.err
}

func (s *stubBridge) GetData(_ context.Context, actor identity.Identity, dataID string) (string, error) {
	s.record("get-data", actor, dataID)
	return s.data, s.err
}

func (s *stubBridge) StoreData(_ context.Context, actor identity.Identity, dataID, tresorID, body string) error {
	s.record("store-data", actor, dataID, tresorID, body)
	return s.err
}

type stubLogins struct {
	err      error
	token    session.Token
	ident    identity.Identity
	returnTo string
	revoked  string
}

func (s *stubLogins) LoginByCode(context.Context, string, string) (session.Token, error) {
	return s.token, s.err
}

func (s *stubLogins) BeginLogin(clientID, returnTo string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://idp.example.test/authorize?client_id=" + clientID + "&state=abc", nil
}

func (s *stubLogins) CompleteLogin(context.Context, string, string) (identity.Identity, string, error) {
	return s.ident, s.returnTo, s.err
}

func (s *stubLogins) Logout(_ context.Context, tokenID string) error {
	s.revoked = tokenID
	return s.err
}

type fixture struct {
	handler  http.Handler
	bridge   *stubBridge
	logins   *stubLogins
	sessions *session.MemoryStore
	cookies  *CookieCodec
}

func newFixture(t *testing.T, debug bool) fixture {
	t.Helper()
	cookies, err := NewCookieCodec(testCookieKey, time.Hour, false)
	if err != nil {
		t.Fatalf("cookie codec: %v", err)
	}
	f := fixture{
		bridge:   &stubBridge{},
		logins:   &stubLogins{},
		sessions: session.NewMemoryStore(nil),
		cookies:  cookies,
	}
	h, err := New(Config{
		Bridge:   f.bridge,
		Logins:   f.logins,
		Sessions: f.sessions,
		Cookies:  cookies,
		Origins:  []string{"http://localhost:3000"},
		Debug:    debug,
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	f.handler = h.Routes()
	return f
}

func (f fixture) do(t *testing.T, method, target, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f fixture) bearer(t *testing.T) func(*http.Request) {
	t.Helper()
	token, err := f.sessions.Issue(context.Background(), identity.Identity{ID: "user-1", UserName: "alice"}, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token.ID) }
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/up", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestUserRoutes(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPost, "/api/user/init-user-registration", `{"userName":"alice","profileData":{"canInitReg":true}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("init: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var initResp initRegistrationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &initResp); err != nil {
		t.Fatalf("decode init: %v", err)
	}
	if initResp.UserID != "user-1" || initResp.RegSessionID != "session-1" {
		t.Fatalf("unexpected init response %+v", initResp)
	}
	if f.bridge.lastArgs[1] != `{"canInitReg":true}` {
		t.Fatalf("expected profile JSON passed through, got %q", f.bridge.lastArgs[1])
	}

	rec = f.do(t, http.MethodPost, "/api/user/init-user-registration", `{"profileData":"x"}`, nil)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != apperrors.CodeMissingUserName {
		t.Fatalf("expected MissingUserName, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/user/finish-user-registration", `{"userId":"user-1"}`, nil)
	if decodeError(t, rec).Code != apperrors.CodeMissingValidationVerifier {
		t.Fatalf("expected MissingValidationVerifier, got %s", rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/api/user/finish-user-registration", `{"userId":"user-1","validationVerifier":"v"}`, nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "{}" {
		t.Fatalf("finish: unexpected %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/user/validate-user", `{"validationCode":"c"}`, nil)
	if decodeError(t, rec).Code != apperrors.CodeMissingUserID {
		t.Fatalf("expected MissingUserId, got %s", rec.Body.String())
	}

	f.bridge.userID = "user-1"
	rec = f.do(t, http.MethodGet, "/api/user/get-user-id?userName=alice", "", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `"user-1"` {
		t.Fatalf("get-user-id: unexpected %d %s", rec.Code, rec.Body.String())
	}
}

func TestErrorRendering(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		debug     bool
		status    int
		code      apperrors.Code
		exception bool
	}{
		{name: "not validated", err: apperrors.Forbidden(apperrors.CodeUserNotValidated, nil), status: http.StatusForbidden, code: apperrors.CodeUserNotValidated},
		{name: "already validated", err: apperrors.BadInput(apperrors.CodeUserAlreadyValidated, nil), status: http.StatusBadRequest, code: apperrors.CodeUserAlreadyValidated},
		{name: "not found", err: apperrors.NotFound(apperrors.CodeUserNotFound), status: http.StatusNotFound, code: apperrors.CodeUserNotFound},
		{name: "untyped hidden", err: context.DeadlineExceeded, status: http.StatusInternalServerError, code: apperrors.CodeUnexpected},
		{name: "untyped debug", err: context.DeadlineExceeded, debug: true, status: http.StatusInternalServerError, code: apperrors.CodeUnexpected, exception: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.debug)
			f.bridge.err = tt.err
			rec := f.do(t, http.MethodGet, "/api/user/get-user-id?userName=alice", "", nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			body := decodeError(t, rec)
			if body.Code != tt.code {
				t.Fatalf("expected %s, got %s", tt.code, body.Code)
			}
			if (body.Exception != "") != tt.exception {
				t.Fatalf("unexpected exception field %q", body.Exception)
			}
		})
	}
}

func TestAuthenticatedRoutesRequireSession(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPost, "/api/tresor/created", `{"tresorId":"t1"}`, nil)
	if rec.Code != http.StatusUnauthorized || decodeError(t, rec).Code != apperrors.CodeTokenNotFoundOrInvalid {
		t.Fatalf("expected 401, got %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/api/tresor/created", `{"tresorId":"t1"}`, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer unknown")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rec.Code)
	}
	if f.bridge.lastCall != "" {
		t.Fatalf("expected bridge untouched, got %s", f.bridge.lastCall)
	}
}

func TestOperationRoutes(t *testing.T) {
	tests := []struct {
		path string
		body string
		call string
		arg  string
	}{
		{path: "/api/tresor/created", body: `{"tresorId":"t1"}`, call: "tresor-created", arg: "t1"},
		{path: "/api/tresor/invited-user", body: `{"operationId":"op-1"}`, call: "invited", arg: "op-1"},
		{path: "/api/tresor/kicked-user", body: `{"operationId":"op-2"}`, call: "kicked", arg: "op-2"},
		{path: "/api/invitationLinks/created", body: `{"tresorId":"op-3"}`, call: "link-created", arg: "op-3"},
		{path: "/api/invitationLinks/accepted", body: `{"operationId":"op-4"}`, call: "link-accepted", arg: "op-4"},
		{path: "/api/invitationLinks/revoked", body: `{"operationId":"op-5"}`, call: "link-revoked", arg: "op-5"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := newFixture(t, false)
			rec := f.do(t, http.MethodPost, tt.path, tt.body, f.bearer(t))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
			}
			if f.bridge.lastCall != tt.call || f.bridge.lastArgs[0] != tt.arg {
				t.Fatalf("unexpected call %s %v", f.bridge.lastCall, f.bridge.lastArgs)
			}
			if f.bridge.lastActor.ID != "user-1" {
				t.Fatalf("expected actor from token, got %+v", f.bridge.lastActor)
			}
		})
	}

	f := newFixture(t, false)
	rec := f.do(t, http.MethodPost, "/api/tresor/invited-user", `{}`, f.bearer(t))
	if decodeError(t, rec).Code != apperrors.CodeMissingOperationID {
		t.Fatalf("expected MissingOperationId, got %s", rec.Body.String())
	}
	f.bridge.err = apperrors.Forbidden(apperrors.CodeApplicationDenied, nil)
	rec = f.do(t, http.MethodPost, "/api/tresor/kicked-user", `{"operationId":"op"}`, f.bearer(t))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestDataRoutes(t *testing.T) {
	f := newFixture(t, false)
	auth := f.bearer(t)

	rec := f.do(t, http.MethodPost, "/api/data/store?id=doc", `{"tresorId":"t1","data":{"cipher":"abc"}}`, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("store: %d %s", rec.Code, rec.Body.String())
	}
	if got := f.bridge.lastArgs; got[0] != "doc" || got[1] != "t1" || got[2] != `{"cipher":"abc"}` {
		t.Fatalf("unexpected store args %v", got)
	}

	f.bridge.data = `{"cipher":"abc"}`
	rec = f.do(t, http.MethodGet, "/api/data/get?id=doc", "", auth)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"cipher":"abc"}` {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/api/data/get", "", auth)
	if decodeError(t, rec).Code != apperrors.CodeMissingDataID {
		t.Fatalf("expected MissingDataId, got %s", rec.Body.String())
	}

	f.bridge.data = "plain text"
	rec = f.do(t, http.MethodGet, "/api/data/profile", "", auth)
	if strings.TrimSpace(rec.Body.String()) != `"plain text"` {
		t.Fatalf("expected string profile, got %s", rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/api/data/profile", `{"data":"hello"}`, auth)
	if rec.Code != http.StatusOK || f.bridge.lastArgs[0] != "hello" {
		t.Fatalf("store profile: %d %v", rec.Code, f.bridge.lastArgs)
	}
}

func TestLoginRoutes(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/auth/login?clientId=code&reto=https://app/after", "", nil)
	if rec.Code != http.StatusFound || !strings.Contains(rec.Header().Get("Location"), "client_id=code") {
		t.Fatalf("login: %d %s", rec.Code, rec.Header().Get("Location"))
	}

	f.logins.ident = identity.Identity{ID: "user-9", UserName: "zed"}
	f.logins.returnTo = "https://app/after"
	rec = f.do(t, http.MethodGet, "/api/auth/callback?state=abc&code=xyz", "", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "https://app/after" {
		t.Fatalf("callback: %d %s", rec.Code, rec.Header().Get("Location"))
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName {
		t.Fatalf("expected session cookie, got %v", cookies)
	}

	rec = f.do(t, http.MethodPost, "/api/tresor/created", `{"tresorId":"t1"}`, func(r *http.Request) { r.AddCookie(cookies[0]) })
	if rec.Code != http.StatusOK || f.bridge.lastActor.ID != "user-9" {
		t.Fatalf("cookie auth: %d actor %+v", rec.Code, f.bridge.lastActor)
	}

	f.logins.err = apperrors.Forbidden(apperrors.CodeApplicationDenied, nil)
	rec = f.do(t, http.MethodGet, "/api/auth/callback?state=abc&code=xyz", "", nil)
	if rec.Header().Get("Location") != "https://app/after#error" {
		t.Fatalf("expected error redirect, got %s", rec.Header().Get("Location"))
	}
	f.logins.err = nil

	f.logins.token = session.Token{ID: "tok", Identity: identity.Identity{ID: "user-9"}, ExpiresAt: time.Unix(0, 0).UTC()}
	rec = f.do(t, http.MethodPost, "/api/auth/login-by-code?clientId=code", `{"code":"c"}`, nil)
	var token map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &token); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if token["id"] != "tok" || token["user"] == nil || token["validUntil"] == nil {
		t.Fatalf("unexpected token body %v", token)
	}

	rec = f.do(t, http.MethodGet, "/api/auth/logout-token", "", func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok") })
	if rec.Code != http.StatusOK || f.logins.revoked != "tok" {
		t.Fatalf("logout-token: %d revoked %q", rec.Code, f.logins.revoked)
	}
	rec = f.do(t, http.MethodGet, "/api/auth/logout", "", nil)
	if got := rec.Result().Cookies(); len(got) != 1 || got[0].MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %v", got)
	}
}

func TestCORS(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodOptions, "/api/data/get", "", func(r *http.Request) {
		r.Header.Set("Origin", "http://localhost:3000")
		r.Header.Set("Access-Control-Request-Method", "GET")
	})
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("preflight: %d %v", rec.Code, rec.Header())
	}
	rec = f.do(t, http.MethodGet, "/up", "", func(r *http.Request) { r.Header.Set("Origin", "http://evil.test") })
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected no CORS header for unknown origin")
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/nope", "", nil)
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Code != apperrors.CodeNotFound {
		t.Fatalf("expected NotFound, got %d %s", rec.Code, rec.Body.String())
	}
}
