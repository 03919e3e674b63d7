package httpapi

import (
	"log"
	"net/http"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
)

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	redirect, err := h.logins.BeginLogin(query.Get("clientId"), query.Get("reto"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	ident, returnTo, err := h.logins.CompleteLogin(r.Context(), query.Get("state"), query.Get("code"))
	if err == nil && h.cookies != nil {
		err = h.cookies.Set(w, ident)
	}
	if err != nil {
		if returnTo == "" {
			h.writeError(w, r, err)
			return
		}
		log.Printf("login callback failed: %v", err)
		http.Redirect(w, r, returnTo+"#error", http.StatusFound)
		return
	}
	if returnTo == "" {
		writeEmpty(w)
		return
	}
	http.Redirect(w, r, returnTo, http.StatusFound)
}

type loginByCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleLoginByCode(w http.ResponseWriter, r *http.Request) {
	var req loginByCodeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	token, err := h.logins.LoginByCode(r.Context(), r.URL.Query().Get("clientId"), req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) handleLogout(w http.ResponseWriter, _ *http.Request) {
	if h.cookies != nil {
		h.cookies.Clear(w)
	}
	writeEmpty(w)
}

func (h *Handler) handleLogoutToken(w http.ResponseWriter, r *http.Request) {
	tokenID := bearerToken(r)
	if tokenID == "" {
		h.writeError(w, r, apperrors.New(apperrors.CodeTokenNotFoundOrInvalid, string(apperrors.CodeTokenNotFoundOrInvalid)))
		return
	}
	if err := h.logins.Logout(r.Context(), tokenID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeEmpty(w)
}
