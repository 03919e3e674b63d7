package httpapi

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
)

func (h *Handler) handleGetUserID(w http.ResponseWriter, r *http.Request) {
	userName := r.URL.Query().Get("userName")
	if userName == "" {
		h.writeError(w, r, apperrors.BadInput(apperrors.CodeMissingUserName, nil))
		return
	}
	userID, err := h.bridge.GetUserID(r.Context(), userName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userID)
}

type initRegistrationRequest struct {
	UserName    string          `json:"userName"`
	ProfileData json.RawMessage `json:"profileData"`
}

type initRegistrationResponse struct {
	UserID       string `json:"userId"`
	RegSessionID string `json:"regSessionId"`
}

func (h *Handler) handleInitRegistration(w http.ResponseWriter, r *http.Request) {
	var req initRegistrationRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.UserName == "" {
		h.writeError(w, r, apperrors.BadInput(apperrors.CodeMissingUserName, nil))
		return
	}
	ident, err := h.bridge.InitRegistration(r.Context(), req.UserName, rawText(req.ProfileData))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := initRegistrationResponse{UserID: ident.ID}
	if ident.Registration != nil {
		resp.RegSessionID = ident.Registration.SessionID
	}
	writeJSON(w, http.StatusOK, resp)
}

type finishRegistrationRequest struct {
	UserID             string `json:"userId"`
	ValidationVerifier string `json:"validationVerifier"`
}

func (h *Handler) handleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	var req finishRegistrationRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.UserID == "" {
		h.writeError(w, r, apperrors.BadInput(apperrors.CodeMissingUserID, nil))
		return
	}
	if req.ValidationVerifier == "" {
		h.writeError(w, r, apperrors.BadInput(apperrors.CodeMissingValidationVerifier, nil))
		return
	}
	if err := h.bridge.FinishRegistration(r.Context(), req.UserID, req.ValidationVerifier); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeEmpty(w)
}

type validateUserRequest struct {
	UserID         string `json:"userId"`
	ValidationCode string `json:"validationCode"`
}

func (h *Handler) handleValidateUser(w http.ResponseWriter, r *http.Request) {
	var req validateUserRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.UserID == "" {
		h.writeError(w, r, apperrors.BadInput(apperrors.CodeMissingUserID, nil))
		return
	}
	if req.ValidationCode == "" {
		h.writeError(w, r, apperrors.BadInput(apperrors.CodeMissingValidationCode, nil))
		return
	}
	if err := h.bridge.ValidateUser(r.Context(), req.UserID, req.ValidationCode); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeEmpty(w)
}
