package httpapi

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
)

func (h *Handler) handleGetData(w http.ResponseWriter, r *http.Request, actor identity.Identity) {
	dataID := r.URL.Query().Get("id")
	if dataID == "" {
		h.writeError(w, r, apperrors.BadInput(apperrors.CodeMissingDataID, nil))
		return
	}
	data, err := h.bridge.GetData(r.Context(), actor, dataID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeRaw(w, data)
}

type storeDataRequest struct {
	TresorID string          `json:"tresorId"`
	Data     json.RawMessage `json:"data"`
}

func (h *Handler) handleStoreData(w http.ResponseWriter, r *http.Request, actor identity.Identity) {
	dataID := r.URL.Query().Get("id")
	if dataID == "" {
		h.writeError(w, r, apperrors.BadInput(apperrors.CodeMissingDataID, nil))
		return
	}
	var req storeDataRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.bridge.StoreData(r.Context(), actor, dataID, req.TresorID, rawText(req.Data)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeEmpty(w)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request, actor identity.Identity) {
	profile, err := h.bridge.GetProfile(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeRaw(w, profile)
}

type storeProfileRequest struct {
	Data json.RawMessage `json:"data"`
}

func (h *Handler) handleStoreProfile(w http.ResponseWriter, r *http.Request, actor identity.Identity) {
	var req storeProfileRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	stored, err := h.bridge.StoreProfile(r.Context(), actor, rawText(req.Data))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeRaw(w, stored)
}
