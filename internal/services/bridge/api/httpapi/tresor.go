package httpapi

import (
	"context"
	"net/http"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
)

type tresorRequest struct {
	TresorID    string `json:"tresorId"`
	OperationID string `json:"operationId"`
}

func (h *Handler) handleTresorCreated(w http.ResponseWriter, r *http.Request, actor identity.Identity) {
	var req tresorRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.TresorID == "" {
		h.writeError(w, r, apperrors.BadInput(apperrors.CodeMissingTresorID, nil))
		return
	}
	if err := h.bridge.TresorCreated(r.Context(), actor, req.TresorID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeEmpty(w)
}

type operationFunc func(ctx context.Context, actor identity.Identity, operationID string) error

// operation serves the routes that approve a remote operation by id.
// Older clients send the invitation link creation id as tresorId, so it is
// accepted when operationId is absent.
func (h *Handler) operation(run operationFunc) actorHandler {
	return func(w http.ResponseWriter, r *http.Request, actor identity.Identity) {
		var req tresorRequest
		if err := decodeBody(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		operationID := req.OperationID
		if operationID == "" {
			operationID = req.TresorID
		}
		if operationID == "" {
			h.writeError(w, r, apperrors.BadInput(apperrors.CodeMissingOperationID, nil))
			return
		}
		if err := run(r.Context(), actor, operationID); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeEmpty(w)
	}
}
