package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/tresorgate/internal/platform/errors"
	"github.com/louisbranch/tresorgate/internal/platform/requestctx"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code      apperrors.Code `json:"code"`
	Message   string         `json:"message"`
	Exception string         `json:"exception,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json response: %v", err)
	}
}

func writeEmpty(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, struct{}{})
}

// writeRaw answers with stored application JSON. Values that are not
// valid JSON are sent as a JSON string.
func writeRaw(w http.ResponseWriter, value string) {
	if value == "" {
		writeEmpty(w)
		return
	}
	if json.Valid([]byte(value)) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, value)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	domainErr := apperrors.As(err)
	status := domainErr.HTTPStatus()
	body := errorBody{Code: domainErr.Code, Message: string(domainErr.Code)}
	if domainErr.Code == apperrors.CodeUnexpected && domainErr.Message != "" {
		body.Message = domainErr.Message
	}
	if h.debug && domainErr.Cause != nil {
		body.Exception = domainErr.Cause.Error()
	}
	if status >= http.StatusInternalServerError {
		ctx := r.Context()
		log.Printf("%s %s failed request_id=%s user=%s: %v", r.Method, r.URL.Path,
			requestctx.RequestIDFromContext(ctx), requestctx.UserNameFromContext(ctx), errorChain(domainErr))
	}
	writeJSON(w, status, body)
}

func errorChain(err *apperrors.Error) string {
	if err.Cause == nil {
		return err.Error()
	}
	return fmt.Sprintf("%s: %v", err.Error(), err.Cause)
}

// decodeBody reads a JSON request body into target. An empty body leaves
// target untouched.
func decodeBody(r *http.Request, target any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return apperrors.BadInput(apperrors.CodeBadInput, err)
	}
	if len(body) > maxBodyBytes {
		return apperrors.BadInput(apperrors.CodeBadInput, errors.New("request body too large"))
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return apperrors.BadInput(apperrors.CodeBadInput, err)
	}
	return nil
}

// rawText turns an opaque JSON value into the stored text form. A JSON
// string is stored unquoted; any other value keeps its JSON encoding.
func rawText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal([]byte(trimmed), &text); err == nil {
		return text
	}
	return trimmed
}
