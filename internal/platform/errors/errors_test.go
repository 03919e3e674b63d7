package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeMissingUserName, http.StatusBadRequest},
		{CodeInvalidOperationID, http.StatusBadRequest},
		{CodeUserAlreadyValidated, http.StatusBadRequest},
		{CodeApplicationDenied, http.StatusForbidden},
		{CodeUserNotValidated, http.StatusForbidden},
		{CodeTokenExpired, http.StatusForbidden},
		{CodeUserNotFound, http.StatusNotFound},
		{CodeTokenNotFoundOrInvalid, http.StatusUnauthorized},
		{CodeUnexpected, http.StatusInternalServerError},
		{Code("SomethingNew"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", Forbidden(CodeApplicationDenied, nil))
	if !stderrors.Is(err, New(CodeApplicationDenied, "other message")) {
		t.Fatal("expected errors.Is to match by code")
	}
	if stderrors.Is(err, New(CodeUserNotFound, "")) {
		t.Fatal("expected different codes not to match")
	}
	if !HasCode(err, CodeApplicationDenied) {
		t.Fatal("expected HasCode to find wrapped code")
	}
}

func TestAsClassifiesUntypedErrors(t *testing.T) {
	if As(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	cause := stderrors.New("disk full")
	got := As(cause)
	if got.Code != CodeUnexpected {
		t.Fatalf("expected unexpected code, got %s", got.Code)
	}
	if !stderrors.Is(got, cause) {
		t.Fatal("expected cause to be preserved")
	}

	typed := BadInput(CodeUserNameTaken, nil)
	if As(fmt.Errorf("wrap: %w", typed)) != typed {
		t.Fatal("expected typed error to be returned unchanged")
	}
}

func TestErrorMessageFallsBackToCode(t *testing.T) {
	err := &Error{Code: CodeTresorNotFound}
	if err.Error() != "TresorNotFound" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
