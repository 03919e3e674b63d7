// Package errors provides structured error handling for the bridge.
package errors

import "net/http"

// Code is a machine-readable error code.
//
// Codes are part of the wire contract: clients branch on them, so the string
// values must stay stable.
type Code string

// Kind groups codes into the transport-level families used for status mapping.
type Kind string

const (
	KindBadInput   Kind = "BadInput"
	KindForbidden  Kind = "Forbidden"
	KindNotFound   Kind = "NotFound"
	KindUnexpected Kind = "UnexpectedException"
)

const (
	// CodeUnexpected represents a remote-call or storage failure that is not
	// otherwise classified.
	CodeUnexpected Code = "UnexpectedException"

	// Generic families, used when no more specific code applies.
	CodeBadInput  Code = "BadInput"
	CodeForbidden Code = "Forbidden"
	CodeNotFound  Code = "NotFound"

	// Missing caller input
	CodeMissingUserName           Code = "MissingUserName"
	CodeMissingUserID             Code = "MissingUserId"
	CodeMissingValidationVerifier Code = "MissingValidationVerifier"
	CodeMissingValidationCode     Code = "MissingValidationCode"
	CodeMissingTresorID           Code = "MissingTresorId"
	CodeMissingOperationID        Code = "MissingOperationId"
	CodeMissingDataID             Code = "MissingDataId"
	CodeNoClientID                Code = "NoClientId"
	CodeUnknownClientID           Code = "UnknownClientId"
	CodeNoCodeProvided            Code = "NoCodeProvided"
	CodeInvalidState              Code = "InvalidState"

	// Remote operation lookups
	CodeInvalidOperationID Code = "InvalidOperationId"
	CodeInvalidTresorID    Code = "InvalidTresorId"

	// Registration state machine
	CodeUserNameTaken         Code = "UserNameTaken"
	CodeUserInWrongState      Code = "UserInWrongState"
	CodeUserNotFound          Code = "UserNotFound"
	CodeUserNotValidated      Code = "UserNotValidated"
	CodeUserAlreadyValidated  Code = "UserAlreadyValidated"
	CodeInvalidValidationCode Code = "InvalidValidationCode"

	// Policy
	CodeApplicationDenied Code = "ApplicationDenied"

	// Local mirror lookups
	CodeTresorNotFound    Code = "TresorNotFound"
	CodeDataEntryNotFound Code = "DataEntryNotFound"

	// Bearer and cookie sessions
	CodeTokenNotFoundOrInvalid Code = "TokenNotFoundOrInvalid"

	// ID token validation
	CodeInvalidIssuer       Code = "InvalidIssuer"
	CodeInvalidAudience     Code = "InvalidAudience"
	CodeInvalidSigningAlg   Code = "InvalidSigningAlg"
	CodeInvalidSignature    Code = "InvalidSignature"
	CodeMalformedToken      Code = "MalformedToken"
	CodeTokenExpired        Code = "TokenExpired"
	CodeTokenTooOld         Code = "TokenTooOld"
	CodeTokenIssuedInFuture Code = "TokenIssuedInFuture"
	CodeMissingIDToken      Code = "MissingIdToken"
)

// Kind reports the family a code belongs to.
func (c Code) Kind() Kind {
	switch c {
	case CodeBadInput,
		CodeMissingUserName,
		CodeMissingUserID,
		CodeMissingValidationVerifier,
		CodeMissingValidationCode,
		CodeMissingTresorID,
		CodeMissingOperationID,
		CodeMissingDataID,
		CodeNoClientID,
		CodeUnknownClientID,
		CodeNoCodeProvided,
		CodeInvalidState,
		CodeInvalidOperationID,
		CodeInvalidTresorID,
		CodeUserNameTaken,
		CodeUserInWrongState,
		CodeUserAlreadyValidated:
		return KindBadInput

	case CodeForbidden,
		CodeApplicationDenied,
		CodeUserNotValidated,
		CodeInvalidValidationCode,
		CodeTokenNotFoundOrInvalid,
		CodeInvalidIssuer,
		CodeInvalidAudience,
		CodeInvalidSigningAlg,
		CodeInvalidSignature,
		CodeMalformedToken,
		CodeTokenExpired,
		CodeTokenTooOld,
		CodeTokenIssuedInFuture,
		CodeMissingIDToken:
		return KindForbidden

	case CodeNotFound,
		CodeUserNotFound,
		CodeTresorNotFound,
		CodeDataEntryNotFound:
		return KindNotFound

	default:
		return KindUnexpected
	}
}

// HTTPStatus maps a code to the status used on the HTTP transport.
func (c Code) HTTPStatus() int {
	if c == CodeTokenNotFoundOrInvalid {
		return http.StatusUnauthorized
	}
	switch c.Kind() {
	case KindBadInput:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
