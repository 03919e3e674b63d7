// Package httpapi exposes the bridge over HTTP under /api.
//
// Callers authenticate with a bearer token issued by login-by-code or with
// the signed session cookie set by the redirect login. Errors are rendered
// as {code, message} JSON with the status of the error code.
package httpapi
