// Package requestctx carries per-request identity through handler chains.
package requestctx

import "context"

type (
	userIDContextKey    struct{}
	userNameContextKey  struct{}
	requestIDContextKey struct{}
)

// WithUserID stores the remote user identifier of the authenticated caller.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the remote user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, userIDContextKey{})
}

// WithUserName stores the bridge-local user name bound to the session.
func WithUserName(ctx context.Context, userName string) context.Context {
	return withString(ctx, userNameContextKey{}, userName)
}

// UserNameFromContext returns the user name stored in context.
func UserNameFromContext(ctx context.Context) string {
	return stringFrom(ctx, userNameContextKey{})
}

// WithRequestID stores the correlation id assigned to an inbound request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the correlation id stored in context.
func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDContextKey{})
}

func withString(ctx context.Context, key any, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
