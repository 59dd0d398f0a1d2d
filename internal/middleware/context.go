package middleware

import "context"

type contextKey string

const (
	tokenKey     contextKey = "token"
	requestIDKey contextKey = "requestId"
)

// TokenFromContext retrieves the bearer token extracted by Auth.
func TokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey).(string)
	return tok
}

// WithToken returns a new context carrying tok. Exported for handler tests
// that need to exercise rate limiting or business logic without going
// through Auth.
func WithToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, tokenKey, tok)
}

// RequestIDFromContext retrieves the request id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithRequestID returns a new context carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
