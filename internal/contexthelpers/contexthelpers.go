// Package contexthelpers carries request scoped values from middleware to handlers and templates.
package contexthelpers

import "context"

type contextKey int

const (
	detectiveKey contextKey = iota
	csrfTokenKey
	cspNonceKey
)

func value[T any](ctx context.Context, key contextKey) T {
	v, _ := ctx.Value(key).(T)
	return v
}

// WithDetective marks the request as made by the signed in detective identified by userID.
func WithDetective(ctx context.Context, userID []byte) context.Context {
	return context.WithValue(ctx, detectiveKey, userID)
}

func IsAuthenticated(ctx context.Context) bool {
	return len(AuthenticatedUserID(ctx)) > 0
}

// AuthenticatedUserID returns the user owning the request or nil for anonymous detectives.
func AuthenticatedUserID(ctx context.Context) []byte {
	return value[[]byte](ctx, detectiveKey)
}

func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfTokenKey, token)
}

func CSRFToken(ctx context.Context) string {
	return value[string](ctx, csrfTokenKey)
}

func WithCSPNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, cspNonceKey, nonce)
}

func CSPNonce(ctx context.Context) string {
	return value[string](ctx, cspNonceKey)
}
