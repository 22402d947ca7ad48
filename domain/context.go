package domain

import "context"

type contextKey string

const sessionClaimsKey contextKey = "session_claims"

// ContextWithClaims returns a context carrying verified session claims.
func ContextWithClaims(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, sessionClaimsKey, claims)
}

// ClaimsFromContext extracts session claims placed by the auth middleware.
// A nil result means the request is anonymous; callers distinguish only
// anonymous vs authenticated, never a gradient of failure reasons.
func ClaimsFromContext(ctx context.Context) *SessionClaims {
	claims, _ := ctx.Value(sessionClaimsKey).(*SessionClaims)
	return claims
}
