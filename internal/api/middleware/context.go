package middleware

import (
	"context"
	"net/http"

	"github.com/herahq/engine/internal/engine"
)

type contextKey string

const (
	claimsKey    contextKey = "claims"
	keyPrefixKey contextKey = "key_prefix"
)

// SetClaims stores the authenticated actor's claims in the context.
func SetClaims(ctx context.Context, claims engine.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims returns the authenticated claims set by the auth middleware.
func GetClaims(r *http.Request) (engine.Claims, bool) {
	claims, ok := r.Context().Value(claimsKey).(engine.Claims)
	return claims, ok
}

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}
