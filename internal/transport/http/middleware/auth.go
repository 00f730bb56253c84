package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtinfra "github.com/qr-nexus/internal/infrastructure/jwt"
)

type contextKey string

const claimsKey contextKey = "claims"

// TokenVerifier is the part of the JWT provider the middleware needs.
type TokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// Auth returns middleware that validates the Bearer JWT and injects claims into context.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			claims, err := verifier.Verify(tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth injects claims when a valid Bearer token is present and lets
// anonymous requests through untouched. An invalid token is treated as anonymous.
func OptionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenStr, ok := bearerToken(r); ok {
				if claims, err := verifier.Verify(tokenStr); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return tokenStr, tokenStr != ""
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, claims *jwtinfra.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwtinfra.Claims)
	return c, ok
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.UserID
	}
	return ""
}
