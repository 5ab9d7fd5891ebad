package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// bearerToken pulls the token out of the Authorization header. Empty string
// when the header is missing or not a bearer scheme.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func withClaims(r *http.Request, claims map[string]interface{}) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), claimsContextKey, claims))
}

// JWTMiddleware verifies an HS256 bearer token against a shared secret and
// stores its claims in the request context for the handlers.
func JWTMiddleware(jwtSecret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeJSONError(w, "bearer token required", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
				// Only HS256 is accepted; anything else is an attack surface.
				if token.Method.Alg() != "HS256" {
					return nil, errors.New("unexpected signing method")
				}
				return jwtSecret, nil
			})
			if err != nil || !token.Valid {
				logger.Warn("token rejected", "error", err)
				writeJSONError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeJSONError(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, withClaims(r, map[string]interface{}(claims)))
		})
	}
}

// actorFromContext names the caller for the audit trail: the token subject
// when one is present, a fixed fallback otherwise.
func actorFromContext(ctx context.Context) string {
	claims, ok := ctx.Value(claimsContextKey).(map[string]interface{})
	if !ok {
		return "api"
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	return "api"
}
