package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCAuthenticator verifies bearer tokens against a central identity
// provider. It is the alternative to JWTMiddleware; the gateway picks one of
// the two at startup.
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCAuthenticator(ctx context.Context, providerURL, clientID string) (*OIDCAuthenticator, error) {
	if providerURL == "" || clientID == "" {
		return nil, fmt.Errorf("oidc provider URL and client ID are required")
	}

	provider, err := oidc.NewProvider(ctx, providerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	return &OIDCAuthenticator{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Middleware verifies the token and stores its claims in the request context.
func (a *OIDCAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeJSONError(w, "bearer token required", http.StatusUnauthorized)
			return
		}

		idToken, err := a.verifier.Verify(r.Context(), raw)
		if err != nil {
			writeJSONError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			writeJSONError(w, "invalid token claims", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, withClaims(r, claims))
	})
}
