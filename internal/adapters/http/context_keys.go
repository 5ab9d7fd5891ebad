package http

// contextKey is the typed key for request-scoped values.
type contextKey string

// claimsContextKey stores the verified token claims (JWT or OIDC).
const claimsContextKey = contextKey("claims")
