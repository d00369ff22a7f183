// ABOUTME: HTTP helpers for JWT authentication on relay endpoints
// ABOUTME: Extracts bearer tokens from headers or query params and builds middleware

package auth

import (
	"net/http"
	"strings"
)

// ExtractToken finds the credential for a request. A Bearer Authorization
// header is preferred; the "token" query parameter is accepted as a fallback
// because browser WebSocket clients cannot set headers on the upgrade
// request. Authorization headers with any other scheme yield nothing.
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return token
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Middleware creates an HTTP middleware that verifies the request credential
// and attaches the resulting Identity to the request context. Requests without
// a valid credential are rejected with 401 before reaching the handler.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				http.Error(w, `{"error":"missing credential"}`, http.StatusUnauthorized)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
