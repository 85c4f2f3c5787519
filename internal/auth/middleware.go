// Package auth authenticates API requests with a static API key or a
// session bearer token.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader carries the static API key.
const APIKeyHeader = "X-API-Key"

type contextKey string

const sessionContextKey contextKey = "session"

// Middleware authenticates requests. A request passes with either a
// matching API key header or a valid bearer token; bearer tokens also bind
// the request to their session.
type Middleware struct {
	apiKey string
	tokens *TokenManager
}

// NewMiddleware creates authentication middleware. An empty apiKey disables
// the API key path; a nil tokens manager disables bearer tokens. With both
// disabled all requests pass, the local development mode.
func NewMiddleware(apiKey string, tokens *TokenManager) *Middleware {
	return &Middleware{apiKey: apiKey, tokens: tokens}
}

// Handler is the chi middleware entry point.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.apiKey == "" && m.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}

		if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" && m.apiKey != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "invalid API key", http.StatusUnauthorized)
			return
		}

		if m.tokens != nil {
			if bearer, ok := bearerToken(r); ok {
				claims, err := m.tokens.ValidateToken(bearer)
				if err != nil {
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				ctx := context.WithValue(r.Context(), sessionContextKey, claims.SessionID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		http.Error(w, "authentication required", http.StatusUnauthorized)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// SessionFromContext returns the session ID bound by a bearer token, empty
// for API key requests.
func SessionFromContext(ctx context.Context) string {
	session, _ := ctx.Value(sessionContextKey).(string)
	return session
}
