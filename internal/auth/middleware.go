// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/circle-app/circle/internal/logging"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// sessionContextKey carries the authenticated *Session in request contexts.
const sessionContextKey contextKey = "circle.session"

// SessionMiddlewareConfig holds configuration for the session middleware.
type SessionMiddlewareConfig struct {
	// CookieName is the name of the session cookie.
	CookieName string

	// SessionTTL is the session time-to-live.
	SessionTTL time.Duration

	// SlidingSession enables session expiry extension on each request.
	SlidingSession bool

	// CookieSecure sets the Secure flag on issued cookies.
	CookieSecure bool
}

// DefaultSessionMiddlewareConfig returns sensible defaults.
func DefaultSessionMiddlewareConfig() *SessionMiddlewareConfig {
	return &SessionMiddlewareConfig{
		CookieName:     "connect.sid",
		SessionTTL:     7 * 24 * time.Hour,
		SlidingSession: true,
	}
}

// SessionMiddleware provides session-based authentication middleware.
type SessionMiddleware struct {
	store    SessionStore
	resolver *Resolver
	config   *SessionMiddlewareConfig
}

// NewSessionMiddleware creates a new session middleware.
func NewSessionMiddleware(store SessionStore, config *SessionMiddlewareConfig) *SessionMiddleware {
	if config == nil {
		config = DefaultSessionMiddlewareConfig()
	}
	return &SessionMiddleware{
		store:    store,
		resolver: NewResolver(store, config.CookieName),
		config:   config,
	}
}

// Resolver returns the cookie resolver sharing this middleware's store and
// cookie name, for use by the WebSocket admission path.
func (m *SessionMiddleware) Resolver() *Resolver {
	return m.resolver
}

// Store returns the underlying session store, for login and logout handlers
// that issue and revoke sessions.
func (m *SessionMiddleware) Store() SessionStore {
	return m.store
}

// TTL returns the configured session time-to-live.
func (m *SessionMiddleware) TTL() time.Duration {
	return m.config.SessionTTL
}

// Authenticate extracts and validates the session from the request cookie.
// If valid, the session is stored in the request context. If no session is
// found the request continues unauthenticated (use RequireAuth for protected
// routes).
func (m *SessionMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.config.CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := extractSessionToken(m.config.CookieName+"="+cookie.Value, m.config.CookieName)
		session, err := m.store.Get(r.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionExpired) {
				logging.Error().Err(err).Msg("session lookup error")
			}
			next.ServeHTTP(w, r)
			return
		}

		if m.config.SlidingSession {
			newExpiry := time.Now().Add(m.config.SessionTTL)
			if touchErr := m.store.Touch(r.Context(), session.ID, newExpiry); touchErr != nil {
				logging.Error().Err(touchErr).Msg("failed to touch session")
			}
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests whose context carries no authenticated session.
func (m *SessionMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromContext(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			//nolint:errcheck // Best-effort error body
			json.NewEncoder(w).Encode(map[string]string{"error": "Authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromContext returns the authenticated session, or nil.
func SessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionContextKey).(*Session)
	return session
}

// UserIDFromContext returns the authenticated user id, or "".
func UserIDFromContext(ctx context.Context) string {
	if session := SessionFromContext(ctx); session != nil {
		return session.UserID
	}
	return ""
}

// ContextWithSession returns a context carrying the given session.
// Exposed for handler tests.
func ContextWithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionCookie builds the session cookie for an issued session.
func (m *SessionMiddleware) SessionCookie(session *Session) *http.Cookie {
	return &http.Cookie{
		Name:     m.config.CookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearedSessionCookie builds an expired cookie that clears the session.
func (m *SessionMiddleware) ClearedSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
