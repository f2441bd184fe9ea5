// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/circle-app/circle/internal/logging"
)

// Resolver resolves a user identity from the raw Cookie header of a request,
// typically a WebSocket upgrade. All cookie-format detail lives here; callers
// only see "user id or empty".
type Resolver struct {
	store      SessionStore
	cookieName string
}

// NewResolver creates a resolver reading the named session cookie against
// the given session store.
func NewResolver(store SessionStore, cookieName string) *Resolver {
	return &Resolver{store: store, cookieName: cookieName}
}

// ResolveSessionUser extracts the session id from a raw Cookie header, looks
// it up in the session store, and returns the authenticated user id.
//
// It returns "" for any failure - missing cookie, malformed value, unknown or
// expired session - and never returns an error: the caller decides how to
// reject (the WebSocket admission path closes with code 1008).
func (r *Resolver) ResolveSessionUser(ctx context.Context, cookieHeader string) string {
	token := extractSessionToken(cookieHeader, r.cookieName)
	if token == "" {
		return ""
	}

	session, err := r.store.Get(ctx, token)
	if err != nil {
		// Not found and expired are expected outcomes, not faults.
		if err != ErrSessionNotFound && err != ErrSessionExpired {
			logging.Error().Err(err).Msg("session lookup failed during resolution")
		}
		return ""
	}
	if session.UserID == "" {
		return ""
	}
	return session.UserID
}

// extractSessionToken pulls the named cookie out of a raw Cookie header and
// normalizes its value into a session-store key.
//
// The value may be URL-encoded and may carry a signed-cookie prefix ("s:")
// followed by the token and a signature separated by ".". Only the portion
// before the signature delimiter is used as the lookup key; the signature is
// not verified here - the session store's own validation is trusted.
func extractSessionToken(cookieHeader, cookieName string) string {
	if cookieHeader == "" {
		return ""
	}

	// Reuse net/http's cookie parsing rather than splitting by hand.
	header := http.Header{}
	header.Add("Cookie", cookieHeader)
	request := http.Request{Header: header}

	cookie, err := request.Cookie(cookieName)
	if err != nil {
		return ""
	}

	value := cookie.Value
	if decoded, err := url.QueryUnescape(value); err == nil {
		value = decoded
	}

	value = strings.TrimPrefix(value, "s:")
	token, _, _ := strings.Cut(value, ".")
	return token
}
