// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestMiddleware(t *testing.T) (*SessionMiddleware, *Session) {
	t.Helper()

	store := NewMemorySessionStore()
	mw := NewSessionMiddleware(store, nil)

	session := NewSession("user-1", "alice", time.Hour)
	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return mw, session
}

func TestAuthenticateAttachesSession(t *testing.T) {
	mw, session := newTestMiddleware(t)

	var got *Session
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "connect.sid", Value: session.ID})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("no session attached to context")
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", got.UserID)
	}
}

func TestAuthenticateContinuesWithoutCookie(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	called := false
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if SessionFromContext(r.Context()) != nil {
			t.Error("unexpected session in context")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("handler not reached without a cookie")
	}
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	mw, session := newTestMiddleware(t)

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous request status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithSession(req.Context(), session))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated request status = %d, want 200", rec.Code)
	}
}

func TestSessionCookies(t *testing.T) {
	mw, session := newTestMiddleware(t)

	cookie := mw.SessionCookie(session)
	if cookie.Name != "connect.sid" || cookie.Value != session.ID {
		t.Errorf("session cookie = %s=%s", cookie.Name, cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}

	cleared := mw.ClearedSessionCookie()
	if cleared.Value != "" || cleared.MaxAge != -1 {
		t.Errorf("cleared cookie = %+v", cleared)
	}
}
