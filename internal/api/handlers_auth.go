// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/circle-app/circle/internal/auth"
	"github.com/circle-app/circle/internal/logging"
	"github.com/circle-app/circle/internal/models"
	"github.com/circle-app/circle/internal/storage"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates a new user account and issues a session.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			respondError(w, http.StatusConflict, "Username already taken")
			return
		}
		respondServiceError(w, err)
		return
	}

	h.issueSession(w, r, user, http.StatusCreated)
}

// Login verifies credentials and issues a session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		respondServiceError(w, err)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.issueSession(w, r, user, http.StatusOK)
}

// Logout revokes the current session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := auth.SessionFromContext(r.Context()); session != nil {
		if err := h.sessions.Store().Delete(r.Context(), session.ID); err != nil {
			logging.Error().Err(err).Msg("failed to delete session")
		}
	}
	http.SetCookie(w, h.sessions.ClearedSessionCookie())
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	user, err := h.store.GetUser(r.Context(), session.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) issueSession(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	session := auth.NewSession(user.ID, user.Username, h.sessions.TTL())
	if err := h.sessions.Store().Create(r.Context(), session); err != nil {
		respondServiceError(w, err)
		return
	}

	http.SetCookie(w, h.sessions.SessionCookie(session))
	respondJSON(w, status, user)
}
