// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/circle-app/circle/internal/auth"
	"github.com/circle-app/circle/internal/storage"
)

// ListNotifications returns the caller's notifications, newest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.store.GetUserNotifications(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, notifications)
}

// MarkNotificationRead marks one of the caller's notifications as read.
// Notifications belonging to other users are reported as not found.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.store.MarkNotificationRead(r.Context(), id, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Notification not found")
			return
		}
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}
