// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/circle-app/circle/internal/auth"
	"github.com/circle-app/circle/internal/logging"
	"github.com/circle-app/circle/internal/models"
	"github.com/circle-app/circle/internal/storage"
)

type createCircleRequest struct {
	Name string `json:"name"`
}

// CreateCircle creates a circle with the caller as creator and first member.
func (h *Handler) CreateCircle(w http.ResponseWriter, r *http.Request) {
	var req createCircleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Circle name is required")
		return
	}

	circle := &models.Circle{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CreatorID: auth.UserIDFromContext(r.Context()),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateCircle(r.Context(), circle); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, circle)
}

// ListCircles returns the circles the caller belongs to.
func (h *Handler) ListCircles(w http.ResponseWriter, r *http.Request) {
	circles, err := h.store.GetUserCircles(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, circles)
}

// JoinCircle adds the caller to a circle and notifies the circle creator,
// both durably and live over any open connections the creator has.
func (h *Handler) JoinCircle(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "id")
	session := auth.SessionFromContext(r.Context())

	circle, err := h.store.GetCircle(r.Context(), circleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Circle not found")
			return
		}
		respondServiceError(w, err)
		return
	}

	if err := h.store.AddCircleMember(r.Context(), circleID, session.UserID); err != nil {
		respondServiceError(w, err)
		return
	}

	if circle.CreatorID != session.UserID {
		h.notifyCircleJoin(r, circle, session.Username)
	}

	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

// LeaveCircle removes the caller from a circle. Open connections of the
// leaving user keep a stale roster until their next refresh; delivery-time
// re-verification prevents any message from actually reaching them.
func (h *Handler) LeaveCircle(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.store.RemoveCircleMember(r.Context(), circleID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Circle not found")
			return
		}
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) notifyCircleJoin(r *http.Request, circle *models.Circle, joinerName string) {
	n := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    circle.CreatorID,
		Type:      models.NotificationTypeCircleJoin,
		Title:     "New circle member",
		Message:   fmt.Sprintf("%s joined %s", joinerName, circle.Name),
		Link:      "/circles/" + circle.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateNotification(r.Context(), n); err != nil {
		logging.Error().Err(err).Str("circle_id", circle.ID).Msg("failed to store join notification")
		return
	}
	h.hub.NotifyUser(circle.CreatorID, n)
}
