// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/circle-app/circle/internal/auth"
	"github.com/circle-app/circle/internal/models"
)

type postMessageRequest struct {
	Content string `json:"content"`
}

type editMessageRequest struct {
	Content string `json:"content"`
}

type addReactionRequest struct {
	Emoji string `json:"emoji"`
}

// messageMutationResponse is the body for edit and delete operations:
// {"success": true, "message": {...}}.
type messageMutationResponse struct {
	Success bool            `json:"success"`
	Message *models.Message `json:"message"`
}

// CircleMessages returns a circle's message history in ascending creation
// order. Non-members get 403.
func (h *Handler) CircleMessages(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	msgs, err := h.messages.CircleMessages(r.Context(), circleID, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

// PostCircleMessage persists a message over REST and broadcasts it to the
// circle's connected members, same as a message sent over the socket.
func (h *Handler) PostCircleMessage(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	var req postMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	member, err := h.store.IsCircleMember(r.Context(), circleID, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !member {
		respondError(w, http.StatusForbidden, "Not a member of this circle")
		return
	}

	msg, err := h.hub.CreateAndBroadcast(r.Context(), circleID, userID, req.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// EditMessage updates a message's content. Author only.
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	var req editMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := h.messages.Edit(r.Context(), messageID, userID, req.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, messageMutationResponse{Success: true, Message: msg})
}

// DeleteMessage soft-deletes a message. Author only. The record survives
// with cleared content so reactions remain addressable.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	msg, err := h.messages.Delete(r.Context(), messageID, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, messageMutationResponse{Success: true, Message: msg})
}

// AddReaction records a reaction. Repeating an identical reaction is a no-op
// that still returns the reaction.
func (h *Handler) AddReaction(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	var req addReactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	reaction, err := h.messages.AddReaction(r.Context(), messageID, userID, req.Emoji)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, reaction)
}

// RemoveReaction removes a reaction. Removing a reaction that does not exist
// succeeds.
func (h *Handler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	// Emoji arrives percent-encoded in the path.
	emoji := chi.URLParam(r, "emoji")
	if decoded, err := url.PathUnescape(emoji); err == nil {
		emoji = decoded
	}

	if err := h.messages.RemoveReaction(r.Context(), messageID, userID, emoji); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

// ListReactions returns all reactions on a message.
func (h *Handler) ListReactions(w http.ResponseWriter, r *http.Request) {
	reactions, err := h.messages.Reactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reactions)
}
