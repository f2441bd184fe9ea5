// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

// Package api provides the HTTP and WebSocket surface of the server:
// session-cookie authentication, circle and message endpoints, and the
// upgrade path that hands authenticated connections to the chat hub.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/circle-app/circle/internal/auth"
	"github.com/circle-app/circle/internal/chat"
	"github.com/circle-app/circle/internal/config"
	"github.com/circle-app/circle/internal/message"
	"github.com/circle-app/circle/internal/storage"
)

const wsCloseWriteTimeout = 10 * time.Second

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	store    storage.Store
	messages *message.Service
	hub      *chat.Hub
	sessions *auth.SessionMiddleware
	cfg      *config.Config
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler wired to the given services.
func NewHandler(store storage.Store, messages *message.Service, hub *chat.Hub, sessions *auth.SessionMiddleware, cfg *config.Config) *Handler {
	return &Handler{
		store:    store,
		messages: messages,
		hub:      hub,
		sessions: sessions,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Health reports server liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// WebSocket upgrades the connection and authenticates it from the session
// cookie. The upgrade happens first so that an authentication failure can
// be reported as a proper close frame (policy violation, code 1008) rather
// than an opaque HTTP error the client cannot distinguish from a network
// fault.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		return
	}

	userID := h.sessions.Resolver().ResolveSessionUser(r.Context(), r.Header.Get("Cookie"))
	if userID == "" {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Authentication required")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseWriteTimeout))
		_ = conn.Close()
		return
	}

	client := h.hub.NewClient(conn, userID)
	h.hub.Admit(r.Context(), client)
}
