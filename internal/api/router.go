// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/circle-app/circle/internal/config"
)

// NewRouter builds the full route tree: health and metrics, the session
// lifecycle under /api/auth, the authenticated API, and the WebSocket
// endpoint. The WebSocket route sits outside the session middleware because
// connections authenticate themselves from the raw Cookie header during
// admission.
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.API.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.WebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Credential endpoints get a tighter rate limit than the rest of
		// the API to slow down guessing.
		r.Route("/auth", func(r chi.Router) {
			r.Use(httprate.LimitByIP(cfg.API.AuthRateLimit, time.Minute))
			r.Use(h.sessions.Authenticate)

			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.With(h.sessions.RequireAuth).Get("/me", h.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(cfg.API.RateLimit, time.Minute))
			r.Use(h.sessions.Authenticate)
			r.Use(h.sessions.RequireAuth)

			r.Post("/circles", h.CreateCircle)
			r.Get("/circles", h.ListCircles)
			r.Post("/circles/{id}/join", h.JoinCircle)
			r.Delete("/circles/{id}/leave", h.LeaveCircle)
			r.Get("/circles/{id}/messages", h.CircleMessages)
			r.Post("/circles/{id}/messages", h.PostCircleMessage)

			r.Patch("/messages/{id}", h.EditMessage)
			r.Delete("/messages/{id}", h.DeleteMessage)
			r.Get("/messages/{id}/reactions", h.ListReactions)
			r.Post("/messages/{id}/reactions", h.AddReaction)
			r.Delete("/messages/{id}/reactions/{emoji}", h.RemoveReaction)

			r.Get("/notifications", h.ListNotifications)
			r.Post("/notifications/{id}/read", h.MarkNotificationRead)
		})
	})

	return r
}
