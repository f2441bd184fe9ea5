// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

// Package main is the entry point for the Circle server.
//
// Circle is a habit-tracking and social-accountability app. This server
// hosts the circle-chat subsystem: session-authenticated WebSocket
// connections, membership-aware message fan-out, and the REST surface for
// accounts, circles, messages, reactions and notifications.
//
// The server initializes components in the following order:
//
//  1. Configuration: struct defaults, optional YAML file, CIRCLE_* env vars (Koanf v2)
//  2. Storage: BadgerDB (or in-memory for development) holding all durable data
//  3. Sessions: cookie-backed session store sharing the Badger database
//  4. Chat hub: the connection registry and broadcast engine
//  5. HTTP server: REST API, /metrics, and the /ws upgrade endpoint
//
// All long-running components (hub, session cleanup, HTTP server) run under
// a suture supervisor and are restarted on failure. Graceful shutdown on
// SIGINT and SIGTERM: the HTTP listener drains in-flight requests while the
// hub closes every WebSocket connection.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/circle-app/circle/internal/api"
	"github.com/circle-app/circle/internal/auth"
	"github.com/circle-app/circle/internal/chat"
	"github.com/circle-app/circle/internal/config"
	"github.com/circle-app/circle/internal/logging"
	"github.com/circle-app/circle/internal/message"
	"github.com/circle-app/circle/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init(logging.DefaultConfig())
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
	})
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Int("port", cfg.Server.Port).
		Msg("Starting Circle server")

	db, err := storage.Open(cfg.Database.Path, cfg.Database.InMemory)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Failed to close database")
		}
	}()

	store := storage.NewBadgerStore(db)
	sessionStore := auth.NewBadgerSessionStore(db)

	sessionMW := auth.NewSessionMiddleware(sessionStore, &auth.SessionMiddlewareConfig{
		CookieName:     cfg.Session.CookieName,
		SessionTTL:     cfg.Session.TTL,
		SlidingSession: cfg.Session.Sliding,
		CookieSecure:   cfg.Session.CookieSecure,
	})

	messages := message.NewService(store)
	hub := chat.NewHub(store, messages, chat.Config{
		SendBuffer:     cfg.Chat.SendBuffer,
		DeliveryBuffer: cfg.Chat.DeliveryBuffer,
		MaxMessageSize: cfg.Chat.MaxMessageSize,
	})

	handler := api.NewHandler(store, messages, hub, sessionMW, cfg)
	router := api.NewRouter(handler, cfg)
	server := api.NewServer(cfg.Server, router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for supervisor event logging.
	handlerHook := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	root := suture.New("circle", suture.Spec{
		EventHook:        handlerHook.MustHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	root.Add(hub)
	root.Add(auth.NewCleanupService(sessionStore, cfg.Session.CleanupInterval))
	root.Add(server)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := root.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	logging.Info().Msg("Server stopped gracefully")
}
