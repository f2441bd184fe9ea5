// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/circle-app/circle/internal/config"
	"github.com/circle-app/circle/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server wraps http.Server as a supervised service.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the HTTP server from configuration.
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: cfg.Timeout,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Serve runs the HTTP server until the context is canceled, then drains
// in-flight requests. WebSocket connections are closed by the hub's own
// shutdown, not by the HTTP drain.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	logging.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("http server shutdown error")
		}
		logging.Info().Msg("http server stopped")
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) String() string { return "http-server" }
