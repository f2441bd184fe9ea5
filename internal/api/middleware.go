// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/circle-app/circle/internal/logging"
	"github.com/circle-app/circle/internal/metrics"
)

// requestLogger logs each request with method, path, status and duration,
// and records the request-duration histogram keyed by the chi route
// pattern so that path parameters do not explode metric cardinality.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, route, strconv.Itoa(ww.Status()),
		).Observe(elapsed.Seconds())

		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", elapsed).
			Str("remote", r.RemoteAddr).
			Msg("http request")
	})
}
