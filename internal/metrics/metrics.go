// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

// Package metrics defines Prometheus instrumentation for the chat core:
// live connection counts, frame throughput, fan-out deliveries, and
// notification pushes. Metrics are exposed via the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WSConnections tracks the number of live authenticated WebSocket connections.
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "circle_ws_connections",
			Help: "Current number of live authenticated WebSocket connections",
		},
	)

	// WSFramesTotal counts inbound WebSocket frames by type.
	// The "unknown" label covers frames rejected with an unknown type tag.
	WSFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circle_ws_frames_total",
			Help: "Total number of inbound WebSocket frames processed",
		},
		[]string{"type"},
	)

	// ChatMessagesTotal counts chat messages persisted via the fan-out engine
	// or the REST surface.
	ChatMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circle_chat_messages_total",
			Help: "Total number of chat messages persisted",
		},
	)

	// BroadcastDeliveries counts per-connection chat deliveries that passed
	// membership re-verification.
	BroadcastDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circle_broadcast_deliveries_total",
			Help: "Total number of chat frames delivered to connections",
		},
	)

	// BroadcastStaleSkips counts deliveries skipped because the recipient's
	// cached membership turned out to be stale at re-verification time.
	BroadcastStaleSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circle_broadcast_stale_skips_total",
			Help: "Total number of deliveries skipped due to stale membership caches",
		},
	)

	// BroadcastDrops counts deliveries dropped because a connection's
	// delivery queue was full (slow client).
	BroadcastDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circle_broadcast_drops_total",
			Help: "Total number of deliveries dropped due to full client queues",
		},
	)

	// NotificationPushes counts live notification pushes to open connections.
	NotificationPushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circle_notification_pushes_total",
			Help: "Total number of notifications pushed to live connections",
		},
	)

	// MembershipRefreshes counts membership cache rebuilds, labeled by
	// trigger: "admit", "client_request", "sender_rejected", "stale_recipient".
	MembershipRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circle_membership_refreshes_total",
			Help: "Total number of membership cache refreshes",
		},
		[]string{"trigger"},
	)

	// HTTPRequestDuration tracks REST handler latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "circle_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
