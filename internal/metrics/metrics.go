// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

// Package metrics provides Prometheus instrumentation for the realtime
// core. Delivery stays fire-and-forget; the counters here exist so that
// skipped and failed sends are at least visible to operators.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket Connection Metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasklane_ws_connections_active",
			Help: "Current number of open WebSocket connections",
		},
	)

	WSUsersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasklane_ws_users_active",
			Help: "Current number of users with at least one open connection",
		},
	)

	WSConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasklane_ws_connections_total",
			Help: "Total number of accepted WebSocket connections",
		},
	)

	WSAuthRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklane_ws_auth_rejections_total",
			Help: "Total number of connections rejected at authentication",
		},
		[]string{"reason"}, // "missing_token", "invalid_token"
	)

	// Fan-out Metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklane_messages_sent_total",
			Help: "Total number of messages written to client send queues",
		},
		[]string{"type"},
	)

	SendsSkippedClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasklane_sends_skipped_closed_total",
			Help: "Total number of sends skipped because the target socket was not open",
		},
	)

	SendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasklane_send_errors_total",
			Help: "Total number of failed socket writes",
		},
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklane_broadcasts_total",
			Help: "Total number of group fan-outs",
		},
		[]string{"scope"}, // "project", "workspace"
	)

	// Client Manager Metrics
	ClientReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasklane_client_reconnect_attempts_total",
			Help: "Total number of client reconnect attempts",
		},
	)

	// Push Fallback Metrics
	PushFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasklane_push_fallbacks_total",
			Help: "Total number of notifications routed to the mobile push gateway",
		},
	)

	PushErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklane_push_errors_total",
			Help: "Total number of failed push gateway deliveries",
		},
		[]string{"reason"}, // "circuit_open", "rate_limited", "gateway"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklane_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasklane_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)
)
