// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tasklane/tasklane/internal/config"
)

// Router wires the endpoint handlers into a Chi mux.
type Router struct {
	handler    *Handler
	middleware *ChiMiddleware
}

// NewRouter creates a Router for the given handler set.
func NewRouter(cfg *config.Config, handler *Handler) *Router {
	return &Router{
		handler:    handler,
		middleware: NewChiMiddleware(cfg.Security),
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// Health endpoints stay unthrottled so monitoring never trips the
	// API rate limit.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// The socket endpoint skips the latency middleware; an open socket
	// would be recorded as one very slow request.
	r.With(router.middleware.RateLimit()).Get("/api/v1/ws", router.handler.WebSocket)

	// Notify triggers and the notification list.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(PrometheusMetrics)

		r.Post("/notify/user", router.handler.NotifyUser)
		r.Post("/notify/project", router.handler.NotifyProject)
		r.Post("/notify/workspace", router.handler.NotifyWorkspace)

		r.Get("/notifications", router.handler.Notifications)
		r.Post("/notifications/{id}/read", router.handler.MarkNotificationRead)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
