// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tasklane/tasklane/internal/auth"
	"github.com/tasklane/tasklane/internal/config"
	"github.com/tasklane/tasklane/internal/logging"
	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/notify"
	"github.com/tasklane/tasklane/internal/push"
	"github.com/tasklane/tasklane/internal/realtime"
	"github.com/tasklane/tasklane/internal/store"
)

// closeGraceWait gives the peer a moment to read the close frame before
// the TCP connection is torn down.
const closeGraceWait = time.Second

// Handler carries the dependencies the HTTP endpoints need.
type Handler struct {
	cfg      *config.Config
	hub      *realtime.Hub
	notifier *realtime.Notifier
	store    *store.NotificationStore
	push     *push.Sender
	jwt      *auth.JWTManager
	upgrader websocket.Upgrader
}

// NewHandler creates the endpoint handler set.
func NewHandler(
	cfg *config.Config,
	hub *realtime.Hub,
	notifier *realtime.Notifier,
	st *store.NotificationStore,
	pushSender *push.Sender,
	jwtManager *auth.JWTManager,
) *Handler {
	return &Handler{
		cfg:      cfg,
		hub:      hub,
		notifier: notifier,
		store:    st,
		push:     pushSender,
		jwt:      jwtManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   cfg.WebSocket.ReadBufferSize,
			WriteBufferSize:  cfg.WebSocket.WriteBufferSize,
			HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
			CheckOrigin:      checkOrigin(cfg.Security.CORSOrigins),
		},
	}
}

// checkOrigin allows same-origin requests plus explicitly configured
// origins. An empty configuration admits only same-origin upgrades.
func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if origin == "http://"+r.Host || origin == "https://"+r.Host {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// WebSocket upgrades the connection and authenticates the bearer token
// from the ?token= query parameter. Authentication runs after the
// upgrade so the rejection can be a proper policy-violation close frame
// (code 1008) instead of an HTTP error the socket client cannot read.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	if token == "" {
		h.rejectConn(conn, "missing_token", "authentication required")
		return
	}

	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		h.rejectConn(conn, "invalid_token", "invalid or expired token")
		return
	}

	// The hub owns the accepted-connection counter; it increments once
	// when the registration lands. Counting here as well would double it.
	logging.Info().Str("user_id", claims.UserID).Msg("websocket connection established")

	client := realtime.NewClient(h.hub, conn, claims.UserID, h.cfg.WebSocket)
	h.hub.Register <- client
	client.Start()
}

// rejectConn closes an upgraded but unauthenticated connection with a
// policy-violation close frame.
func (h *Handler) rejectConn(conn *websocket.Conn, reason, message string) {
	metrics.WSAuthRejections.WithLabelValues(reason).Inc()
	logging.Warn().Str("reason", reason).Msg("rejecting websocket connection")

	deadline := time.Now().Add(closeGraceWait)
	frame := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message)
	if err := conn.WriteControl(websocket.CloseMessage, frame, deadline); err != nil {
		logging.Debug().Err(err).Msg("failed to write close frame")
	}
	_ = conn.Close()
}

// NotifyUser stores a notification and delivers it to the user's live
// sockets, falling back to mobile push when none are open.
func (h *Handler) NotifyUser(w http.ResponseWriter, r *http.Request) {
	var req NotifyUserRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	n := notify.Notification{
		Kind:    notify.NotificationKind(req.Kind),
		Message: req.Message,
		TaskID:  req.TaskID,
		ActorID: req.ActorID,
	}
	if err := h.store.Append(r.Context(), req.UserID, &n); err != nil {
		logging.Error().Err(err).Str("user_id", req.UserID).Msg("failed to store notification")
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to store notification")
		return
	}

	env, err := notify.NewNotification(n)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to encode notification")
		return
	}

	// Delivery past this point is best-effort; the stored record is the
	// durable copy and the trigger has already succeeded.
	h.notifier.NotifyUser(req.UserID, env)
	if !h.hub.IsUserConnected(req.UserID) {
		if err := h.push.Send(r.Context(), req.UserID, n); err != nil {
			logging.Debug().Err(err).Str("user_id", req.UserID).Msg("push fallback failed")
		}
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"id": n.ID})
}

// NotifyProject broadcasts a task or project update to the supplied
// project members.
func (h *Handler) NotifyProject(w http.ResponseWriter, r *http.Request) {
	var req NotifyProjectRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var (
		env notify.Envelope
		err error
	)
	if req.TaskID != "" {
		env, err = notify.NewTaskUpdated(notify.TaskUpdate{
			TaskID:    req.TaskID,
			ProjectID: req.ProjectID,
			Fields:    req.Fields,
		})
	} else {
		env, err = notify.NewProjectUpdated(notify.ProjectUpdate{
			ProjectID: req.ProjectID,
			Fields:    req.Fields,
		})
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to encode update")
		return
	}

	h.notifier.NotifyProject(req.ProjectID, req.UserIDs, env)
	respondJSON(w, http.StatusAccepted, map[string]int{"recipients": len(req.UserIDs)})
}

// NotifyWorkspace broadcasts a workspace invite and stores a
// notification for each invitee so offline users see it later.
func (h *Handler) NotifyWorkspace(w http.ResponseWriter, r *http.Request) {
	var req NotifyWorkspaceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	env, err := notify.NewWorkspaceInvite(notify.WorkspaceInvite{
		WorkspaceID:   req.WorkspaceID,
		WorkspaceName: req.WorkspaceName,
		InvitedBy:     req.InvitedBy,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to encode invite")
		return
	}

	for _, userID := range req.UserIDs {
		n := notify.Notification{
			Kind:    notify.NotificationGeneric,
			Message: "You've been invited to join " + req.WorkspaceName,
			ActorID: req.InvitedBy,
		}
		if err := h.store.Append(r.Context(), userID, &n); err != nil {
			logging.Error().Err(err).Str("user_id", userID).Msg("failed to store invite notification")
		}
	}

	h.notifier.NotifyWorkspace(req.WorkspaceID, req.UserIDs, env)
	respondJSON(w, http.StatusAccepted, map[string]int{"recipients": len(req.UserIDs)})
}

// Notifications lists a user's stored notifications, newest first.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "user query parameter is required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	items, err := h.store.ListByUser(r.Context(), userID, limit)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("failed to list notifications")
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list notifications")
		return
	}
	if items == nil {
		items = []notify.Notification{}
	}
	respondJSON(w, http.StatusOK, items)
}

// MarkNotificationRead flags one stored notification as read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "user query parameter is required")
		return
	}
	id := chi.URLParam(r, "id")

	err := h.store.MarkRead(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotificationNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "notification not found")
			return
		}
		logging.Error().Err(err).Str("user_id", userID).Msg("failed to mark notification read")
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to mark notification read")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"read": true})
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady reports readiness plus current connection gauges.
func (h *Handler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ready",
		"connections": h.hub.ConnectionCount(),
		"users":       h.hub.UserCount(),
	})
}
