// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/tasklane/tasklane/internal/logging"
	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/notify"
)

// ShutdownReason identifies why the hub is shutting down.
// This enables clear observability in logs and metrics.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	// This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Hub maintains the registry of live connections indexed by user and
// fans notification envelopes out to them.
//
// The registry invariant: a user key exists iff at least one of that
// user's sockets is registered. Removing the last socket removes the
// key; no empty entries persist.
//
// All registry mutation is guarded by mu. The register/unregister
// channels funnel lifecycle events through the run loop, but send
// operations take the lock directly, so the hub is safe regardless of
// which goroutine a controller calls it from.
type Hub struct {
	users map[string]map[*Client]struct{}

	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub. Call Run or RunWithContext before
// registering clients.
func NewHub() *Hub {
	return &Hub{
		users:      make(map[string]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run starts the hub lifecycle loop (blocks forever, no context support).
//
// Deprecated: Use RunWithContext for supervised operation.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		}
	}
}

// RunWithContext starts the hub with context support for graceful
// shutdown. This method is designed for use with suture supervision.
//
// When the context is canceled all connected clients are closed and the
// method returns ctx.Err(), so a supervisor can restart the hub without
// leaving orphaned connections.
//
// DETERMINISM: Uses priority-based selection so shutdown is always
// observed before further lifecycle churn when both are pending.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		}
	}
}

// add registers a client under its user ID, creating the user entry on
// first connection.
func (h *Hub) add(c *Client) {
	h.mu.Lock()
	set := h.users[c.userID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.users[c.userID] = set
	}
	set[c] = struct{}{}
	conns, userCount := h.countsLocked()
	h.mu.Unlock()

	metrics.WSConnectionsActive.Set(float64(conns))
	metrics.WSUsersActive.Set(float64(userCount))
	metrics.WSConnectionsTotal.Inc()
	logging.Info().
		Str("user_id", c.userID).
		Int("total_connections", conns).
		Msg("websocket client connected")
}

// remove unregisters a client. Idempotent: removing a client that is
// not present is a no-op, so the close and error paths can both funnel
// here.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	set, ok := h.users[c.userID]
	if ok {
		if _, registered := set[c]; registered {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.users, c.userID)
		}
	}
	conns, userCount := h.countsLocked()
	h.mu.Unlock()

	metrics.WSConnectionsActive.Set(float64(conns))
	metrics.WSUsersActive.Set(float64(userCount))
	logging.Info().
		Str("user_id", c.userID).
		Int("total_connections", conns).
		Msg("websocket client disconnected")
}

// countsLocked returns (connection count, user count). Caller holds mu.
func (h *Hub) countsLocked() (int, int) {
	conns := 0
	for _, set := range h.users {
		conns += len(set)
	}
	return conns, len(h.users)
}

// SendToUser delivers an envelope to every open socket of one user.
// Fire-and-forget: sockets whose send queue is closed or full are
// skipped, dropped from the registry, and counted in metrics. A user
// with zero open sockets is not an error.
func (h *Hub) SendToUser(userID string, env notify.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendToUserLocked(userID, env)
}

func (h *Hub) sendToUserLocked(userID string, env notify.Envelope) {
	set := h.users[userID]
	if len(set) == 0 {
		return
	}

	// DETERMINISM: Iterate clients sorted by ID. Map order would make
	// delivery order vary between runs for a user's own sockets.
	clients := make([]*Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- env:
			metrics.MessagesSent.WithLabelValues(string(env.Type)).Inc()
		default:
			// Queue full or connection on its way down; skip, never block.
			metrics.SendsSkippedClosed.Inc()
			logging.Debug().
				Str("user_id", userID).
				Str("type", string(env.Type)).
				Msg("send skipped, socket not open")
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		delete(set, client)
		close(client.send)
	}
	if len(set) == 0 {
		delete(h.users, userID)
	}
}

// BroadcastToProject fans an envelope decorated with the project ID out
// to each recipient. Best-effort multicast: no dedupe beyond the
// caller's list, no atomicity across recipients, and no ordering
// guarantee between them.
func (h *Hub) BroadcastToProject(projectID string, userIDs []string, env notify.Envelope) {
	metrics.BroadcastsTotal.WithLabelValues("project").Inc()
	decorated := env.WithProject(projectID)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, userID := range userIDs {
		h.sendToUserLocked(userID, decorated)
	}
}

// BroadcastToWorkspace is the workspace-keyed variant of
// BroadcastToProject.
func (h *Hub) BroadcastToWorkspace(workspaceID string, userIDs []string, env notify.Envelope) {
	metrics.BroadcastsTotal.WithLabelValues("workspace").Inc()
	decorated := env.WithWorkspace(workspaceID)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, userID := range userIDs {
		h.sendToUserLocked(userID, decorated)
	}
}

// IsUserConnected reports whether the user has at least one registered
// socket. The push fallback uses this to decide whether to route a
// notification to the mobile gateway instead.
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// ConnectionCount returns the number of registered sockets.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, _ := h.countsLocked()
	return conns
}

// UserCount returns the number of users with at least one socket.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// logGracefulShutdown closes all clients and logs structured shutdown
// information. ctx.Err() is NOT logged as an error because cancellation
// is the expected graceful shutdown path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	closed := h.closeAllClients()

	logging.Info().
		Str("component", "realtime-hub").
		Str("reason", string(shutdownReason(ctx))).
		Int("clients_closed", closed).
		Msg("realtime hub stopped")
}

// shutdownReason determines the shutdown reason from the context error.
func shutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes every registered client and empties the
// registry. Returns the number of clients closed.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := 0
	for userID, set := range h.users {
		for client := range set {
			close(client.send)
			closed++
		}
		delete(h.users, userID)
	}

	metrics.WSConnectionsActive.Set(0)
	metrics.WSUsersActive.Set(0)
	return closed
}
