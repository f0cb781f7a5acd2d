// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package realtime

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tasklane/tasklane/internal/config"
	"github.com/tasklane/tasklane/internal/logging"
	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/notify"
)

// clientIDCounter generates unique, monotonically increasing IDs.
// DETERMINISM: gives the hub a stable sort key for fan-out iteration.
var clientIDCounter atomic.Uint64

// Client is the server-side wrapper around one authenticated socket
// connection. It is tagged with the user ID resolved at upgrade time so
// unregistration never needs to re-authenticate.
type Client struct {
	id     uint64
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan notify.Envelope
	cfg    config.WebSocketConfig
}

// NewClient creates a Client for an already-authenticated connection.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, cfg config.WebSocketConfig) *Client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		id:     clientIDCounter.Add(1),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan notify.Envelope, buffer),
		cfg:    cfg,
	}
}

// UserID returns the authenticated user this connection belongs to.
func (c *Client) UserID() string {
	return c.userID
}

// Start begins the read and write pumps. Must be called exactly once,
// after the client has been registered with the hub.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump consumes inbound frames. The notification channel is
// server-to-client; inbound application frames are read only to service
// the pong handler and to detect the close. Read errors and closes both
// route through the same unregister path.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Error().Err(err).Str("user_id", c.userID).Msg("unexpected websocket close error")
			}
			return
		}
	}
}

// writePump writes queued envelopes to the socket and keeps the
// connection alive with protocol pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case env, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(env); err != nil {
				metrics.SendErrors.Inc()
				logging.Error().Err(err).Str("user_id", c.userID).Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
