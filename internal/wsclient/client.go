// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

// Package wsclient implements the client-side connection manager used by
// app frontends: one outbound socket per Manager, authenticated with a
// bearer token on the upgrade URL, recovered with a fixed-interval,
// bounded retry schedule.
//
// A Manager is an explicitly constructed, explicitly owned object; there
// is deliberately no package-level instance. Application composition
// decides how many exist (normally one per running app instance), and
// tests build isolated ones.
package wsclient

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tasklane/tasklane/internal/logging"
	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/notify"
)

// State is the connection manager's lifecycle state.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateAwaitingRetry State = "awaiting_retry"
	// StateStopped is terminal: the retry budget is exhausted and only an
	// explicit Connect call resumes the manager.
	StateStopped State = "stopped"
)

// TokenSource supplies the stored auth token. An empty token means none
// is stored yet (e.g. the user has not logged in); the manager then
// schedules a retry without opening a transport.
type TokenSource func() (string, error)

// Config configures a Manager.
type Config struct {
	// URL is the socket endpoint, e.g. wss://api.example.com/api/v1/ws.
	URL string

	// TokenSource supplies the bearer token appended as ?token=.
	TokenSource TokenSource

	// RetryInterval is the fixed delay between reconnect attempts.
	// Fixed by contract, not exponential. Default: 5s.
	RetryInterval time.Duration

	// MaxRetries bounds consecutive failed attempts. Default: 5.
	MaxRetries int

	// Prompter presents the built-in two-option confirmations. Nil
	// disables built-in prompts; generic listeners still run.
	Prompter Prompter

	// OnViewNotification runs when the user accepts a notification
	// prompt. Optional navigation hook.
	OnViewNotification func(notify.Notification)

	// OnAcceptInvite runs when the user accepts a workspace invite
	// prompt. Optional.
	OnAcceptInvite func(notify.WorkspaceInvite)

	// Dialer overrides the websocket dialer. Nil uses a default with a
	// 10s handshake timeout.
	Dialer *websocket.Dialer
}

type listener[T any] struct {
	id int
	fn T
}

// Manager owns at most one active outbound connection and dispatches
// parsed inbound frames to registered listeners and built-in handlers.
type Manager struct {
	cfg Config

	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
	attempts  int
	connected bool
	manual    bool // deliberate disconnect in progress; suppress retry
	retry     *time.Timer

	nextID              int
	messageListeners    []listener[func(notify.Envelope)]
	connectListeners    []listener[func()]
	disconnectListeners []listener[func()]
}

// New creates a Manager in the Disconnected state. Call Connect to start.
func New(cfg Config) *Manager {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return &Manager{cfg: cfg, state: StateDisconnected}
}

// Connect starts (or restarts) the manager: the attempt counter is
// cleared and a connection attempt begins immediately. Safe to call from
// the Stopped state to resume after an exhausted retry budget.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}
	m.stopRetryLocked()
	m.attempts = 0
	m.manual = false
	m.mu.Unlock()

	m.attempt()
}

// Disconnect deliberately shuts the connection down: the transport is
// closed, the handle cleared, and no reconnect is scheduled. Deliberate
// shutdown does not fire disconnect listeners; those signal failures.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopRetryLocked()
	m.manual = true
	m.connected = false
	m.state = StateDisconnected
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// IsConnected reports whether a connection is currently established.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the current consecutive failed attempt count. Zero
// after any successful connection.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// OnMessage registers a listener for every parsed inbound frame.
// Listeners run in registration order. Returns an ID for removal.
func (m *Manager) OnMessage(fn func(notify.Envelope)) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.messageListeners = append(m.messageListeners, listener[func(notify.Envelope)]{m.nextID, fn})
	return m.nextID
}

// RemoveMessageListener unregisters a message listener by ID.
func (m *Manager) RemoveMessageListener(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messageListeners = removeListener(m.messageListeners, id)
}

// OnConnect registers a listener invoked after each successful
// connection, in registration order.
func (m *Manager) OnConnect(fn func()) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.connectListeners = append(m.connectListeners, listener[func()]{m.nextID, fn})
	return m.nextID
}

// RemoveConnectListener unregisters a connect listener by ID.
func (m *Manager) RemoveConnectListener(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectListeners = removeListener(m.connectListeners, id)
}

// OnDisconnect registers a listener invoked when an established or
// in-progress connection fails.
func (m *Manager) OnDisconnect(fn func()) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.disconnectListeners = append(m.disconnectListeners, listener[func()]{m.nextID, fn})
	return m.nextID
}

// RemoveDisconnectListener unregisters a disconnect listener by ID.
func (m *Manager) RemoveDisconnectListener(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectListeners = removeListener(m.disconnectListeners, id)
}

func removeListener[T any](ls []listener[T], id int) []listener[T] {
	for i, l := range ls {
		if l.id == id {
			return append(ls[:i:i], ls[i+1:]...)
		}
	}
	return ls
}

// attempt performs one connection attempt. No stored token never opens a
// transport; it only schedules the next retry.
func (m *Manager) attempt() {
	token, err := m.token()
	if err != nil || token == "" {
		if err != nil {
			logging.Warn().Err(err).Msg("token source failed")
		}
		m.mu.Lock()
		m.state = StateDisconnected
		m.scheduleRetryLocked()
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if m.manual {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, _, err := m.cfg.Dialer.Dial(m.dialURL(token), nil)
	if err != nil {
		logging.Warn().Err(err).Int("attempt", m.Attempts()).Msg("websocket dial failed")
		m.transportFailure(nil)
		return
	}

	m.mu.Lock()
	if m.manual {
		// Disconnect raced the dial; drop the fresh connection.
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.connected = true
	m.state = StateConnected
	m.attempts = 0
	fns := listenerFuncs(m.connectListeners)
	m.mu.Unlock()

	logging.Info().Msg("websocket connected")
	for _, fn := range fns {
		fn()
	}

	go m.readLoop(conn)
}

func (m *Manager) token() (string, error) {
	if m.cfg.TokenSource == nil {
		return "", nil
	}
	return m.cfg.TokenSource()
}

// dialURL appends the bearer token as a query parameter.
func (m *Manager) dialURL(token string) string {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		// Let the dialer produce the error for a malformed base URL.
		return m.cfg.URL
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// readLoop consumes frames until the transport fails or is closed.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			m.transportFailure(conn)
			return
		}
		m.handleFrame(frame)
	}
}

// handleFrame parses one frame and dispatches it. A malformed frame is
// logged and dropped; it neither terminates the connection nor counts
// against the retry budget.
func (m *Manager) handleFrame(frame []byte) {
	env, err := notify.Decode(frame)
	if err != nil {
		logging.Warn().Err(err).Msg("dropping malformed frame")
		return
	}

	m.mu.Lock()
	fns := listenerFuncs(m.messageListeners)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(env)
	}

	if err := notify.Dispatch(env, &builtinHandler{m: m}); err != nil {
		logging.Warn().Err(err).Str("type", string(env.Type)).Msg("dropping frame with malformed payload")
	}
}

// transportFailure handles a failed dial or a broken established
// connection: disconnect listeners fire, then either a retry is
// scheduled or the manager stops.
func (m *Manager) transportFailure(conn *websocket.Conn) {
	m.mu.Lock()
	if m.manual || (conn != nil && conn != m.conn) {
		// Deliberate shutdown or a stale read loop; nothing to recover.
		m.mu.Unlock()
		return
	}
	wasConnected := m.connected
	m.connected = false
	m.conn = nil
	m.state = StateDisconnected
	fns := listenerFuncs(m.disconnectListeners)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if wasConnected || conn == nil {
		for _, fn := range fns {
			fn()
		}
	}

	m.mu.Lock()
	m.scheduleRetryLocked()
	m.mu.Unlock()
}

// scheduleRetryLocked arms the retry timer if budget remains, else
// transitions to Stopped. Caller holds mu.
func (m *Manager) scheduleRetryLocked() {
	if m.manual {
		return
	}
	if m.attempts >= m.cfg.MaxRetries {
		m.state = StateStopped
		logging.Warn().Int("attempts", m.attempts).Msg("reconnect budget exhausted, stopping")
		return
	}
	m.attempts++
	m.state = StateAwaitingRetry
	metrics.ClientReconnectAttempts.Inc()
	logging.Debug().
		Int("attempt", m.attempts).
		Str("interval", fmt.Sprint(m.cfg.RetryInterval)).
		Msg("reconnect scheduled")
	m.retry = time.AfterFunc(m.cfg.RetryInterval, m.attempt)
}

// stopRetryLocked disarms any pending retry timer. Caller holds mu.
func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func listenerFuncs[T any](ls []listener[T]) []T {
	fns := make([]T, len(ls))
	for i, l := range ls {
		fns[i] = l.fn
	}
	return fns
}
