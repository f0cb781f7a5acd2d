// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package wsclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tasklane/tasklane/internal/logging"
	"github.com/tasklane/tasklane/internal/notify"
)

//nolint:gochecknoinits // init ensures quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// startTestServer runs an upgrade-anything websocket server and hands
// each accepted server-side connection to the test through a channel.
func startTestServer(t *testing.T) (string, chan *websocket.Conn, func()) {
	t.Helper()
	conns := make(chan *websocket.Conn, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, conns, srv.Close
}

func staticToken(tok string) TokenSource {
	return func() (string, error) { return tok, nil }
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, env notify.Envelope) {
	t.Helper()
	data, err := env.Encode()
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func TestManager_NoTokenSchedulesOneRetryWithoutDialing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	m := New(Config{
		URL:           "ws" + strings.TrimPrefix(srv.URL, "http"),
		TokenSource:   staticToken(""),
		RetryInterval: time.Hour, // the scheduled retry must not fire during the test
	})
	m.Connect()
	defer m.Disconnect()

	if got := m.State(); got != StateAwaitingRetry {
		t.Errorf("expected awaiting_retry, got %s", got)
	}
	if got := m.Attempts(); got != 1 {
		t.Errorf("expected exactly one scheduled retry, got %d", got)
	}
	if hits.Load() != 0 {
		t.Error("no transport may be opened without a token")
	}
}

func TestManager_ConnectAndDeliver(t *testing.T) {
	wsURL, conns, stop := startTestServer(t)
	defer stop()

	var mu sync.Mutex
	var order []string
	var connects int

	m := New(Config{URL: wsURL, TokenSource: staticToken("tok"), RetryInterval: time.Hour})
	m.OnConnect(func() {
		mu.Lock()
		connects++
		mu.Unlock()
	})
	m.OnMessage(func(notify.Envelope) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	removed := m.OnMessage(func(notify.Envelope) {
		mu.Lock()
		order = append(order, "removed")
		mu.Unlock()
	})
	m.OnMessage(func(notify.Envelope) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	})
	m.RemoveMessageListener(removed)

	m.Connect()
	defer m.Disconnect()

	if !m.IsConnected() || m.State() != StateConnected {
		t.Fatalf("expected connected state, got %s", m.State())
	}
	if m.Attempts() != 0 {
		t.Error("successful connection must clear the attempt counter")
	}

	server := <-conns
	env, err := notify.NewTaskUpdated(notify.TaskUpdate{TaskID: "t1", ProjectID: "p1"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	sendEnvelope(t, server, env)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "first" || order[1] != "second" {
		t.Errorf("listeners out of order or removed listener invoked: %v", order)
	}
	if connects != 1 {
		t.Errorf("expected one connect notification, got %d", connects)
	}
}

func TestManager_MalformedFrameIsDropped(t *testing.T) {
	wsURL, conns, stop := startTestServer(t)
	defer stop()

	var delivered atomic.Int32
	m := New(Config{URL: wsURL, TokenSource: staticToken("tok"), RetryInterval: time.Hour})
	m.OnMessage(func(notify.Envelope) { delivered.Add(1) })

	m.Connect()
	defer m.Disconnect()

	server := <-conns
	if err := server.WriteMessage(websocket.TextMessage, []byte("this is not json")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	sendEnvelope(t, server, mustEnvelope(t, notify.NotificationGeneric, "still alive"))

	// The valid frame arriving after proves the malformed one neither
	// killed the connection nor reached the listeners.
	waitFor(t, func() bool { return delivered.Load() == 1 })
	if !m.IsConnected() {
		t.Error("malformed frame must not terminate the connection")
	}
}

func TestManager_RetryBudget(t *testing.T) {
	// Nothing listens on this address; every dial fails fast.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	m := New(Config{
		URL:           wsURL,
		TokenSource:   staticToken("tok"),
		RetryInterval: 10 * time.Millisecond,
		MaxRetries:    3,
	})
	m.Connect()

	waitFor(t, func() bool { return m.State() == StateStopped })
	if got := m.Attempts(); got != 3 {
		t.Errorf("expected the full budget of 3 attempts, got %d", got)
	}

	// Stopped is terminal until an explicit Connect.
	time.Sleep(50 * time.Millisecond)
	if m.State() != StateStopped {
		t.Error("stopped manager must not resume on its own")
	}
}

func TestManager_ServerCloseTriggersRetry(t *testing.T) {
	wsURL, conns, stop := startTestServer(t)
	defer stop()

	var disconnects atomic.Int32
	m := New(Config{URL: wsURL, TokenSource: staticToken("tok"), RetryInterval: time.Hour})
	m.OnDisconnect(func() { disconnects.Add(1) })

	m.Connect()
	defer m.Disconnect()

	server := <-conns
	server.Close()

	waitFor(t, func() bool { return m.State() == StateAwaitingRetry })
	if disconnects.Load() != 1 {
		t.Errorf("expected one disconnect notification, got %d", disconnects.Load())
	}
	if m.Attempts() != 1 {
		t.Errorf("expected one pending retry, got %d attempts", m.Attempts())
	}
}

func TestManager_DeliberateDisconnect(t *testing.T) {
	wsURL, conns, stop := startTestServer(t)
	defer stop()

	var disconnects atomic.Int32
	m := New(Config{URL: wsURL, TokenSource: staticToken("tok"), RetryInterval: 10 * time.Millisecond})
	m.OnDisconnect(func() { disconnects.Add(1) })

	m.Connect()
	<-conns
	m.Disconnect()

	waitFor(t, func() bool { return m.State() == StateDisconnected })
	time.Sleep(50 * time.Millisecond)

	if m.State() != StateDisconnected {
		t.Errorf("deliberate disconnect must not schedule a retry, state is %s", m.State())
	}
	if m.IsConnected() {
		t.Error("connected flag must be cleared")
	}
	if disconnects.Load() != 0 {
		t.Error("deliberate disconnect must not fire failure listeners")
	}
}

func mustEnvelope(t *testing.T, kind notify.NotificationKind, msg string) notify.Envelope {
	t.Helper()
	env, err := notify.NewNotification(notify.Notification{Kind: kind, Message: msg})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	return env
}
