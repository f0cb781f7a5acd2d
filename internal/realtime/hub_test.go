// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package realtime

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/tasklane/tasklane/internal/logging"
	"github.com/tasklane/tasklane/internal/notify"
)

//nolint:gochecknoinits // init ensures quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// newTestClient builds a client that is registered but has no real
// socket; fan-out only touches the send channel.
func newTestClient(hub *Hub, userID string, buffer int) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		userID: userID,
		hub:    hub,
		send:   make(chan notify.Envelope, buffer),
	}
}

func testEnvelope(t *testing.T, msg string) notify.Envelope {
	t.Helper()
	env, err := notify.NewNotification(notify.Notification{Kind: notify.NotificationUrgent, Message: msg})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	return env
}

func TestHub_RegistryInvariant(t *testing.T) {
	hub := NewHub()

	a1 := newTestClient(hub, "alice", 4)
	a2 := newTestClient(hub, "alice", 4)
	b1 := newTestClient(hub, "bob", 4)

	hub.add(a1)
	hub.add(a2)
	hub.add(b1)

	if got := hub.UserCount(); got != 2 {
		t.Errorf("expected 2 users, got %d", got)
	}
	if got := hub.ConnectionCount(); got != 3 {
		t.Errorf("expected 3 connections, got %d", got)
	}

	hub.remove(a1)
	if !hub.IsUserConnected("alice") {
		t.Error("alice still has one socket, entry must survive")
	}

	hub.remove(a2)
	if hub.IsUserConnected("alice") {
		t.Error("last socket removed, alice's entry must be gone")
	}
	if got := hub.UserCount(); got != 1 {
		t.Errorf("expected only bob left, got %d users", got)
	}
}

func TestHub_RemoveIsIdempotent(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "alice", 4)

	hub.add(c)
	hub.remove(c)
	hub.remove(c) // not present anymore; must be a no-op

	if hub.IsUserConnected("alice") {
		t.Error("alice should have no entry")
	}
}

func TestHub_SendToUser(t *testing.T) {
	t.Run("zero sockets is a no-op", func(t *testing.T) {
		hub := NewHub()
		hub.SendToUser("ghost", testEnvelope(t, "x")) // must not panic or error
	})

	t.Run("delivers to every socket of the user only", func(t *testing.T) {
		hub := NewHub()
		a1 := newTestClient(hub, "alice", 4)
		a2 := newTestClient(hub, "alice", 4)
		b1 := newTestClient(hub, "bob", 4)
		hub.add(a1)
		hub.add(a2)
		hub.add(b1)

		env := testEnvelope(t, "hello")
		hub.SendToUser("alice", env)

		for _, c := range []*Client{a1, a2} {
			select {
			case got := <-c.send:
				if got.Type != notify.KindNewNotification {
					t.Errorf("unexpected envelope type %q", got.Type)
				}
			default:
				t.Error("alice socket did not receive the envelope")
			}
		}
		select {
		case <-b1.send:
			t.Error("bob must not receive alice's message")
		default:
		}
	})

	t.Run("full queue is skipped and dropped", func(t *testing.T) {
		hub := NewHub()
		c := newTestClient(hub, "alice", 1)
		hub.add(c)

		hub.SendToUser("alice", testEnvelope(t, "first"))
		hub.SendToUser("alice", testEnvelope(t, "second")) // queue full: skip + drop

		if hub.IsUserConnected("alice") {
			t.Error("client with a full queue should be dropped, emptying the entry")
		}
		// The channel was closed by the drop; drain what made it through.
		if got, ok := <-c.send; !ok || got.Type != notify.KindNewNotification {
			t.Error("first envelope should have been queued before the drop")
		}
		if _, ok := <-c.send; ok {
			t.Error("send channel should be closed after the drop")
		}
	})
}

func TestHub_BroadcastToProject(t *testing.T) {
	hub := NewHub()
	u1 := newTestClient(hub, "u1", 4)
	u2 := newTestClient(hub, "u2", 4)
	hub.add(u1)
	hub.add(u2)

	env := testEnvelope(t, "board changed")
	hub.BroadcastToProject("p7", []string{"u1", "u2", "u3-offline"}, env)

	for _, c := range []*Client{u1, u2} {
		select {
		case got := <-c.send:
			if got.ProjectID != "p7" {
				t.Errorf("expected projectId p7, got %q", got.ProjectID)
			}
			if got.WorkspaceID != "" {
				t.Errorf("workspaceId must stay empty, got %q", got.WorkspaceID)
			}
			if string(got.Data) != string(env.Data) {
				t.Error("payload must be unchanged by decoration")
			}
		default:
			t.Errorf("user %s did not receive the broadcast", c.userID)
		}
	}
}

func TestHub_BroadcastToWorkspace(t *testing.T) {
	hub := NewHub()
	u1 := newTestClient(hub, "u1", 4)
	hub.add(u1)

	hub.BroadcastToWorkspace("w2", []string{"u1"}, testEnvelope(t, "invite"))

	select {
	case got := <-u1.send:
		if got.WorkspaceID != "w2" || got.ProjectID != "" {
			t.Errorf("expected workspaceId w2 only, got %+v", got)
		}
	default:
		t.Error("workspace broadcast not delivered")
	}
}

func TestHub_RunWithContext(t *testing.T) {
	t.Run("lifecycle via channels", func(t *testing.T) {
		hub := NewHub()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- hub.RunWithContext(ctx) }()

		c := newTestClient(hub, "alice", 4)
		hub.Register <- c
		waitFor(t, func() bool { return hub.IsUserConnected("alice") })

		hub.Unregister <- c
		waitFor(t, func() bool { return !hub.IsUserConnected("alice") })

		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("RunWithContext did not return after cancel")
		}
	})

	t.Run("shutdown closes all clients", func(t *testing.T) {
		hub := NewHub()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- hub.RunWithContext(ctx) }()

		c := newTestClient(hub, "alice", 4)
		hub.Register <- c
		waitFor(t, func() bool { return hub.IsUserConnected("alice") })

		cancel()
		<-done

		if hub.ConnectionCount() != 0 {
			t.Error("shutdown must empty the registry")
		}
		if _, ok := <-c.send; ok {
			t.Error("client send channel must be closed on shutdown")
		}
	})
}

// waitFor polls a condition; lifecycle events travel through channels so
// tests cannot observe them synchronously.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}
