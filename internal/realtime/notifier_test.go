// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package realtime

import "testing"

func TestNotifier_LocalDelivery(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "alice", 4)
	hub.add(c)

	n := NewNotifier(hub, nil)

	t.Run("user scope", func(t *testing.T) {
		n.NotifyUser("alice", testEnvelope(t, "direct"))
		select {
		case got := <-c.send:
			if got.ProjectID != "" || got.WorkspaceID != "" {
				t.Error("direct sends must not be group-decorated")
			}
		default:
			t.Error("direct notify not delivered")
		}
	})

	t.Run("project scope", func(t *testing.T) {
		n.NotifyProject("p1", []string{"alice"}, testEnvelope(t, "grouped"))
		select {
		case got := <-c.send:
			if got.ProjectID != "p1" {
				t.Errorf("expected projectId p1, got %q", got.ProjectID)
			}
		default:
			t.Error("project notify not delivered")
		}
	})

	t.Run("workspace scope", func(t *testing.T) {
		n.NotifyWorkspace("w1", []string{"alice"}, testEnvelope(t, "grouped"))
		select {
		case got := <-c.send:
			if got.WorkspaceID != "w1" {
				t.Errorf("expected workspaceId w1, got %q", got.WorkspaceID)
			}
		default:
			t.Error("workspace notify not delivered")
		}
	})
}

func TestApplyToHub_Scopes(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "bob", 4)
	hub.add(c)

	tests := []struct {
		name string
		ev   Event
	}{
		{"user", Event{Scope: ScopeUser, UserIDs: []string{"bob"}}},
		{"project", Event{Scope: ScopeProject, TargetID: "p1", UserIDs: []string{"bob"}}},
		{"workspace", Event{Scope: ScopeWorkspace, TargetID: "w1", UserIDs: []string{"bob"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.ev.Envelope = testEnvelope(t, "x")
			ApplyToHub(hub, tt.ev)
			select {
			case <-c.send:
			default:
				t.Errorf("scope %s not applied", tt.ev.Scope)
			}
		})
	}
}
