// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package realtime

import (
	"github.com/tasklane/tasklane/internal/logging"
	"github.com/tasklane/tasklane/internal/notify"
)

// Scope identifies what a fan-out event is keyed by.
type Scope string

const (
	ScopeUser      Scope = "user"
	ScopeProject   Scope = "project"
	ScopeWorkspace Scope = "workspace"
)

// Event is one fan-out request as carried between nodes. The envelope is
// not yet decorated; the receiving side applies the project/workspace
// decoration so it happens exactly once.
type Event struct {
	Scope    Scope           `json:"scope"`
	TargetID string          `json:"targetId,omitempty"`
	UserIDs  []string        `json:"userIds"`
	Envelope notify.Envelope `json:"envelope"`
}

// Notifier is the send API handed to controllers. On a single node it
// calls straight into the local hub; with NATS enabled it publishes the
// event instead, and every node's Bridge (this one included) applies it
// to its local hub. The two paths are mutually exclusive so no recipient
// sees a frame twice.
type Notifier struct {
	hub    *Hub
	bridge *Bridge
}

// NewNotifier creates a Notifier. bridge may be nil for single-node
// deployments.
func NewNotifier(hub *Hub, bridge *Bridge) *Notifier {
	return &Notifier{hub: hub, bridge: bridge}
}

// NotifyUser delivers an envelope to one user's live sockets.
func (n *Notifier) NotifyUser(userID string, env notify.Envelope) {
	n.route(Event{Scope: ScopeUser, UserIDs: []string{userID}, Envelope: env})
}

// NotifyProject fans an envelope out to the project members the caller
// supplies, decorated with the project ID.
func (n *Notifier) NotifyProject(projectID string, userIDs []string, env notify.Envelope) {
	n.route(Event{Scope: ScopeProject, TargetID: projectID, UserIDs: userIDs, Envelope: env})
}

// NotifyWorkspace fans an envelope out to the workspace members the
// caller supplies, decorated with the workspace ID.
func (n *Notifier) NotifyWorkspace(workspaceID string, userIDs []string, env notify.Envelope) {
	n.route(Event{Scope: ScopeWorkspace, TargetID: workspaceID, UserIDs: userIDs, Envelope: env})
}

func (n *Notifier) route(ev Event) {
	if n.bridge != nil {
		if err := n.bridge.Publish(ev); err == nil {
			return
		}
		// Publish failure degrades to local-only delivery rather than
		// dropping the event on this node too.
		logging.Warn().Str("scope", string(ev.Scope)).Msg("bridge publish failed, delivering locally only")
	}
	ApplyToHub(n.hub, ev)
}

// ApplyToHub performs the local-hub side of a fan-out event. Shared by
// the direct path and the Bridge subscriber.
func ApplyToHub(hub *Hub, ev Event) {
	switch ev.Scope {
	case ScopeProject:
		hub.BroadcastToProject(ev.TargetID, ev.UserIDs, ev.Envelope)
	case ScopeWorkspace:
		hub.BroadcastToWorkspace(ev.TargetID, ev.UserIDs, ev.Envelope)
	default:
		for _, userID := range ev.UserIDs {
			hub.SendToUser(userID, ev.Envelope)
		}
	}
}
