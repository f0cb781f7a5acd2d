// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

// Package notify defines the wire contract shared by the server-side
// fan-out and the client-side connection manager.
//
// A frame on the wire is a UTF-8 JSON envelope:
//
//	{"type":"NEW_NOTIFICATION","data":{...},"projectId":"p1"}
//
// The type field discriminates the payload shape. Instead of dispatching
// on raw strings, consumers implement Handler and route frames through
// Dispatch, which decodes the payload into its concrete type. Adding a
// message kind means adding a Handler method, so every dispatch site is
// forced to handle it at compile time.
package notify

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Kind discriminates the payload shape of an Envelope.
type Kind string

const (
	KindNewNotification Kind = "NEW_NOTIFICATION"
	KindTaskUpdated     Kind = "TASK_UPDATED"
	KindProjectUpdated  Kind = "PROJECT_UPDATED"
	KindWorkspaceInvite Kind = "WORKSPACE_INVITE"
)

// Envelope is one complete frame. ProjectID and WorkspaceID are set only
// by the group broadcast helpers; direct sends leave them empty.
type Envelope struct {
	Type        Kind            `json:"type"`
	Data        json.RawMessage `json:"data"`
	ProjectID   string          `json:"projectId,omitempty"`
	WorkspaceID string          `json:"workspaceId,omitempty"`
}

// NotificationKind classifies a Notification payload. Only a fixed
// subset is considered alert-worthy on the client.
type NotificationKind string

const (
	NotificationAssignment NotificationKind = "assignment"
	NotificationDueSoon    NotificationKind = "due_soon"
	NotificationUrgent     NotificationKind = "urgent"
	NotificationComment    NotificationKind = "comment"
	NotificationGeneric    NotificationKind = "generic"
)

// AlertWorthy reports whether the client presents a confirmation prompt
// for this notification kind.
func (k NotificationKind) AlertWorthy() bool {
	switch k {
	case NotificationAssignment, NotificationDueSoon, NotificationUrgent:
		return true
	default:
		return false
	}
}

// Notification is the payload of a NEW_NOTIFICATION frame.
type Notification struct {
	ID        string           `json:"id,omitempty"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	TaskID    string           `json:"taskId,omitempty"`
	ActorID   string           `json:"actorId,omitempty"`
	CreatedAt time.Time        `json:"createdAt,omitempty"`
	Read      bool             `json:"read,omitempty"`
}

// TaskUpdate is the payload of a TASK_UPDATED frame. Fields carries the
// changed columns so clients can patch local state without a refetch.
type TaskUpdate struct {
	TaskID    string         `json:"taskId"`
	ProjectID string         `json:"projectId"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// ProjectUpdate is the payload of a PROJECT_UPDATED frame.
type ProjectUpdate struct {
	ProjectID string         `json:"projectId"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// WorkspaceInvite is the payload of a WORKSPACE_INVITE frame.
type WorkspaceInvite struct {
	WorkspaceID   string `json:"workspaceId"`
	WorkspaceName string `json:"workspaceName"`
	InvitedBy     string `json:"invitedBy,omitempty"`
}

// NewNotification wraps a Notification payload in an envelope.
func NewNotification(n Notification) (Envelope, error) {
	return wrap(KindNewNotification, n)
}

// NewTaskUpdated wraps a TaskUpdate payload in an envelope.
func NewTaskUpdated(u TaskUpdate) (Envelope, error) {
	return wrap(KindTaskUpdated, u)
}

// NewProjectUpdated wraps a ProjectUpdate payload in an envelope.
func NewProjectUpdated(u ProjectUpdate) (Envelope, error) {
	return wrap(KindProjectUpdated, u)
}

// NewWorkspaceInvite wraps a WorkspaceInvite payload in an envelope.
func NewWorkspaceInvite(inv WorkspaceInvite) (Envelope, error) {
	return wrap(KindWorkspaceInvite, inv)
}

func wrap(kind Kind, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Envelope{Type: kind, Data: data}, nil
}

// Encode serializes the envelope to its wire form.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses one frame. A parse failure here means the frame is
// dropped by the caller; it never tears down the connection.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	return env, nil
}

// WithProject returns a copy of the envelope decorated with a project
// identifier. The receiver is not modified; envelopes are immutable once
// built.
func (e Envelope) WithProject(projectID string) Envelope {
	e.ProjectID = projectID
	return e
}

// WithWorkspace returns a copy of the envelope decorated with a
// workspace identifier.
func (e Envelope) WithWorkspace(workspaceID string) Envelope {
	e.WorkspaceID = workspaceID
	return e
}

// Handler receives decoded payloads, one method per message kind.
// Unrecognized kinds land in HandleUnknown so old binaries stay
// compatible with newer peers.
type Handler interface {
	HandleNotification(env Envelope, n Notification)
	HandleTaskUpdated(env Envelope, u TaskUpdate)
	HandleProjectUpdated(env Envelope, u ProjectUpdate)
	HandleWorkspaceInvite(env Envelope, inv WorkspaceInvite)
	HandleUnknown(env Envelope)
}

// Dispatch decodes the envelope payload and invokes the matching Handler
// method. The only error returned is a payload that fails to decode for
// a known kind; unknown kinds are not an error.
func Dispatch(env Envelope, h Handler) error {
	switch env.Type {
	case KindNewNotification:
		var n Notification
		if err := json.Unmarshal(env.Data, &n); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		h.HandleNotification(env, n)
	case KindTaskUpdated:
		var u TaskUpdate
		if err := json.Unmarshal(env.Data, &u); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		h.HandleTaskUpdated(env, u)
	case KindProjectUpdated:
		var u ProjectUpdate
		if err := json.Unmarshal(env.Data, &u); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		h.HandleProjectUpdated(env, u)
	case KindWorkspaceInvite:
		var inv WorkspaceInvite
		if err := json.Unmarshal(env.Data, &inv); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		h.HandleWorkspaceInvite(env, inv)
	default:
		h.HandleUnknown(env)
	}
	return nil
}
