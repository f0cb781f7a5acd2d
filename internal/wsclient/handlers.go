// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package wsclient

import (
	"fmt"

	"github.com/tasklane/tasklane/internal/logging"
	"github.com/tasklane/tasklane/internal/notify"
)

// Prompter presents a two-option confirmation to the user and reports
// whether the accept option was chosen. Frontends supply an
// implementation backed by their dialog system.
type Prompter interface {
	Confirm(title, message, accept, dismiss string) bool
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(title, message, accept, dismiss string) bool

func (f PrompterFunc) Confirm(title, message, accept, dismiss string) bool {
	return f(title, message, accept, dismiss)
}

// builtinHandler is the manager's default reaction to each message kind.
// Generic listeners have already run by the time these fire.
type builtinHandler struct {
	m *Manager
}

// HandleNotification surfaces alert-worthy notification kinds as a
// view-or-dismiss prompt. Non-alert kinds update state through the
// generic listeners only.
func (h *builtinHandler) HandleNotification(_ notify.Envelope, n notify.Notification) {
	if !n.Kind.AlertWorthy() || h.m.cfg.Prompter == nil {
		return
	}
	if h.m.cfg.Prompter.Confirm("New Notification", n.Message, "View", "Dismiss") {
		if h.m.cfg.OnViewNotification != nil {
			h.m.cfg.OnViewNotification(n)
		}
	}
}

// HandleTaskUpdated is an extension point; board refresh is driven by
// generic listeners today.
func (h *builtinHandler) HandleTaskUpdated(_ notify.Envelope, _ notify.TaskUpdate) {}

// HandleProjectUpdated is an extension point, same as HandleTaskUpdated.
func (h *builtinHandler) HandleProjectUpdated(_ notify.Envelope, _ notify.ProjectUpdate) {}

// HandleWorkspaceInvite prompts with the workspace name so the user can
// accept or dismiss the invitation.
func (h *builtinHandler) HandleWorkspaceInvite(_ notify.Envelope, inv notify.WorkspaceInvite) {
	if h.m.cfg.Prompter == nil {
		return
	}
	msg := fmt.Sprintf("You've been invited to join %q", inv.WorkspaceName)
	if h.m.cfg.Prompter.Confirm("Workspace Invitation", msg, "View", "Dismiss") {
		if h.m.cfg.OnAcceptInvite != nil {
			h.m.cfg.OnAcceptInvite(inv)
		}
	}
}

// HandleUnknown logs and ignores unrecognized message types so old
// clients tolerate newer servers.
func (h *builtinHandler) HandleUnknown(env notify.Envelope) {
	logging.Debug().Str("type", string(env.Type)).Msg("ignoring unknown message type")
}
