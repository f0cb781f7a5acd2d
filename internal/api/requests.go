// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package api

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// validate is the shared validator instance; validator.Validate caches
// struct metadata and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// NotifyUserRequest triggers a NEW_NOTIFICATION for a single user.
type NotifyUserRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Kind    string `json:"kind" validate:"required,oneof=assignment due_soon urgent comment generic"`
	Message string `json:"message" validate:"required"`
	TaskID  string `json:"task_id,omitempty"`
	ActorID string `json:"actor_id,omitempty"`
}

// NotifyProjectRequest triggers a TASK_UPDATED (when task_id is set) or
// PROJECT_UPDATED broadcast to the project's members.
type NotifyProjectRequest struct {
	ProjectID string                 `json:"project_id" validate:"required"`
	UserIDs   []string               `json:"user_ids" validate:"required,min=1,dive,required"`
	TaskID    string                 `json:"task_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// NotifyWorkspaceRequest triggers a WORKSPACE_INVITE broadcast.
type NotifyWorkspaceRequest struct {
	WorkspaceID   string   `json:"workspace_id" validate:"required"`
	WorkspaceName string   `json:"workspace_name" validate:"required"`
	UserIDs       []string `json:"user_ids" validate:"required,min=1,dive,required"`
	InvitedBy     string   `json:"invited_by,omitempty"`
}

// decodeAndValidate parses the request body into dst and runs struct
// validation. Returns a client-facing error message on failure.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
