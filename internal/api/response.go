// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

// Package api provides the HTTP surface: the socket upgrade endpoint,
// the notify trigger endpoints the task-management backend calls, and
// the notification list for catch-up after reconnect.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tasklane/tasklane/internal/logging"
)

// APIResponse is the standardized response wrapper for all API
// endpoints.
type APIResponse struct {
	// Success indicates whether the request was successful
	Success bool `json:"success"`

	// Data contains the response payload (null on error)
	Data interface{} `json:"data,omitempty"`

	// Error contains error details (null on success)
	Error *APIError `json:"error,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`
}

// Error codes for API responses
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// respondJSON writes a success response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(&APIResponse{Success: true, Data: data}); err != nil {
		logging.Error().Err(err).Msg("encode response")
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(&APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	})
	if err != nil {
		logging.Error().Err(err).Msg("encode error response")
	}
}
