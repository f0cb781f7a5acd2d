// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

// Package services wraps the long-running components as suture services.
// Each wrapper is a thin adapter: the components already follow the
// RunWithContext pattern, so the wrappers mostly supply names for the
// supervisor's logs.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ContextRunner matches *realtime.Hub without importing the realtime
// package, keeping the supervision wrappers free of domain imports.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// HubService supervises the connection registry's run loop.
type HubService struct {
	hub ContextRunner
}

// NewHubService wraps a hub for supervision.
func NewHubService(hub ContextRunner) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service. Returns ctx.Err() on normal
// shutdown; the hub closes all registered clients on the way out.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

func (s *HubService) String() string { return "realtime-hub" }

// BridgeServer matches *realtime.Bridge.
type BridgeServer interface {
	Serve(ctx context.Context) error
}

// BridgeService supervises the NATS fan-out subscription.
type BridgeService struct {
	bridge BridgeServer
}

// NewBridgeService wraps a bridge for supervision.
func NewBridgeService(bridge BridgeServer) *BridgeService {
	return &BridgeService{bridge: bridge}
}

// Serve implements suture.Service.
func (s *BridgeService) Serve(ctx context.Context) error {
	return s.bridge.Serve(ctx)
}

func (s *BridgeService) String() string { return "notify-bridge" }

// HTTPServer matches *http.Server's lifecycle methods so tests can
// substitute a fake.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService bridges http.Server's blocking ListenAndServe pattern to
// suture's context-aware Serve.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps an HTTP server for supervision. shutdownTimeout
// bounds the graceful-shutdown wait for in-flight requests.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. http.ErrServerClosed is the expected
// result of Shutdown and is not treated as a failure.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The serve context is already canceled; shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *HTTPService) String() string { return "http-server" }
