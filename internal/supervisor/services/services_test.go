// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRunner struct {
	ran atomic.Bool
}

func (f *fakeRunner) RunWithContext(ctx context.Context) error {
	f.ran.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func TestHubService_Serve(t *testing.T) {
	runner := &fakeRunner{}
	svc := NewHubService(runner)

	if svc.String() != "realtime-hub" {
		t.Errorf("unexpected name %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if !runner.ran.Load() {
		t.Error("hub run loop never started")
	}
}

type fakeHTTPServer struct {
	listenErr  error
	shutdowns  atomic.Int32
	listenDone chan struct{}
}

func newFakeHTTPServer(listenErr error) *fakeHTTPServer {
	return &fakeHTTPServer{listenErr: listenErr, listenDone: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.listenDone
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	close(f.listenDone)
	return nil
}

func TestHTTPService_Serve(t *testing.T) {
	t.Run("graceful shutdown on cancel", func(t *testing.T) {
		srv := newFakeHTTPServer(nil)
		svc := NewHTTPService(srv, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Serve did not return after cancel")
		}
		if srv.shutdowns.Load() != 1 {
			t.Errorf("expected one Shutdown call, got %d", srv.shutdowns.Load())
		}
	})

	t.Run("listen failure propagates", func(t *testing.T) {
		srv := newFakeHTTPServer(errors.New("port in use"))
		svc := NewHTTPService(srv, time.Second)

		err := svc.Serve(context.Background())
		if err == nil || errors.Is(err, context.Canceled) {
			t.Errorf("expected the listen error, got %v", err)
		}
	})
}
