// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package realtime

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// startTimeout bounds how long we wait for the embedded server to
// accept connections before giving up.
const startTimeout = 10 * time.Second

// EmbeddedServer runs an in-process NATS server for single-binary
// deployments and tests, so the bridge works without external
// infrastructure.
type EmbeddedServer struct {
	srv *natsserver.Server
}

// StartEmbeddedServer boots an in-process NATS server on an ephemeral
// port and waits until it accepts connections.
func StartEmbeddedServer() (*EmbeddedServer, error) {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // ephemeral
		NoLog:  true,
		NoSigs: true,
	}

	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(startTimeout) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready within %s", startTimeout)
	}

	return &EmbeddedServer{srv: srv}, nil
}

// ClientURL returns the URL clients use to connect.
func (e *EmbeddedServer) ClientURL() string {
	return e.srv.ClientURL()
}

// Shutdown stops the server and waits for it to finish.
func (e *EmbeddedServer) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
}
