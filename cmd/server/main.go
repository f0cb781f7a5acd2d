// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

// Command server runs the Tasklane realtime notification backend: the
// WebSocket hub, the notify trigger API, the BadgerDB notification
// store, and (optionally) the NATS bridge for multi-node fan-out.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tasklane/tasklane/internal/api"
	"github.com/tasklane/tasklane/internal/auth"
	"github.com/tasklane/tasklane/internal/config"
	"github.com/tasklane/tasklane/internal/logging"
	"github.com/tasklane/tasklane/internal/push"
	"github.com/tasklane/tasklane/internal/realtime"
	"github.com/tasklane/tasklane/internal/store"
	"github.com/tasklane/tasklane/internal/supervisor"
	"github.com/tasklane/tasklane/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet; write straight to stderr.
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("nats", cfg.NATS.Enabled).
		Bool("push", cfg.Push.Enabled).
		Msg("starting tasklane")

	st, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open notification store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close notification store")
		}
	}()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize token validation")
	}

	hub := realtime.NewHub()

	// Optional multi-node bridge. With the embedded server enabled this
	// node carries its own NATS; otherwise it joins an external cluster.
	var (
		bridge   *realtime.Bridge
		natsConn *nats.Conn
		embedded *realtime.EmbeddedServer
	)
	if cfg.NATS.Enabled {
		natsURL := cfg.NATS.URL
		if cfg.NATS.EmbeddedServer {
			embedded, err = realtime.StartEmbeddedServer()
			if err != nil {
				logging.Fatal().Err(err).Msg("failed to start embedded nats server")
			}
			defer embedded.Shutdown()
			natsURL = embedded.ClientURL()
		}

		natsConn, err = nats.Connect(natsURL,
			nats.Name("tasklane"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			logging.Fatal().Err(err).Str("url", natsURL).Msg("failed to connect to nats")
		}
		defer natsConn.Close()

		bridge = realtime.NewBridge(hub, natsConn, cfg.NATS.Subject)
		logging.Info().Str("subject", cfg.NATS.Subject).Msg("nats bridge enabled")
	}

	notifier := realtime.NewNotifier(hub, bridge)
	handler := api.NewHandler(cfg, hub, notifier, st, push.NewSender(cfg.Push), jwtManager)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(cfg, handler).Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.Timeout,
	})
	tree.AddMessagingService(services.NewHubService(hub))
	if bridge != nil {
		tree.AddMessagingService(services.NewBridgeService(bridge))
	}
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor terminated with error")
	}
	logging.Info().Msg("shutdown complete")
}
