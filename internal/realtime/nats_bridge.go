// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package realtime

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/tasklane/tasklane/internal/logging"
)

// Bridge carries fan-out events between nodes over a core NATS subject.
//
// Core NATS (not JetStream) is deliberate: durable, replayed delivery
// would break the at-most-once contract. A user reconnecting must not
// receive frames from while they were away, and a node that is down
// simply misses events, exactly like a socket that is closed.
type Bridge struct {
	hub     *Hub
	conn    *nats.Conn
	subject string
}

// NewBridge creates a bridge over an established NATS connection.
func NewBridge(hub *Hub, conn *nats.Conn, subject string) *Bridge {
	return &Bridge{hub: hub, conn: conn, subject: subject}
}

// Publish sends a fan-out event to every node's bridge, including this
// one.
func (b *Bridge) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal fan-out event: %w", err)
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("publish fan-out event: %w", err)
	}
	return nil
}

// Serve subscribes to the notify subject and applies received events to
// the local hub until the context is canceled. Implements
// suture.Service.
func (b *Bridge) Serve(ctx context.Context) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logging.Warn().Err(err).Msg("dropping malformed fan-out event")
			return
		}
		ApplyToHub(b.hub, ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.subject, err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	logging.Info().Str("subject", b.subject).Msg("notification bridge subscribed")
	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (b *Bridge) String() string {
	return "notify-bridge"
}
