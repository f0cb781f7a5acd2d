// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

/*
Package realtime implements the server-side connection registry and
notification fan-out.

Key Components:

  - Hub: registry from user ID to the set of that user's live sockets,
    with SendToUser / BroadcastToProject / BroadcastToWorkspace fan-out
  - Client: one authenticated connection with read/write goroutines
  - Notifier: routes fan-out locally or across nodes via NATS
  - Bridge: NATS subscriber feeding remote fan-out into the local hub

Architecture:

	            ┌─────────┐
	controller →│ Notifier│→ NATS subject (multi-node) ─┐
	            └────┬────┘                             │
	                 │ (single node)              ┌─────┴────┐
	                 ▼                            │  Bridge  │
	            ┌─────────┐                       └─────┬────┘
	            │   Hub   │←──────────────────────────-─┘
	            └────┬────┘
	        user A ──┼── user B
	       (2 socks) │  (1 sock)

Each client has two goroutines:
  - readPump: services pongs, detects the close
  - writePump: writes queued envelopes, sends protocol pings

Delivery Contract:

Delivery is at-most-once per currently-connected socket, best-effort.
A socket that is not open is skipped; nothing is queued, retried, or
persisted for it. Messages to the same still-open socket arrive in send
order; across sockets there is no ordering guarantee. Skipped and failed
sends are counted in package metrics but never surfaced to the caller.

Registry Invariant:

A user ID is a key in the registry iff at least one of that user's
sockets is registered. The last unregister removes the key entirely.

Thread Safety:

All registry state is guarded by a mutex; Hub methods may be called from
any goroutine. Lifecycle events flow through the Register/Unregister
channels consumed by RunWithContext, which suture supervises.
*/
package realtime
