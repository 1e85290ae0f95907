// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote connects the hub to running applications over their
// Unix sockets.
//
// [SocketTransport] implements the application list's transport: each
// channel is a [service.ServiceClient] for request-response calls plus,
// once subscribed, one long-lived subscribe stream. The stream doubles
// as the liveness signal. The application writes a heartbeat frame at
// least once per heartbeat interval, and a channel whose stream stays
// silent for longer than the transport's HeartbeatTimeout, or whose
// stream closes, is reported lost.
//
// Before a subscription exists, liveness falls back to periodic hello
// probes.
package remote
