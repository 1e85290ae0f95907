// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-inbox-service is the inbox hub daemon. It owns the
// application registry, resolves applications from desktop entries
// and JSONC manifests, connects to running applications over their
// Unix sockets, and serves the aggregated command namespace on its own
// socket.
//
// Socket actions (CBOR, one request per connection):
//
//   - status: uptime, counts, attention, build version
//   - register / unregister: called by applications through
//     lib/messagingmenu
//   - list-applications, get-application, list-commands,
//     describe-command: queries for presentation layers
//   - invoke, change-state, remove-all: user actions
//   - subscribe: a stream of state, caught_up, event, indicator,
//     heartbeat and resync frames
//
// When metrics.listen_address is configured, Prometheus metrics are
// served on /metrics.
package main
