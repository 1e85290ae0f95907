// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the wire types of the inbox protocol: the
// sources and messages an application publishes, the descriptors that
// identify applications, the registry events the hub emits, and the
// request and stream-frame shapes for both sockets.
//
// Two sockets speak this protocol:
//
//   - The application socket is served by each client application
//     (lib/messagingmenu) and consumed by the hub (lib/remote). Actions
//     are the AppAction* constants; the change stream carries
//     [AppFrame] values.
//   - The hub socket is served by cmd/bureau-inbox-service and consumed
//     by applications registering themselves and by presentation
//     layers. Actions are the HubAction* constants; the subscribe
//     stream carries [HubFrame] values.
//
// All structs carry json tags. The CBOR codec (lib/codec) honors them,
// and the same structs are printed by the CLI's --json output.
//
// This package depends on no other Bureau packages.
package schema
